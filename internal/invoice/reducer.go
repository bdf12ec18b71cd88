package invoice

import (
	"errors"
	"fmt"

	"github.com/noah-isme/crossbill/internal/pricing"
)

var (
	// ErrLastLine is returned when removing the only remaining line item.
	ErrLastLine = errors.New("invoice: at least one line item is required")
	// ErrLineNotFound is returned when an action references an unknown line id.
	ErrLineNotFound = errors.New("invoice: line item not found")
	// ErrUnknownField is returned when an update names a field that cannot be edited.
	ErrUnknownField = errors.New("invoice: unknown field")
)

// Lookup status messages stored on Details.LookupMessage.
const (
	MsgIncompleteAddress = "Please enter a complete address (Street, City, Zip) to look up the tax rate."
	MsgLookupPending     = "Looking up tax rate..."
	MsgLookupFailed      = "Could not find tax rate for the provided address. Please check the address or enter manually."
	MsgLookupError       = "Error fetching tax rate. Please try again later or enter manually."
)

// Action is a single edit to an invoice.
type Action interface {
	apply(inv *Invoice) error
}

// Reduce applies action to a copy of inv and returns the next revision. The
// input is never modified; on error inv is returned unchanged. Derived values
// are not refreshed here, call Recompute afterwards.
func Reduce(inv Invoice, action Action) (Invoice, error) {
	if action == nil {
		return inv, errors.New("invoice: nil action")
	}
	next := inv.clone()
	if err := action.apply(&next); err != nil {
		return inv, err
	}
	next.Revision = inv.Revision + 1
	return next, nil
}

// ReduceAll applies actions in order. It is all or nothing: on the first
// failure the original inv is returned with the error.
func ReduceAll(inv Invoice, actions ...Action) (Invoice, error) {
	cur := inv
	for i, action := range actions {
		next, err := Reduce(cur, action)
		if err != nil {
			return inv, fmt.Errorf("action %d: %w", i, err)
		}
		cur = next
	}
	return cur, nil
}

// AddLine appends an empty line item.
type AddLine struct{}

func (AddLine) apply(inv *Invoice) error {
	inv.LineItems = append(inv.LineItems, newLine(inv.nextLineID()))
	return nil
}

// RemoveLine deletes the line item with ID. The last remaining line cannot
// be removed.
type RemoveLine struct {
	ID int
}

func (a RemoveLine) apply(inv *Invoice) error {
	i := inv.indexOf(a.ID)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrLineNotFound, a.ID)
	}
	if len(inv.LineItems) <= 1 {
		return ErrLastLine
	}
	inv.LineItems = append(inv.LineItems[:i], inv.LineItems[i+1:]...)
	return nil
}

// Line item fields editable through UpdateLine.
const (
	FieldDescription        = "description"
	FieldCost               = "cost"
	FieldMarkupPercentage   = "markupPercentage"
	FieldSalesTaxPercentage = "salesTaxPercentage"
)

// UpdateLine sets one raw input field of a line item.
type UpdateLine struct {
	ID    int
	Field string
	Value string
}

func (a UpdateLine) apply(inv *Invoice) error {
	i := inv.indexOf(a.ID)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrLineNotFound, a.ID)
	}
	item := &inv.LineItems[i]
	switch a.Field {
	case FieldDescription:
		item.Description = a.Value
	case FieldCost:
		item.Cost = pricing.Input(a.Value)
	case FieldMarkupPercentage:
		item.MarkupPercentage = pricing.Input(a.Value)
	case FieldSalesTaxPercentage:
		item.SalesTaxPercentage = pricing.Input(a.Value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, a.Field)
	}
	return nil
}

// UpdateDetails sets one text field of the invoice header.
type UpdateDetails struct {
	Field string
	Value string
}

func (a UpdateDetails) apply(inv *Invoice) error {
	d := &inv.Details
	switch a.Field {
	case "invoiceNumber":
		d.InvoiceNumber = a.Value
	case "invoiceDate":
		d.InvoiceDate = a.Value
	case "vendorName":
		d.VendorName = a.Value
	case "deliveryStreet":
		d.DeliveryStreet = a.Value
	case "deliveryCity":
		d.DeliveryCity = a.Value
	case "deliveryZip":
		d.DeliveryZip = a.Value
	case "cdtfaTaxRate":
		d.CDTFATaxRate = a.Value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, a.Field)
	}
	return nil
}

// SetApplyMarkupToAll toggles global markup mode.
type SetApplyMarkupToAll struct {
	Enabled bool
}

func (a SetApplyMarkupToAll) apply(inv *Invoice) error {
	inv.Details.ApplyMarkupToAll = a.Enabled
	return nil
}

// SetGlobalMarkup sets the percentage used while global markup mode is on.
type SetGlobalMarkup struct {
	Value string
}

func (a SetGlobalMarkup) apply(inv *Invoice) error {
	inv.Details.GlobalMarkupPercentage = pricing.Input(a.Value)
	return nil
}

// LookupPending marks a tax rate lookup as started, or records why it cannot
// start when the delivery address is incomplete.
type LookupPending struct{}

func (LookupPending) apply(inv *Invoice) error {
	if !inv.Details.HasCompleteAddress() {
		inv.Details.LookupMessage = MsgIncompleteAddress
		return nil
	}
	inv.Details.LookupMessage = MsgLookupPending
	return nil
}

// RecordLookup stores the outcome of a tax rate lookup. On success TaxRate is
// the percentage returned by the proxy; otherwise Message explains the failure
// and any previous rate is cleared. Unreachable marks a lookup that never got
// a response from the proxy.
type RecordLookup struct {
	Found       bool
	Unreachable bool
	TaxRate     string
	Message     string
}

func (a RecordLookup) apply(inv *Invoice) error {
	if a.Found && a.TaxRate != "" {
		inv.Details.CDTFATaxRate = a.TaxRate
		inv.Details.LookupMessage = fmt.Sprintf("Tax rate found: %s%%", a.TaxRate)
		return nil
	}
	inv.Details.CDTFATaxRate = ""
	if a.Unreachable {
		inv.Details.LookupMessage = MsgLookupError
		return nil
	}
	inv.Details.LookupMessage = a.Message
	if inv.Details.LookupMessage == "" {
		inv.Details.LookupMessage = MsgLookupFailed
	}
	return nil
}
