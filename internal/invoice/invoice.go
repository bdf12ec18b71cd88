package invoice

import (
	"strings"
	"time"

	"github.com/noah-isme/crossbill/internal/pricing"
)

// DateLayout is the format used for invoice dates.
const DateLayout = "2006-01-02"

// Details holds the header fields of an invoice session.
type Details struct {
	InvoiceNumber          string
	InvoiceDate            string
	VendorName             string
	DeliveryStreet         string
	DeliveryCity           string
	DeliveryZip            string
	CDTFATaxRate           string
	LookupMessage          string
	ApplyMarkupToAll       bool
	GlobalMarkupPercentage pricing.Input
}

// HasCompleteAddress reports whether street, city and zip are all filled in.
func (d Details) HasCompleteAddress() bool {
	return strings.TrimSpace(d.DeliveryStreet) != "" &&
		strings.TrimSpace(d.DeliveryCity) != "" &&
		strings.TrimSpace(d.DeliveryZip) != ""
}

// Invoice is one revision of an invoice session. Values are treated as
// immutable: Reduce and Recompute always return a new record.
type Invoice struct {
	Revision  int
	Details   Details
	LineItems []pricing.LineItem
	Totals    pricing.Totals
}

// New returns a fresh invoice with a single empty line dated now (UTC).
func New(now time.Time) Invoice {
	return Recompute(Invoice{
		Details:   Details{InvoiceDate: now.UTC().Format(DateLayout)},
		LineItems: []pricing.LineItem{newLine(1)},
	})
}

// Recompute derives every line's markup, tax and total plus the invoice
// totals. Callers invoke it after each mutation.
func Recompute(inv Invoice) Invoice {
	out := inv.clone()
	out.LineItems, out.Totals = pricing.ComputeAll(inv.LineItems, inv.Details.ApplyMarkupToAll, inv.Details.GlobalMarkupPercentage)
	return out
}

// Line returns the line item with the given id.
func (inv Invoice) Line(id int) (pricing.LineItem, bool) {
	if i := inv.indexOf(id); i >= 0 {
		return inv.LineItems[i], true
	}
	return pricing.LineItem{}, false
}

func (inv Invoice) clone() Invoice {
	out := inv
	out.LineItems = make([]pricing.LineItem, len(inv.LineItems))
	copy(out.LineItems, inv.LineItems)
	return out
}

func (inv Invoice) indexOf(id int) int {
	for i, it := range inv.LineItems {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (inv Invoice) nextLineID() int {
	maxID := 0
	for _, it := range inv.LineItems {
		if it.ID > maxID {
			maxID = it.ID
		}
	}
	return maxID + 1
}

func newLine(id int) pricing.LineItem {
	return pricing.LineItem{
		ID:                 id,
		Cost:               "0",
		MarkupPercentage:   "0",
		SalesTaxPercentage: "0",
	}
}
