package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/crossbill/internal/common"
	"github.com/noah-isme/crossbill/internal/obs"
	"github.com/noah-isme/crossbill/internal/pricing"
)

// Handler exposes stateless invoice calculation over HTTP. Nothing is stored
// between requests: the caller sends the current revision and gets the next.
type Handler struct {
	Validate *validator.Validate
	Now      func() time.Time
}

type calculateRequest struct {
	Revision  int             `json:"revision" validate:"gte=0"`
	Details   detailsPayload  `json:"details"`
	LineItems []linePayload   `json:"lineItems" validate:"max=500,unique=ID,dive"`
	Actions   []actionPayload `json:"actions" validate:"max=100,dive"`
}

type detailsPayload struct {
	InvoiceNumber          string        `json:"invoiceNumber" validate:"max=100"`
	InvoiceDate            string        `json:"invoiceDate" validate:"omitempty,datetime=2006-01-02"`
	VendorName             string        `json:"vendorName" validate:"max=200"`
	DeliveryStreet         string        `json:"deliveryStreet" validate:"max=200"`
	DeliveryCity           string        `json:"deliveryCity" validate:"max=100"`
	DeliveryZip            string        `json:"deliveryZip" validate:"max=20"`
	CDTFATaxRate           pricing.Input `json:"cdtfaTaxRate" validate:"max=32"`
	LookupMessage          string        `json:"lookupMessage" validate:"max=500"`
	ApplyMarkupToAll       bool          `json:"applyMarkupToAll"`
	GlobalMarkupPercentage pricing.Input `json:"globalMarkupPercentage" validate:"max=32"`
}

type linePayload struct {
	ID                 int           `json:"id" validate:"gte=1"`
	Description        string        `json:"description" validate:"max=500"`
	Cost               pricing.Input `json:"cost" validate:"max=32"`
	MarkupPercentage   pricing.Input `json:"markupPercentage" validate:"max=32"`
	SalesTaxPercentage pricing.Input `json:"salesTaxPercentage" validate:"max=32"`
}

type actionPayload struct {
	Type        string        `json:"type" validate:"required,oneof=add_line remove_line update_line update_details set_apply_markup_to_all set_global_markup lookup_pending record_lookup"`
	ID          int           `json:"id"`
	Field       string        `json:"field" validate:"max=64"`
	Value       pricing.Input `json:"value" validate:"max=500"`
	Enabled     bool          `json:"enabled"`
	Found       bool          `json:"found"`
	Unreachable bool          `json:"unreachable"`
	TaxRate     pricing.Input `json:"taxRate" validate:"max=32"`
	Message     string        `json:"message" validate:"max=500"`
}

// New returns a fresh invoice with one empty line.
func (h *Handler) New(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": ViewOf(New(h.now()))})
}

// Calculate replays the requested actions against the posted invoice and
// returns the recomputed next revision.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var payload calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		countCalculation("bad_request")
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validator().Struct(payload); err != nil {
		countCalculation("invalid")
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid invoice", validationDetails(err))
		return
	}

	actions := make([]Action, 0, len(payload.Actions))
	for _, a := range payload.Actions {
		actions = append(actions, a.toAction())
	}
	next, err := ReduceAll(h.fromPayload(payload), actions...)
	if err != nil {
		countCalculation("rejected")
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("invoice action rejected")
		common.WriteError(w, common.NewAppError("INVALID_ACTION", err.Error(), http.StatusUnprocessableEntity, err))
		return
	}
	countCalculation("ok")
	common.JSON(w, http.StatusOK, map[string]any{"data": ViewOf(Recompute(next))})
}

func (h *Handler) fromPayload(p calculateRequest) Invoice {
	var inv Invoice
	if len(p.LineItems) == 0 {
		inv = New(h.now())
	} else {
		inv.LineItems = make([]pricing.LineItem, 0, len(p.LineItems))
		for _, it := range p.LineItems {
			inv.LineItems = append(inv.LineItems, pricing.LineItem{
				ID:                 it.ID,
				Description:        it.Description,
				Cost:               it.Cost,
				MarkupPercentage:   it.MarkupPercentage,
				SalesTaxPercentage: it.SalesTaxPercentage,
			})
		}
	}
	inv.Revision = p.Revision
	date := h.now().UTC().Format(DateLayout)
	if p.Details.InvoiceDate != "" {
		date = p.Details.InvoiceDate
	}
	inv.Details = Details{
		InvoiceNumber:          p.Details.InvoiceNumber,
		InvoiceDate:            date,
		VendorName:             p.Details.VendorName,
		DeliveryStreet:         p.Details.DeliveryStreet,
		DeliveryCity:           p.Details.DeliveryCity,
		DeliveryZip:            p.Details.DeliveryZip,
		CDTFATaxRate:           string(p.Details.CDTFATaxRate),
		LookupMessage:          p.Details.LookupMessage,
		ApplyMarkupToAll:       p.Details.ApplyMarkupToAll,
		GlobalMarkupPercentage: p.Details.GlobalMarkupPercentage,
	}
	return inv
}

func (a actionPayload) toAction() Action {
	switch a.Type {
	case "add_line":
		return AddLine{}
	case "remove_line":
		return RemoveLine{ID: a.ID}
	case "update_line":
		return UpdateLine{ID: a.ID, Field: a.Field, Value: string(a.Value)}
	case "update_details":
		return UpdateDetails{Field: a.Field, Value: string(a.Value)}
	case "set_apply_markup_to_all":
		return SetApplyMarkupToAll{Enabled: a.Enabled}
	case "set_global_markup":
		return SetGlobalMarkup{Value: string(a.Value)}
	case "lookup_pending":
		return LookupPending{}
	case "record_lookup":
		return RecordLookup{Found: a.Found, Unreachable: a.Unreachable, TaxRate: string(a.TaxRate), Message: a.Message}
	}
	// unreachable after validation
	return nil
}

var defaultValidate = validator.New(validator.WithRequiredStructEnabled())

func (h *Handler) validator() *validator.Validate {
	if h.Validate == nil {
		return defaultValidate
	}
	return h.Validate
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return out
}

func countCalculation(result string) {
	if obs.InvoiceCalculationsTotal != nil {
		obs.InvoiceCalculationsTotal.WithLabelValues(result).Inc()
	}
}
