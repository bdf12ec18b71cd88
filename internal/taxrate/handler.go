package taxrate

import (
	"context"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/crossbill/internal/common"
	"github.com/noah-isme/crossbill/internal/obs"
)

// Response messages of the lookup endpoint.
const (
	MsgMethodNotAllowed = "Method Not Allowed"
	MsgMissingParams    = "Missing address, city, or zip query parameters."
	MsgInternal         = "Internal Server Error: Failed to fetch tax rate."
)

// Looker resolves an address to a tax rate percentage.
type Looker interface {
	Lookup(ctx context.Context, addr Address) (string, error)
}

// Handler serves GET lookups and forwards them to the upstream rate API.
type Handler struct {
	Lookup   Looker
	Validate *validator.Validate
	Logger   zerolog.Logger
}

type lookupQuery struct {
	Address string `validate:"required"`
	City    string `validate:"required"`
	Zip     string `validate:"required"`
}

// ServeHTTP handles one lookup. Upstream failures are logged and never
// returned to the caller.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		countLookup("method_not_allowed")
		w.Header().Set("Allow", http.MethodGet)
		common.JSONMessage(w, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
		return
	}

	params := r.URL.Query()
	q := lookupQuery{
		Address: params.Get("address"),
		City:    params.Get("city"),
		Zip:     params.Get("zip"),
	}
	if err := h.validator().Struct(q); err != nil {
		countLookup("bad_request")
		common.JSONMessage(w, http.StatusBadRequest, MsgMissingParams)
		return
	}

	// an in-flight lookup is not abandoned when the caller disconnects
	ctx := context.WithoutCancel(r.Context())
	rate, err := h.Lookup.Lookup(ctx, Address{Street: q.Address, City: q.City, Zip: q.Zip})
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			countLookup("not_found")
			common.JSONMessage(w, http.StatusNotFound, nf.Message)
			return
		}
		countLookup("upstream_error")
		h.logger(r).Error().Err(err).Str("zip", q.Zip).Msg("tax rate lookup failed")
		common.JSONMessage(w, http.StatusInternalServerError, MsgInternal)
		return
	}
	countLookup("ok")
	common.JSON(w, http.StatusOK, map[string]string{"taxRate": rate})
}

func (h *Handler) validator() *validator.Validate {
	if h.Validate == nil {
		return defaultValidate
	}
	return h.Validate
}

var defaultValidate = validator.New(validator.WithRequiredStructEnabled())

func (h *Handler) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &h.Logger
}

func countLookup(result string) {
	if obs.TaxRateLookupTotal != nil {
		obs.TaxRateLookupTotal.WithLabelValues(result).Inc()
	}
}
