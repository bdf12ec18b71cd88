package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/crossbill/internal/config"
	"github.com/noah-isme/crossbill/internal/health"
	"github.com/noah-isme/crossbill/internal/invoice"
	"github.com/noah-isme/crossbill/internal/obs"
	"github.com/noah-isme/crossbill/internal/security"
	"github.com/noah-isme/crossbill/internal/taxrate"
)

// legacyTaxRatePath is the function route existing frontends call.
const legacyTaxRatePath = "/.netlify/functions/getTaxRate"

type routerDeps struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Metrics     *obs.HTTPMetrics
	Tracing     bool
	TaxRate     taxrate.Looker
	Health      health.Handler
	Pprof       bool
	PprofUser   string
	PprofPass   string
	ExposeStats bool
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.Config
	validate := validator.New(validator.WithRequiredStructEnabled())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	if d.ExposeStats {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.Pprof {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), d.PprofUser, d.PprofPass))
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	headers := security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.SecurityHSTS, NoStore: true}
	rates := &taxrate.Handler{Lookup: d.TaxRate, Validate: validate, Logger: d.Logger}
	invoices := &invoice.Handler{Validate: validate}

	r.Group(func(api chi.Router) {
		api.Use(headers.Middleware)
		// method checks happen in the handler so non-GET calls get the JSON 405 body
		api.Handle(legacyTaxRatePath, rates)
		api.Route("/api/v1", func(v chi.Router) {
			v.Handle("/tax-rate", rates)
			v.Route("/invoices", func(inv chi.Router) {
				inv.Get("/new", invoices.New)
				inv.With(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware).Post("/calculate", invoices.Calculate)
			})
		})
	})
	return r
}
