package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ivankomartin/deposit-console/pkg/health"
	"github.com/ivankomartin/deposit-console/pkg/middleware"
)

// ServiceName labels the console's HTTP metrics and spans.
const ServiceName = "deposit-console"

// RouterOptions holds the optional HTTP surface settings.
type RouterOptions struct {
	// CORSOrigins are the browser origins allowed to call /console.
	CORSOrigins []string
	// PprofCIDRs enables /debug/pprof for those networks when non-empty.
	PprofCIDRs []string
}

// NewRouter creates a chi router with all console routes registered.
func NewRouter(
	products *ProductHandler,
	reference *ReferenceHandler,
	healthHandler *health.Handler,
	opts RouterOptions,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: opts.CORSOrigins}))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if len(opts.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, opts.PprofCIDRs, logger)
	}

	r.Route("/console", func(r chi.Router) {
		r.Use(chimw.Timeout(DefaultListWait + 5*time.Second))

		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)

			r.Get("/products", products.ListProducts)
			r.Post("/products", products.CreateProduct)
			r.Get("/products/{id}", products.GetProduct)
			r.Get("/dashboard", reference.Dashboard)
		})

		// Reference lists change rarely.
		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(time.Minute))

			r.Get("/companies", reference.ListCompanies)
			r.Get("/users", reference.ListUsers)
		})
	})

	return r
}
