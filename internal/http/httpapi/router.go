package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"agencydesk/internal/http/handlers"
	"agencydesk/internal/middleware"
)

// Options configures the router.
type Options struct {
	JWTSecret          string
	CORSAllowedOrigins []string
	RateLimitPerMin    int
	Registry           *prometheus.Registry
	Logger             zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.AccessLog(opts.Logger),
		middleware.CORS(opts.CORSAllowedOrigins),
	)
	if opts.Registry != nil {
		r.Use(middleware.NewHTTPMetrics(opts.Registry).Handler)
		r.Method(http.MethodGet, "/metrics", handlers.MetricsHandler(opts.Registry))
	}

	r.Get("/v1/healthz", app.Health)

	// Processor callbacks authenticate by signature, not session.
	r.Post("/v1/webhooks/stripe", app.StripeWebhook)
	r.Get("/stripe/success", app.CheckoutReturn)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		r.Post("/v1/auth/register", app.Register)
		r.Post("/v1/auth/token-login", app.TokenLogin)
		r.Post("/v1/billing/checkout", app.CreateCheckout)
		r.Post("/v1/billing/finalize", app.Finalize)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))
		r.Get("/v1/subscription/me", app.SubscriptionMe)
		r.Get("/v1/subscription/history", app.SubscriptionHistory)
		r.Post("/v1/billing/portal", app.BillingPortal)
		r.Get("/v1/invoices", app.ListInvoices)
		r.Post("/v1/payments/request", app.SendPaymentRequest)
		r.Post("/v1/payments/intent", app.CreatePaymentIntent)
	})

	return r
}
