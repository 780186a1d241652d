package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/http/handlers"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/middleware"
)

// NewRouter assembles the engine's HTTP surface.
func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.Locale(app.Config.DefaultLocale))

	r.Get("/v1/healthz", app.Health)
	r.Method(stdhttp.MethodGet, "/metrics", app.Metrics.Handler())

	// Signature-checked, not session-authenticated.
	r.Post("/payments/webhook", app.PaymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.Config.JWTSecret))

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", app.ListJobs)
			r.With(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute)).
				Post("/{kind}", app.SubmitJob)
			r.Get("/{kind}/{job_id}/status", app.JobStatus)
		})

		r.Route("/credits", func(r chi.Router) {
			r.Get("/balance", app.CreditBalance)
			r.Get("/transactions", app.CreditTransactions)
		})
	})

	return r
}
