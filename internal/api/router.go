package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phiphung-web/redirect/internal/observability"
)

// PublicRouter is the catch-all decision surface, served on the hostname
// traffic actually hits.
func PublicRouter(h *DecisionHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/*", h.Decide)
	return r
}

// OpsRouter carries the reporting read interface, health, and metrics on
// a separate listener so the public catch-all never shadows them.
func OpsRouter(h *ReportHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/v1/campaigns/{id}/report", h.CampaignReport)
	r.Get("/v1/campaigns/{id}/report.csv", h.CampaignCSV)
	r.Post("/v1/domains/{id}/verify", h.VerifyDomain)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())
	return r
}
