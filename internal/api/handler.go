package api

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/phiphung-web/redirect/internal/engine"
	"github.com/phiphung-web/redirect/internal/geo"
	"github.com/phiphung-web/redirect/internal/observability"
	"github.com/phiphung-web/redirect/internal/reqctx"
	"github.com/phiphung-web/redirect/internal/safepage"
	"github.com/phiphung-web/redirect/internal/traffic"
)

// RedirectCounter is the approximate dashboard tally bump.
type RedirectCounter interface {
	IncrementRedirects(ctx context.Context, campaignID int64) error
}

// DecisionHandler serves the catch-all cloaking endpoint.
type DecisionHandler struct {
	Eng     *engine.Engine
	Geo     geo.Resolver
	Rec     *traffic.Recorder
	Counter RedirectCounter
}

func NewDecisionHandler(eng *engine.Engine, g geo.Resolver, rec *traffic.Recorder, counter RedirectCounter) *DecisionHandler {
	return &DecisionHandler{Eng: eng, Geo: g, Rec: rec, Counter: counter}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decide runs the full pipeline for one visit. Every terminal outcome
// except an unresolved domain records exactly one traffic event, off the
// response path.
func (h *DecisionHandler) Decide(w http.ResponseWriter, r *http.Request) {
	visit := reqctx.Build(r, h.Geo)

	dom := h.Eng.ResolveDomain(visit.Host)
	if dom == nil {
		// terminal: nothing is known about this host, nothing is logged
		http.Error(w, "Domain Error", http.StatusNotFound)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("host", visit.Host).Msg("decision pipeline panic")
			h.record(dom, nil, visit, engine.OutcomeError, "")
			h.renderSafe(w, dom, visit, http.StatusInternalServerError)
		}
	}()

	dec := engine.Decide(dom, visit)
	observability.DecisionsTotal.WithLabelValues(string(dec.Outcome)).Inc()

	var campID *int64
	if dec.Campaign != nil {
		id := dec.Campaign.ID
		campID = &id
	}

	switch dec.Outcome {
	case engine.OutcomeRedirect:
		// counter bump is best-effort and not awaited
		go func(id int64) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := h.Counter.IncrementRedirects(ctx, id); err != nil {
				log.Error().Err(err).Int64("campaign_id", id).Msg("redirect counter bump failed")
			}
		}(dec.Campaign.ID)

		h.record(dom, campID, visit, dec.Outcome, "")
		http.Redirect(w, r, dec.RedirectURL, http.StatusFound)

	case engine.OutcomeError:
		log.Error().Str("detail", dec.Detail).Int64("domain_id", dom.ID).Msg("decision failed unexpectedly")
		h.record(dom, campID, visit, dec.Outcome, dec.Detail)
		h.renderSafe(w, dom, visit, http.StatusInternalServerError)

	default:
		h.record(dom, campID, visit, dec.Outcome, dec.Detail)
		h.renderSafe(w, dom, visit, http.StatusOK)
	}
}

func (h *DecisionHandler) record(dom *engine.Domain, campID *int64, visit *reqctx.Context, outcome engine.Outcome, detail string) {
	h.Rec.Record(traffic.Event{
		DomainID:   dom.ID,
		CampaignID: campID,
		IP:         visit.IP,
		Country:    visit.Country,
		City:       visit.City,
		Device:     visit.Device,
		OS:         visit.OS,
		Browser:    visit.Browser,
		UserAgent:  visit.UserAgent,
		Outcome:    string(outcome),
		Meta: traffic.Meta{
			Referer:    visit.Referer,
			RequestURL: visit.RequestURL,
			Detail:     detail,
		},
	})
}

func (h *DecisionHandler) renderSafe(w http.ResponseWriter, dom *engine.Domain, visit *reqctx.Context, status int) {
	var buf bytes.Buffer
	data := safepage.Fill(dom.SafeContent, visit.Host)
	if err := safepage.Render(&buf, dom.SafeTemplate, data); err != nil {
		log.Error().Err(err).Str("template", dom.SafeTemplate).Msg("safe page render failed")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte("<h1>" + html.EscapeString(visit.Host) + "</h1>"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
