package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/phiphung-web/redirect/internal/report"
	"github.com/phiphung-web/redirect/internal/storage"
)

// DomainAdmin is the slice of the store the verification endpoint needs.
type DomainAdmin interface {
	DomainByID(ctx context.Context, id int64) (storage.DomainInfo, error)
	ActivateDomain(ctx context.Context, id int64) error
}

// HostResolver is DNS lookup, injectable for tests.
type HostResolver func(ctx context.Context, host string) ([]string, error)

// ReportHandler serves the ops-side read interface: aggregated reports,
// the monthly CSV export, and domain verification.
type ReportHandler struct {
	Svc     *report.Service
	Domains DomainAdmin
	Resolve HostResolver
}

func NewReportHandler(svc *report.Service, domains DomainAdmin) *ReportHandler {
	return &ReportHandler{
		Svc:     svc,
		Domains: domains,
		Resolve: net.DefaultResolver.LookupHost,
	}
}

func (h *ReportHandler) CampaignReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}

	q := r.URL.Query()
	now := time.Now()
	win, err := h.Svc.ResolveRequestWindow(r.Context(), id,
		q.Get("preset"), q.Get("start_date"), q.Get("end_date"), now)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rep, err := h.Svc.Campaign(r.Context(), id, win)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "campaign not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("campaign_id", id).Msg("report build failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "report failed"})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *ReportHandler) CampaignCSV(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}
	month := r.URL.Query().Get("month")
	t, err := time.ParseInLocation("2006-01", month, time.Local)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "month must be YYYY-MM"})
		return
	}

	var buf bytes.Buffer
	err = h.Svc.MonthlyCSV(r.Context(), id, t.Year(), t.Month(), t.Location(), &buf)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "campaign not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("campaign_id", id).Msg("csv export failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "export failed"})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="campaign_%d_%s.csv"`, id, month))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// VerifyDomain resolves the stored hostname and activates the domain when
// DNS answers. Failure leaves the status untouched.
func (h *ReportHandler) VerifyDomain(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "msg": "invalid domain id"})
		return
	}

	dom, err := h.Domains.DomainByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "msg": "domain not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("domain_id", id).Msg("domain lookup failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}

	addrs, err := h.Resolve(r.Context(), dom.Host)
	if err != nil || len(addrs) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "msg": "DNS not pointed"})
		return
	}
	if err := h.Domains.ActivateDomain(r.Context(), id); err != nil {
		log.Error().Err(err).Int64("domain_id", id).Msg("domain activation failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "msg": "OK: " + addrs[0]})
}
