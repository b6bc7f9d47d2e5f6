package report

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/phiphung-web/redirect/internal/storage"
	"github.com/phiphung-web/redirect/internal/traffic"
)

// Stats is the read-only slice of the store the aggregator consumes. It
// issues no writes; a write committing mid-query may or may not be seen.
type Stats interface {
	CampaignByID(ctx context.Context, id int64) (storage.CampaignInfo, error)
	BucketCounts(ctx context.Context, campaignID int64, start, end time.Time, unit string) ([]storage.BucketRow, error)
	WindowTotals(ctx context.Context, campaignID int64, start, end time.Time) (storage.TotalsRow, error)
	CountryBreakdown(ctx context.Context, campaignID int64, start, end time.Time, limit int) ([]storage.CountryRow, error)
	RecentEvents(ctx context.Context, campaignID int64, start, end time.Time, limit int) ([]storage.LogRow, error)
	EarliestEventTime(ctx context.Context, campaignID int64) (time.Time, bool, error)
}

const (
	topCountries   = 10
	maxRecentLogs  = 2000
	defaultRecents = 50
)

type Service struct {
	st          Stats
	recentLimit int
}

func NewService(st Stats, recentLimit int) *Service {
	if recentLimit <= 0 {
		recentLimit = defaultRecents
	}
	if recentLimit > maxRecentLogs {
		recentLimit = maxRecentLogs
	}
	return &Service{st: st, recentLimit: recentLimit}
}

// Summary are window-wide totals with the derived pass rate.
type Summary struct {
	Redirects int64   `json:"redirects"`
	Safe      int64   `json:"safe"`
	Total     int64   `json:"total"`
	PassRate  float64 `json:"pass_rate"`
}

// Delta is current minus previous, per metric.
type Delta struct {
	Redirects int64   `json:"redirects"`
	Safe      int64   `json:"safe"`
	PassRate  float64 `json:"pass_rate"`
}

// Growth is the percentage change versus the previous period. A nil field
// means the previous value was zero: undefined, not infinite.
type Growth struct {
	Redirects *float64 `json:"redirects"`
	Safe      *float64 `json:"safe"`
	PassRate  *float64 `json:"pass_rate"`
}

type Bucket struct {
	Start     time.Time `json:"start"`
	Redirects int64     `json:"redirects"`
	Safe      int64     `json:"safe"`
}

type Country struct {
	Country   string `json:"country"`
	Hits      int64  `json:"hits"`
	Redirects int64  `json:"redirects"`
}

// LogEntry is one raw event with its metadata decoded.
type LogEntry struct {
	ID         int64     `json:"id"`
	CampaignID *int64    `json:"campaign_id"`
	IP         string    `json:"ip"`
	Country    string    `json:"country"`
	City       string    `json:"city,omitempty"`
	Device     string    `json:"device"`
	OS         string    `json:"os"`
	Browser    string    `json:"browser"`
	Outcome    string    `json:"outcome"`
	Referer    string    `json:"referer,omitempty"`
	RequestURL string    `json:"request_url,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	UserAgent  string    `json:"user_agent"`
	CreatedAt  time.Time `json:"created_at"`
}

type Report struct {
	CampaignID int64      `json:"campaign_id"`
	Name       string     `json:"name"`
	Preset     string     `json:"preset"`
	BucketUnit string     `json:"bucket_unit"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	Summary    Summary    `json:"summary"`
	Previous   Summary    `json:"previous"`
	Delta      Delta      `json:"delta"`
	Growth     Growth     `json:"growth"`
	Buckets    []Bucket   `json:"buckets"`
	Countries  []Country  `json:"countries"`
	Logs       []LogEntry `json:"logs"`
}

// ResolveRequestWindow turns the raw query inputs of a reporting request
// into a concrete window, consulting the store only for the "all" preset.
func (s *Service) ResolveRequestWindow(ctx context.Context, campaignID int64, preset, startDate, endDate string, now time.Time) (Window, error) {
	if preset == "custom" || (preset == "" && startDate != "") {
		st, err := time.ParseInLocation("2006-01-02", startDate, now.Location())
		if err != nil {
			st = now
		}
		en, err := time.ParseInLocation("2006-01-02", endDate, now.Location())
		if err != nil {
			en = st
		}
		return CustomWindow(st, en), nil
	}
	if PresetNeedsEarliest(preset) {
		earliest, ok, err := s.st.EarliestEventTime(ctx, campaignID)
		if err != nil {
			return Window{}, err
		}
		return AllWindow(earliest, ok, now), nil
	}
	return ResolveWindow(preset, now)
}

// Campaign builds the full report for one campaign over the given window.
func (s *Service) Campaign(ctx context.Context, campaignID int64, w Window) (*Report, error) {
	camp, err := s.st.CampaignByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	rows, err := s.st.BucketCounts(ctx, campaignID, w.Start, w.End, string(w.Unit))
	if err != nil {
		return nil, fmt.Errorf("bucket counts: %w", err)
	}
	cur, err := s.st.WindowTotals(ctx, campaignID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("window totals: %w", err)
	}
	prevStart, prevEnd := w.Previous()
	prev, err := s.st.WindowTotals(ctx, campaignID, prevStart, prevEnd)
	if err != nil {
		return nil, fmt.Errorf("previous totals: %w", err)
	}
	countries, err := s.st.CountryBreakdown(ctx, campaignID, w.Start, w.End, topCountries)
	if err != nil {
		return nil, fmt.Errorf("country breakdown: %w", err)
	}
	logs, err := s.st.RecentEvents(ctx, campaignID, w.Start, w.End, s.recentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}

	rep := &Report{
		CampaignID: camp.ID,
		Name:       camp.Name,
		Preset:     w.Preset,
		BucketUnit: string(w.Unit),
		Start:      w.Start,
		End:        w.End,
		Summary:    summarize(cur),
		Previous:   summarize(prev),
	}
	rep.Delta, rep.Growth = compare(rep.Summary, rep.Previous)

	for _, b := range rows {
		rep.Buckets = append(rep.Buckets, Bucket{Start: b.Bucket, Redirects: b.Redirects, Safe: b.Safe})
	}
	for _, c := range countries {
		rep.Countries = append(rep.Countries, Country{Country: c.Country, Hits: c.Hits, Redirects: c.Redirects})
	}
	for _, l := range logs {
		rep.Logs = append(rep.Logs, decodeLog(l))
	}
	return rep, nil
}

func summarize(t storage.TotalsRow) Summary {
	return Summary{
		Redirects: t.Redirects,
		Safe:      t.Safe,
		Total:     t.Total,
		PassRate:  PassRate(t.Redirects, t.Total),
	}
}

func compare(cur, prev Summary) (Delta, Growth) {
	d := Delta{
		Redirects: cur.Redirects - prev.Redirects,
		Safe:      cur.Safe - prev.Safe,
		PassRate:  round1(cur.PassRate - prev.PassRate),
	}
	g := Growth{
		Redirects: GrowthPercent(d.Redirects, prev.Redirects),
		Safe:      GrowthPercent(d.Safe, prev.Safe),
	}
	// pass rate is already a percentage; its growth is the delta in points
	points := d.PassRate
	g.PassRate = &points
	return d, g
}

// PassRate is redirects over total as a percentage, one decimal place,
// zero for an empty window.
func PassRate(redirects, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return round1(float64(redirects) / float64(total) * 100)
}

// GrowthPercent is delta over previous as a percentage, one decimal place.
// nil when previous is zero.
func GrowthPercent(delta, previous int64) *float64 {
	if previous <= 0 {
		return nil
	}
	v := round1(float64(delta) / float64(previous) * 100)
	return &v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func decodeLog(l storage.LogRow) LogEntry {
	m := traffic.DecodeMeta(l.Meta)
	return LogEntry{
		ID:         l.ID,
		CampaignID: l.CampaignID,
		IP:         l.IP,
		Country:    l.Country,
		City:       l.City,
		Device:     l.Device,
		OS:         l.OS,
		Browser:    l.Browser,
		Outcome:    l.Action,
		Referer:    m.Referer,
		RequestURL: m.RequestURL,
		Detail:     m.Detail,
		UserAgent:  l.UserAgent,
		CreatedAt:  l.CreatedAt,
	}
}
