package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// MonthlyCSV writes the per-day export for one calendar month:
// day,redirects,safe,total,pass_rate_percent. Every day of the month gets
// a row; days without traffic are zero.
func (s *Service) MonthlyCSV(ctx context.Context, campaignID int64, year int, month time.Month, loc *time.Location, out io.Writer) error {
	if _, err := s.st.CampaignByID(ctx, campaignID); err != nil {
		return err
	}

	w := MonthWindow(year, month, loc)
	rows, err := s.st.BucketCounts(ctx, campaignID, w.Start, w.End, string(BucketDay))
	if err != nil {
		return fmt.Errorf("bucket counts: %w", err)
	}

	byDay := make(map[string]Bucket, len(rows))
	for _, r := range rows {
		byDay[r.Bucket.Format("2006-01-02")] = Bucket{Redirects: r.Redirects, Safe: r.Safe}
	}

	cw := csv.NewWriter(out)
	if err := cw.Write([]string{"day", "redirects", "safe", "total", "pass_rate_percent"}); err != nil {
		return err
	}
	for day := w.Start; day.Before(w.End); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		b := byDay[key]
		total := b.Redirects + b.Safe
		rec := []string{
			key,
			strconv.FormatInt(b.Redirects, 10),
			strconv.FormatInt(b.Safe, 10),
			strconv.FormatInt(total, 10),
			strconv.FormatFloat(PassRate(b.Redirects, total), 'f', 1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
