package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phiphung-web/redirect/internal/config"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) PgxPool() *pgxpool.Pool { return s.pool }

// LoadActiveDomains loads every active domain with all of its campaigns,
// active or not. Inactive campaigns must stay matchable so their hits log
// a campaign id.
func (s *Store) LoadActiveDomains(ctx context.Context) ([]DomainRow, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT d.id, d.domain_url, d.safe_template, d.safe_content,
		       c.id, c.name, c.param_key, c.param_value, c.target_url,
		       c.is_active, c.rules, c.filters
		FROM domains d
		LEFT JOIN campaigns c ON c.domain_id = d.id
		WHERE d.status = 'active'
		ORDER BY d.id, c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query domains: %w", err)
	}
	defer rows.Close()

	domains := map[int64]*DomainRow{}

	for rows.Next() {
		var (
			domID          int64
			host           string
			tpl            sql.NullString
			content        []byte
			campID         sql.NullInt64
			name, key, val sql.NullString
			target         sql.NullString
			active         sql.NullBool
			ruleJSON       []byte
			filterJSON     []byte
		)
		if err := rows.Scan(&domID, &host, &tpl, &content,
			&campID, &name, &key, &val, &target, &active, &ruleJSON, &filterJSON); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		d, ok := domains[domID]
		if !ok {
			d = &DomainRow{
				ID:           domID,
				Host:         host,
				SafeTemplate: tpl.String,
				SafeContent:  content,
			}
			domains[domID] = d
		}

		if campID.Valid {
			d.Campaigns = append(d.Campaigns, CampaignRow{
				ID:        campID.Int64,
				DomainID:  domID,
				Name:      name.String,
				ParamKey:  key.String,
				ParamVal:  val.String,
				TargetURL: target.String,
				Active:    active.Bool,
				Rules:     ruleJSON,
				Filters:   filterJSON,
			})
		}
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	// flatten map -> slice, stable order
	out := make([]DomainRow, 0, len(domains))
	for _, d := range domains {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InsertTrafficEvent appends one event. Append-only: nothing here updates
// or deletes.
func (s *Store) InsertTrafficEvent(ctx context.Context, ev EventRow) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO traffic_logs
		(campaign_id, domain_id, ip, country, city, device_type, os_name, browser_name, action, referer, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, ev.CampaignID, ev.DomainID, ev.IP, ev.Country, nullable(ev.City),
		ev.Device, ev.OS, ev.Browser, ev.Action, nullable(ev.Meta), ev.UserAgent)
	if err != nil {
		return fmt.Errorf("insert traffic event: %w", err)
	}
	return nil
}

// IncrementRedirects bumps the approximate dashboard counter. Lost updates
// are acceptable; aggregation over traffic_logs is the authoritative count.
func (s *Store) IncrementRedirects(ctx context.Context, campaignID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET stats_redirects = stats_redirects + 1 WHERE id = $1`, campaignID)
	if err != nil {
		return fmt.Errorf("increment redirects: %w", err)
	}
	return nil
}

func (s *Store) CampaignByID(ctx context.Context, id int64) (CampaignInfo, error) {
	var c CampaignInfo
	err := s.pool.QueryRow(ctx, `
		SELECT id, domain_id, name, target_url, is_active FROM campaigns WHERE id = $1
	`, id).Scan(&c.ID, &c.DomainID, &c.Name, &c.TargetURL, &c.Active)
	if err == pgx.ErrNoRows {
		return CampaignInfo{}, ErrNotFound
	}
	if err != nil {
		return CampaignInfo{}, fmt.Errorf("campaign by id: %w", err)
	}
	return c, nil
}

func (s *Store) DomainByID(ctx context.Context, id int64) (DomainInfo, error) {
	var d DomainInfo
	err := s.pool.QueryRow(ctx,
		`SELECT id, domain_url, status FROM domains WHERE id = $1`, id,
	).Scan(&d.ID, &d.Host, &d.Status)
	if err == pgx.ErrNoRows {
		return DomainInfo{}, ErrNotFound
	}
	if err != nil {
		return DomainInfo{}, fmt.Errorf("domain by id: %w", err)
	}
	return d, nil
}

// ActivateDomain flips a domain to active after DNS verification.
func (s *Store) ActivateDomain(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE domains SET status = 'active' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("activate domain: %w", err)
	}
	return nil
}

// BucketCounts groups redirect vs safe-page hits by date_trunc unit over
// [start, end).
func (s *Store) BucketCounts(ctx context.Context, campaignID int64, start, end time.Time, unit string) ([]BucketRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date_trunc($4::text, created_at) AS bucket,
		       COUNT(*) FILTER (WHERE action = 'redirect') AS redirects,
		       COUNT(*) FILTER (WHERE action LIKE 'safe_page%') AS safe
		FROM traffic_logs
		WHERE campaign_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY bucket
		ORDER BY bucket ASC
	`, campaignID, start, end, unit)
	if err != nil {
		return nil, fmt.Errorf("bucket counts: %w", err)
	}
	defer rows.Close()

	var out []BucketRow
	for rows.Next() {
		var b BucketRow
		if err := rows.Scan(&b.Bucket, &b.Redirects, &b.Safe); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) WindowTotals(ctx context.Context, campaignID int64, start, end time.Time) (TotalsRow, error) {
	var t TotalsRow
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE action = 'redirect'),
		       COUNT(*) FILTER (WHERE action LIKE 'safe_page%'),
		       COUNT(*)
		FROM traffic_logs
		WHERE campaign_id = $1 AND created_at >= $2 AND created_at < $3
	`, campaignID, start, end).Scan(&t.Redirects, &t.Safe, &t.Total)
	if err != nil {
		return TotalsRow{}, fmt.Errorf("window totals: %w", err)
	}
	return t, nil
}

func (s *Store) CountryBreakdown(ctx context.Context, campaignID int64, start, end time.Time, limit int) ([]CountryRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT country,
		       COUNT(*) AS hits,
		       COUNT(*) FILTER (WHERE action = 'redirect') AS redirects
		FROM traffic_logs
		WHERE campaign_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY country
		ORDER BY hits DESC
		LIMIT $4
	`, campaignID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("country breakdown: %w", err)
	}
	defer rows.Close()

	var out []CountryRow
	for rows.Next() {
		var c CountryRow
		if err := rows.Scan(&c.Country, &c.Hits, &c.Redirects); err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) RecentEvents(ctx context.Context, campaignID int64, start, end time.Time, limit int) ([]LogRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, campaign_id, domain_id, ip, country,
		       COALESCE(city, ''), device_type, os_name, browser_name,
		       action, COALESCE(referer, ''), user_agent, created_at
		FROM traffic_logs
		WHERE campaign_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY id DESC
		LIMIT $4
	`, campaignID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	var out []LogRow
	for rows.Next() {
		var l LogRow
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.DomainID, &l.IP, &l.Country,
			&l.City, &l.Device, &l.OS, &l.Browser, &l.Action, &l.Meta, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// EarliestEventTime backs the "all" window preset. ok is false when the
// campaign has no events yet.
func (s *Store) EarliestEventTime(ctx context.Context, campaignID int64) (time.Time, bool, error) {
	var min sql.NullTime
	err := s.pool.QueryRow(ctx,
		`SELECT MIN(created_at) FROM traffic_logs WHERE campaign_id = $1`, campaignID,
	).Scan(&min)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("earliest event: %w", err)
	}
	return min.Time, min.Valid, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
