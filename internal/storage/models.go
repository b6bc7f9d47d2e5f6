package storage

import "time"

// DomainRow is one active domain with every campaign it owns, as loaded
// for a snapshot build. Rule and filter JSON stays raw here; the engine
// parses it once per snapshot.
type DomainRow struct {
	ID           int64
	Host         string
	SafeTemplate string
	SafeContent  []byte // jsonb, may be nil
	Campaigns    []CampaignRow
}

type CampaignRow struct {
	ID        int64
	DomainID  int64
	Name      string
	ParamKey  string
	ParamVal  string
	TargetURL string
	Active    bool
	Rules     []byte // jsonb array, may be nil
	Filters   []byte // jsonb object, may be nil
}

// EventRow is one traffic_logs insert. CampaignID nil means no campaign
// matched at all.
type EventRow struct {
	DomainID   int64
	CampaignID *int64
	IP         string
	Country    string
	City       string
	Device     string
	OS         string
	Browser    string
	Action     string
	Meta       string // encoded metadata, stored in the referer column
	UserAgent  string
}

// BucketRow is one aggregation bucket as returned by the store.
type BucketRow struct {
	Bucket    time.Time
	Redirects int64
	Safe      int64
}

// TotalsRow are window-wide counts.
type TotalsRow struct {
	Redirects int64
	Safe      int64
	Total     int64
}

// CountryRow is one row of the per-country breakdown.
type CountryRow struct {
	Country   string
	Hits      int64
	Redirects int64
}

// LogRow is one raw traffic event read back for reporting.
type LogRow struct {
	ID         int64
	CampaignID *int64
	DomainID   int64
	IP         string
	Country    string
	City       string
	Device     string
	OS         string
	Browser    string
	Action     string
	Meta       string
	UserAgent  string
	CreatedAt  time.Time
}

// CampaignInfo is the identity slice of a campaign used by reporting.
type CampaignInfo struct {
	ID        int64
	DomainID  int64
	Name      string
	TargetURL string
	Active    bool
}

// DomainInfo is the identity slice of a domain used by verification.
type DomainInfo struct {
	ID     int64
	Host   string
	Status string
}
