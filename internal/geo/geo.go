package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Location is the resolved origin of a client IP. Country is never empty:
// unresolved lookups carry the configured fallback code so they still hit
// country filters instead of bypassing them.
type Location struct {
	Country string
	City    string
}

// Resolver maps a client IP string to a Location.
type Resolver interface {
	Lookup(ip string) Location
}

// MaxMind resolves against a GeoIP2/GeoLite2 City database file.
type MaxMind struct {
	db       *geoip2.Reader
	fallback string
}

func OpenMaxMind(path, fallbackCountry string) (*MaxMind, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &MaxMind{db: db, fallback: fallbackCountry}, nil
}

func (m *MaxMind) Lookup(ip string) Location {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{Country: m.fallback}
	}
	rec, err := m.db.City(parsed)
	if err != nil || rec == nil || rec.Country.IsoCode == "" {
		return Location{Country: m.fallback}
	}
	return Location{
		Country: rec.Country.IsoCode,
		City:    rec.City.Names["en"],
	}
}

func (m *MaxMind) Close() error { return m.db.Close() }

// Static always answers with a fixed location. It backs deployments without
// a GeoIP database and test setups.
type Static struct {
	Location Location
}

func (s Static) Lookup(string) Location { return s.Location }
