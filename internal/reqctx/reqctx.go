package reqctx

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/mileusna/useragent"

	"github.com/phiphung-web/redirect/internal/geo"
)

const unknown = "Unknown"

// Param is one query parameter in its literal request position.
type Param struct {
	Key   string
	Value string
}

// Context is the normalized view of an inbound visit. All header and
// user-agent fallbacks are resolved here, in one place.
type Context struct {
	Host       string
	IP         string
	Country    string
	City       string
	Device     string
	OS         string
	Browser    string
	UserAgent  string
	Referer    string
	RequestURL string
	Params     []Param
}

// Get returns the first value for key, request order. Empty string when absent.
func (c *Context) Get(key string) (string, bool) {
	for _, p := range c.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Build normalizes the raw request.
func Build(r *http.Request, resolver geo.Resolver) *Context {
	host := hostOnly(r.Host)
	ip := clientIP(r)
	loc := resolver.Lookup(ip)

	uaString := r.Header.Get("User-Agent")
	if uaString == "" {
		uaString = unknown
	}
	device, osName, browser := parseUA(uaString)

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return &Context{
		Host:       host,
		IP:         ip,
		Country:    loc.Country,
		City:       loc.City,
		Device:     device,
		OS:         osName,
		Browser:    browser,
		UserAgent:  uaString,
		Referer:    r.Header.Get("Referer"),
		RequestURL: scheme + "://" + r.Host + r.URL.RequestURI(),
		Params:     ParseQuery(r.URL.RawQuery),
	}
}

// clientIP takes the first hop of the forwarded chain, then the direct peer.
func clientIP(r *http.Request) string {
	raw := r.Header.Get("CF-Connecting-IP")
	if raw == "" {
		raw = r.Header.Get("X-Forwarded-For")
	}
	if raw == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			raw = host
		} else {
			raw = r.RemoteAddr
		}
	}
	if raw == "" {
		return unknown
	}
	first := strings.TrimSpace(strings.SplitN(raw, ",", 2)[0])
	if first == "" {
		return unknown
	}
	return first
}

func parseUA(s string) (device, osName, browser string) {
	ua := useragent.Parse(s)
	switch {
	case ua.Mobile:
		device = "mobile"
	case ua.Tablet:
		device = "tablet"
	case ua.Bot:
		device = "bot"
	default:
		device = "pc"
	}
	osName = ua.OS
	if osName == "" {
		osName = unknown
	}
	browser = ua.Name
	if browser == "" {
		browser = unknown
	}
	return device, osName, browser
}

func hostOnly(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// ParseQuery keeps the literal left-to-right parameter order, which
// url.Values cannot: the campaign tie-break depends on it. Segments that
// fail to unescape are skipped.
func ParseQuery(rawQuery string) []Param {
	if rawQuery == "" {
		return nil
	}
	var out []Param
	for _, seg := range strings.Split(rawQuery, "&") {
		if seg == "" {
			continue
		}
		key, val, _ := strings.Cut(seg, "=")
		k, err := url.QueryUnescape(key)
		if err != nil || k == "" {
			continue
		}
		v, err := url.QueryUnescape(val)
		if err != nil {
			continue
		}
		out = append(out, Param{Key: k, Value: v})
	}
	return out
}
