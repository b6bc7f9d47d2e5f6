package engine

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/phiphung-web/redirect/internal/reqctx"
)

// ComposeRedirect appends every inbound parameter whose key the target URL
// does not already carry. Existing target parameters are never overwritten
// or duplicated; inbound order is preserved for the appended ones.
func ComposeRedirect(target string, params []reqctx.Param) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse target url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("target url %q has no scheme or host", target)
	}

	existing := u.Query()
	seen := map[string]bool{}

	var extra strings.Builder
	for _, p := range params {
		if _, ok := existing[p.Key]; ok {
			continue
		}
		if seen[p.Key] {
			continue
		}
		seen[p.Key] = true
		if extra.Len() > 0 {
			extra.WriteByte('&')
		}
		extra.WriteString(url.QueryEscape(p.Key))
		extra.WriteByte('=')
		extra.WriteString(url.QueryEscape(p.Value))
	}

	if extra.Len() > 0 {
		if u.RawQuery != "" {
			u.RawQuery += "&" + extra.String()
		} else {
			u.RawQuery = extra.String()
		}
	}
	return u.String(), nil
}
