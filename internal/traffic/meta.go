package traffic

import "strings"

// metaSep joins the encoded metadata segments. The decoder must stay
// symmetric with the encoder, including for rows written before any
// given field existed.
const metaSep = " | "

// Meta is the free-form context packed next to each traffic event:
// the referer header, the full inbound URL, and a short reason string
// for fallback outcomes.
type Meta struct {
	Referer    string
	RequestURL string
	Detail     string
}

// Encode packs the non-empty fields as key=value segments. Empty Meta
// encodes to the empty string.
func (m Meta) Encode() string {
	var parts []string
	if m.Referer != "" {
		parts = append(parts, "ref="+m.Referer)
	}
	if m.RequestURL != "" {
		parts = append(parts, "url="+m.RequestURL)
	}
	if m.Detail != "" {
		parts = append(parts, "detail="+m.Detail)
	}
	return strings.Join(parts, metaSep)
}

// DecodeMeta is tolerant: unknown segments are ignored and absent keys
// leave their fields empty. It never fails.
func DecodeMeta(s string) Meta {
	var m Meta
	if s == "" {
		return m
	}
	for _, seg := range strings.Split(s, metaSep) {
		key, val, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		switch key {
		case "ref":
			m.Referer = val
		case "url":
			m.RequestURL = val
		case "detail":
			m.Detail = val
		}
	}
	return m
}
