package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/phiphung-web/redirect/internal/cache"
	"github.com/phiphung-web/redirect/internal/reqctx"
	"github.com/phiphung-web/redirect/internal/storage"
)

// Loader is the slice of the store the engine needs to build a snapshot.
type Loader interface {
	LoadActiveDomains(ctx context.Context) ([]storage.DomainRow, error)
}

type snapshot struct {
	domains map[string]*Domain // by hostname
}

// Engine answers per-request cloaking decisions against a lock-free
// in-memory snapshot of the active configuration. Requests never touch
// the database.
type Engine struct{ snap cache.Snapshot[snapshot] }

func New() *Engine { return &Engine{} }

// BuildSnapshot loads active domains with their campaigns and parses the
// stored rule and filter JSON into validated values. Malformed entries are
// skipped with a warning, never re-interpreted per request.
func (e *Engine) BuildSnapshot(ctx context.Context, st Loader) error {
	rows, err := st.LoadActiveDomains(ctx)
	if err != nil {
		return err
	}

	byHost := make(map[string]*Domain, len(rows))
	for _, r := range rows {
		d := &Domain{
			ID:           r.ID,
			Host:         r.Host,
			SafeTemplate: r.SafeTemplate,
			SafeContent:  parseContent(r.SafeContent),
		}
		for _, cr := range r.Campaigns {
			d.Campaigns = append(d.Campaigns, Campaign{
				ID:        cr.ID,
				DomainID:  cr.DomainID,
				Name:      cr.Name,
				ParamKey:  cr.ParamKey,
				ParamVal:  cr.ParamVal,
				TargetURL: cr.TargetURL,
				Active:    cr.Active,
				Countries: parseFilter(cr.ID, cr.Filters),
				Rules:     parseRules(cr.ID, cr.Rules),
			})
		}
		byHost[r.Host] = d
	}

	e.snap.Store(snapshot{domains: byHost})
	log.Debug().Int("domains", len(byHost)).Msg("config snapshot built")
	return nil
}

// ResolveDomain maps a hostname to its active domain. nil means terminal
// 404: no event is recorded for hosts we know nothing about.
func (e *Engine) ResolveDomain(host string) *Domain {
	s, ok := e.snap.Load()
	if !ok {
		return nil
	}
	return s.domains[host]
}

// MatchCampaign walks the inbound parameters in literal request order and
// returns the first campaign addressed by an exact key/value pair, active
// or not. Later parameters are not checked once one matches.
func MatchCampaign(d *Domain, params []reqctx.Param) *Campaign {
	for _, p := range params {
		for i := range d.Campaigns {
			c := &d.Campaigns[i]
			if c.ParamKey == p.Key && c.ParamVal == p.Value {
				return c
			}
		}
	}
	return nil
}

// Decide runs the full linear check sequence for one visit and returns an
// explicit decision value. It never blocks and never writes.
func Decide(d *Domain, visit *reqctx.Context) Decision {
	c := MatchCampaign(d, visit.Params)

	if c == nil || !c.Active {
		return Decision{Outcome: OutcomeInactive, Campaign: c, Detail: "campaign_inactive"}
	}

	if len(c.Countries) > 0 && !contains(c.Countries, visit.Country) {
		return Decision{
			Outcome:  OutcomeWrongCountry,
			Campaign: c,
			Detail:   "country=" + visit.Country,
		}
	}

	for _, r := range c.Rules {
		val, _ := visit.Get(r.Key)
		switch r.Op {
		case OpExists:
			if val == "" {
				return Decision{
					Outcome:  OutcomeMissingParam,
					Campaign: c,
					Detail:   "missing:" + r.Key,
				}
			}
		case OpEquals:
			if val == "" || !strings.EqualFold(val, r.Value) {
				got := val
				if got == "" {
					got = "null"
				}
				return Decision{
					Outcome:  OutcomeWrongParamVal,
					Campaign: c,
					Detail:   fmt.Sprintf("expect %s=%s; got=%s", r.Key, r.Value, got),
				}
			}
		}
	}

	target, err := ComposeRedirect(c.TargetURL, visit.Params)
	if err != nil {
		// a stored target URL that fails to parse is an unexpected failure
		return Decision{Outcome: OutcomeError, Campaign: c, Detail: err.Error()}
	}
	return Decision{Outcome: OutcomeRedirect, Campaign: c, RedirectURL: target}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Stored JSON shapes, written by the admin side.
type ruleJSON struct {
	Key      string `json:"key"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type filterJSON struct {
	Countries []string `json:"countries"`
}

func parseRules(campaignID int64, raw []byte) []Rule {
	if len(raw) == 0 {
		return nil
	}
	var entries []ruleJSON
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Warn().Err(err).Int64("campaign_id", campaignID).Msg("malformed rules json; ignoring")
		return nil
	}
	var out []Rule
	for _, e := range entries {
		switch e.Operator {
		case "exists":
			if e.Key == "" {
				log.Warn().Int64("campaign_id", campaignID).Msg("exists rule without key; skipped")
				continue
			}
			out = append(out, Rule{Op: OpExists, Key: e.Key})
		case "equals":
			if e.Key == "" {
				log.Warn().Int64("campaign_id", campaignID).Msg("equals rule without key; skipped")
				continue
			}
			out = append(out, Rule{Op: OpEquals, Key: e.Key, Value: e.Value})
		default:
			log.Warn().Str("operator", e.Operator).Int64("campaign_id", campaignID).Msg("unknown rule operator; skipped")
		}
	}
	return out
}

func parseFilter(campaignID int64, raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var f filterJSON
	if err := json.Unmarshal(raw, &f); err != nil {
		log.Warn().Err(err).Int64("campaign_id", campaignID).Msg("malformed filters json; ignoring")
		return nil
	}
	var out []string
	for _, c := range f.Countries {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func parseContent(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		log.Warn().Err(err).Msg("malformed safe_content json; ignoring")
		return nil
	}
	return m
}
