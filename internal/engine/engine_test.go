package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phiphung-web/redirect/internal/reqctx"
	"github.com/phiphung-web/redirect/internal/storage"
)

type mockLoader struct {
	rows []storage.DomainRow
	err  error
}

func (m *mockLoader) LoadActiveDomains(context.Context) ([]storage.DomainRow, error) {
	return m.rows, m.err
}

func visit(rawQuery, country string) *reqctx.Context {
	return &reqctx.Context{
		Host:    "promo.example.com",
		Country: country,
		Params:  reqctx.ParseQuery(rawQuery),
	}
}

func activeCampaign(id int64, key, val string) Campaign {
	return Campaign{ID: id, DomainID: 1, ParamKey: key, ParamVal: val,
		TargetURL: "https://target.example.com/landing", Active: true}
}

func TestDecide_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		campaigns   []Campaign
		rawQuery    string
		country     string
		wantOutcome Outcome
		wantDetail  string
	}{
		{
			name:        "no matching param",
			campaigns:   []Campaign{activeCampaign(1, "q", "abc")},
			rawQuery:    "x=1",
			country:     "US",
			wantOutcome: OutcomeInactive,
			wantDetail:  "campaign_inactive",
		},
		{
			name: "matched but inactive",
			campaigns: []Campaign{{
				ID: 1, ParamKey: "q", ParamVal: "abc", Active: false,
				TargetURL: "https://target.example.com/",
			}},
			rawQuery:    "q=abc",
			country:     "US",
			wantOutcome: OutcomeInactive,
			wantDetail:  "campaign_inactive",
		},
		{
			name: "country filtered",
			campaigns: []Campaign{func() Campaign {
				c := activeCampaign(1, "q", "abc")
				c.Countries = []string{"US"}
				return c
			}()},
			rawQuery:    "q=abc",
			country:     "VN",
			wantOutcome: OutcomeWrongCountry,
			wantDetail:  "country=VN",
		},
		{
			name: "country allowed",
			campaigns: []Campaign{func() Campaign {
				c := activeCampaign(1, "q", "abc")
				c.Countries = []string{"US"}
				return c
			}()},
			rawQuery:    "q=abc",
			country:     "US",
			wantOutcome: OutcomeRedirect,
		},
		{
			name: "exists rule missing",
			campaigns: []Campaign{func() Campaign {
				c := activeCampaign(1, "q", "abc")
				c.Rules = []Rule{{Op: OpExists, Key: "sub"}}
				return c
			}()},
			rawQuery:    "q=abc",
			country:     "US",
			wantOutcome: OutcomeMissingParam,
			wantDetail:  "missing:sub",
		},
		{
			name: "exists rule empty value fails",
			campaigns: []Campaign{func() Campaign {
				c := activeCampaign(1, "q", "abc")
				c.Rules = []Rule{{Op: OpExists, Key: "sub"}}
				return c
			}()},
			rawQuery:    "q=abc&sub=",
			country:     "US",
			wantOutcome: OutcomeMissingParam,
			wantDetail:  "missing:sub",
		},
		{
			name: "exists rule satisfied",
			campaigns: []Campaign{func() Campaign {
				c := activeCampaign(1, "q", "abc")
				c.Rules = []Rule{{Op: OpExists, Key: "sub"}}
				return c
			}()},
			rawQuery:    "q=abc&sub=anything",
			country:     "US",
			wantOutcome: OutcomeRedirect,
		},
		{
			name: "equals rule case-insensitive pass",
			campaigns: []Campaign{func() Campaign {
				c := activeCampaign(1, "q", "abc")
				c.Rules = []Rule{{Op: OpEquals, Key: "tag", Value: "ABC"}}
				return c
			}()},
			rawQuery:    "q=abc&tag=abc",
			country:     "US",
			wantOutcome: OutcomeRedirect,
		},
		{
			name: "equals rule mismatch",
			campaigns: []Campaign{func() Campaign {
				c := activeCampaign(1, "q", "abc")
				c.Rules = []Rule{{Op: OpEquals, Key: "tag", Value: "ABC"}}
				return c
			}()},
			rawQuery:    "q=abc&tag=xyz",
			country:     "US",
			wantOutcome: OutcomeWrongParamVal,
			wantDetail:  "expect tag=ABC; got=xyz",
		},
		{
			name: "equals rule absent param",
			campaigns: []Campaign{func() Campaign {
				c := activeCampaign(1, "q", "abc")
				c.Rules = []Rule{{Op: OpEquals, Key: "tag", Value: "ABC"}}
				return c
			}()},
			rawQuery:    "q=abc",
			country:     "US",
			wantOutcome: OutcomeWrongParamVal,
			wantDetail:  "expect tag=ABC; got=null",
		},
		{
			name: "first failing rule short-circuits",
			campaigns: []Campaign{func() Campaign {
				c := activeCampaign(1, "q", "abc")
				c.Rules = []Rule{
					{Op: OpExists, Key: "sub"},
					{Op: OpEquals, Key: "tag", Value: "ABC"},
				}
				return c
			}()},
			rawQuery:    "q=abc&tag=wrong",
			country:     "US",
			wantOutcome: OutcomeMissingParam,
			wantDetail:  "missing:sub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dom := &Domain{ID: 1, Host: "promo.example.com", Campaigns: tt.campaigns}
			dec := Decide(dom, visit(tt.rawQuery, tt.country))
			assert.Equal(t, tt.wantOutcome, dec.Outcome)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, dec.Detail)
			}
			if tt.wantOutcome == OutcomeRedirect {
				assert.NotEmpty(t, dec.RedirectURL)
			}
		})
	}
}

func TestDecide_CampaignIDOnInactiveMatch(t *testing.T) {
	dom := &Domain{ID: 1, Campaigns: []Campaign{
		{ID: 42, ParamKey: "q", ParamVal: "abc", Active: false},
	}}

	dec := Decide(dom, visit("q=abc", "US"))
	require.NotNil(t, dec.Campaign, "a matched inactive campaign must keep its identity for logging")
	assert.Equal(t, int64(42), dec.Campaign.ID)

	dec = Decide(dom, visit("other=1", "US"))
	assert.Nil(t, dec.Campaign, "campaign is nil only when nothing matched")
}

func TestMatchCampaign_RequestOrderWins(t *testing.T) {
	// campaign B was created first (lower id) but matches the second
	// request parameter; literal query order decides.
	dom := &Domain{ID: 1, Campaigns: []Campaign{
		{ID: 1, ParamKey: "y", ParamVal: "2", Active: true, TargetURL: "https://b.example.com/"},
		{ID: 2, ParamKey: "x", ParamVal: "1", Active: true, TargetURL: "https://a.example.com/"},
	}}

	c := MatchCampaign(dom, reqctx.ParseQuery("x=1&y=2"))
	require.NotNil(t, c)
	assert.Equal(t, int64(2), c.ID, "first request parameter wins")

	c = MatchCampaign(dom, reqctx.ParseQuery("y=2&x=1"))
	require.NotNil(t, c)
	assert.Equal(t, int64(1), c.ID)
}

func TestMatchCampaign_CaseSensitive(t *testing.T) {
	dom := &Domain{Campaigns: []Campaign{
		{ID: 1, ParamKey: "q", ParamVal: "AbC", Active: true},
	}}
	assert.Nil(t, MatchCampaign(dom, reqctx.ParseQuery("q=abc")))
	assert.NotNil(t, MatchCampaign(dom, reqctx.ParseQuery("q=AbC")))
}

func TestBuildSnapshot(t *testing.T) {
	loader := &mockLoader{rows: []storage.DomainRow{
		{
			ID:           1,
			Host:         "promo.example.com",
			SafeTemplate: "news",
			SafeContent:  []byte(`{"title":"Daily","headline":"Top Stories"}`),
			Campaigns: []storage.CampaignRow{
				{
					ID: 10, DomainID: 1, ParamKey: "q", ParamVal: "k1",
					TargetURL: "https://t.example.com/", Active: true,
					Rules:   []byte(`[{"key":"sub","operator":"exists"},{"key":"tag","operator":"equals","value":"ABC"}]`),
					Filters: []byte(`{"countries":["us"," ca "]}`),
				},
				{
					ID: 11, DomainID: 1, ParamKey: "q", ParamVal: "k2",
					TargetURL: "https://t.example.com/", Active: true,
					Rules: []byte(`not json`),
				},
				{
					ID: 12, DomainID: 1, ParamKey: "q", ParamVal: "k3",
					TargetURL: "https://t.example.com/", Active: true,
					Rules: []byte(`[{"key":"a","operator":"exists"},{"operator":"bogus"},{"key":"","operator":"equals"}]`),
				},
			},
		},
	}}

	eng := New()
	require.NoError(t, eng.BuildSnapshot(context.Background(), loader))

	dom := eng.ResolveDomain("promo.example.com")
	require.NotNil(t, dom)
	assert.Equal(t, "Daily", dom.SafeContent["title"])
	require.Len(t, dom.Campaigns, 3)

	assert.Equal(t, []Rule{
		{Op: OpExists, Key: "sub"},
		{Op: OpEquals, Key: "tag", Value: "ABC"},
	}, dom.Campaigns[0].Rules)
	assert.Equal(t, []string{"US", "CA"}, dom.Campaigns[0].Countries, "filter codes normalized")

	assert.Empty(t, dom.Campaigns[1].Rules, "malformed rules json is dropped")
	assert.Len(t, dom.Campaigns[2].Rules, 1, "invalid entries skipped, valid ones kept")

	assert.Nil(t, eng.ResolveDomain("unknown.example.com"))
}

func TestResolveDomain_BeforeSnapshot(t *testing.T) {
	eng := New()
	assert.Nil(t, eng.ResolveDomain("promo.example.com"))
}
