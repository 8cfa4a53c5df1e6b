package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"leadinsight/internal/analytics"
	dbpkg "leadinsight/internal/db"
	"leadinsight/internal/geo"
	httpctx "leadinsight/internal/http/ctx"
)

type fakeLeadStore struct {
	lastKind  string
	lastLimit int
	events    []dbpkg.LeadEvent
}

func (f *fakeLeadStore) LeadEventsByKind(kind string, limit int) ([]dbpkg.LeadEvent, error) {
	f.lastKind = kind
	f.lastLimit = limit
	return f.events, nil
}

type emptyStore struct{}

func (emptyStore) SignupTimes(start, end time.Time) ([]time.Time, error) { return nil, nil }
func (emptyStore) SignupUserIDs(start, end time.Time) ([]uint, error)    { return nil, nil }
func (emptyStore) LoginsInRange(start, end time.Time) ([]dbpkg.LoginRecord, error) {
	return nil, nil
}
func (emptyStore) FirstLoginIPs(userIDs []uint) (map[uint]string, error) { return nil, nil }

type nullResolver struct{}

func (nullResolver) Resolve(ip string) geo.Record { return geo.Record{} }

func adminCtx(uri string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI(uri)
	httpctx.SetUser(&ctx, &dbpkg.User{ID: 1, Username: "admin", IsAdmin: true})
	return &ctx
}

func TestLeadsParamNormalization(t *testing.T) {
	cases := []struct {
		uri       string
		wantKind  string
		wantFetch int
	}{
		{"/v1/dashboard/leads", "", 2000},
		{"/v1/dashboard/leads?kind=chat&limit=10", "chat", 100},
		{"/v1/dashboard/leads?kind=contact", "contact", 2000},
		{"/v1/dashboard/leads?kind=all", "", 2000},
		{"/v1/dashboard/leads?kind=bogus", "", 2000},
		// limit clamps to [1, 1000]; the raw fetch is capped at 10000.
		{"/v1/dashboard/leads?limit=5000", "", 10000},
		{"/v1/dashboard/leads?limit=0", "", 10},
		{"/v1/dashboard/leads?limit=-3", "", 10},
		{"/v1/dashboard/leads?limit=abc", "", 2000},
	}

	for _, tc := range cases {
		store := &fakeLeadStore{}
		handler := Leads(store)
		ctx := adminCtx(tc.uri)

		handler(ctx)

		if ctx.Response.StatusCode() != fasthttp.StatusOK {
			t.Fatalf("%s: unexpected status %d", tc.uri, ctx.Response.StatusCode())
		}
		if store.lastKind != tc.wantKind {
			t.Errorf("%s: kind = %q, want %q", tc.uri, store.lastKind, tc.wantKind)
		}
		if store.lastLimit != tc.wantFetch {
			t.Errorf("%s: fetch limit = %d, want %d", tc.uri, store.lastLimit, tc.wantFetch)
		}
	}
}

func TestLeadsRequiresUser(t *testing.T) {
	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/v1/dashboard/leads")

	Leads(&fakeLeadStore{})(&ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("expected 401 without a session user, got %d", ctx.Response.StatusCode())
	}
}

func TestDashboardMetricsDefaultsPeriod(t *testing.T) {
	agg := analytics.NewAggregator(emptyStore{}, nullResolver{}, 50)
	handler := DashboardMetrics(agg)
	ctx := adminCtx("/v1/dashboard/metrics?period=fortnight")

	handler(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("unexpected status %d", ctx.Response.StatusCode())
	}

	var payload struct {
		OK     bool     `json:"ok"`
		Period string   `json:"period"`
		Labels []string `json:"labels"`
		Totals struct {
			Signups int `json:"signups"`
			Logins  int `json:"logins"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(ctx.Response.Body(), &payload); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if !payload.OK {
		t.Fatalf("expected ok=true")
	}
	if payload.Period != "7d" {
		t.Fatalf("unknown period must default to 7d, got %q", payload.Period)
	}
	if len(payload.Labels) != 7 {
		t.Fatalf("expected 7 labels for 7d, got %d", len(payload.Labels))
	}
	if payload.Totals.Signups != 0 || payload.Totals.Logins != 0 {
		t.Fatalf("empty store must yield zero totals, got %+v", payload.Totals)
	}
}
