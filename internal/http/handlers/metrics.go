package handlers

import (
	"log"
	"strconv"

	"github.com/valyala/fasthttp"

	"leadinsight/internal/analytics"
	dbpkg "leadinsight/internal/db"
)

const (
	defaultLeadLimit = 200
	maxLeadLimit     = 1000

	// leadFetchFactor oversizes the raw-event read relative to the requested
	// row count, since many chat messages fold into one lead row.
	leadFetchFactor = 10
	maxLeadFetch    = 10000
)

// LeadStore lists raw lead events for the leads endpoint.
// *db.Store is the production implementation.
type LeadStore interface {
	LeadEventsByKind(kind string, limit int) ([]dbpkg.LeadEvent, error)
}

// DashboardMetrics serves the aggregated dashboard payload for one period.
// An unknown or missing period silently defaults to 7d.
func DashboardMetrics(agg *analytics.Aggregator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustUser(ctx); !ok {
			return
		}
		period := analytics.ParsePeriod(string(ctx.QueryArgs().Peek("period")))

		m, err := agg.Aggregate(period)
		if err != nil {
			// The event store is the single upstream here: fail the whole
			// request rather than returning a partial payload.
			log.Printf("dashboard aggregation failed: %v", err)
			errResponse(ctx, fasthttp.StatusBadGateway, "event store unavailable")
			return
		}

		jsonResponse(ctx, map[string]any{
			"ok":              true,
			"period":          m.Period,
			"labels":          m.Labels,
			"signups":         m.Signups,
			"logins":          m.Logins,
			"totals":          m.Totals,
			"ipGroups":        m.IPGroups,
			"signupCountries": m.SignupCountries,
		})
	}
}

// Leads serves deduplicated lead rows. kind is one of all|chat|contact
// (anything else means all); limit is clamped to [1, 1000], default 200.
func Leads(store LeadStore) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustUser(ctx); !ok {
			return
		}

		kind := ""
		switch string(ctx.QueryArgs().Peek("kind")) {
		case analytics.LeadKindChat:
			kind = analytics.LeadKindChat
		case analytics.LeadKindContact:
			kind = analytics.LeadKindContact
		}

		limit := defaultLeadLimit
		if s := string(ctx.QueryArgs().Peek("limit")); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				limit = n
			}
		}
		if limit < 1 {
			limit = 1
		}
		if limit > maxLeadLimit {
			limit = maxLeadLimit
		}

		fetch := limit * leadFetchFactor
		if fetch > maxLeadFetch {
			fetch = maxLeadFetch
		}

		events, err := store.LeadEventsByKind(kind, fetch)
		if err != nil {
			log.Printf("lead query failed: %v", err)
			errResponse(ctx, fasthttp.StatusBadGateway, "event store unavailable")
			return
		}

		jsonResponse(ctx, map[string]any{
			"ok":    true,
			"items": analytics.GroupLeads(events, limit),
		})
	}
}
