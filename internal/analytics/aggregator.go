package analytics

import (
	"fmt"
	"log"
	"sort"
	"time"

	dbpkg "leadinsight/internal/db"
	"leadinsight/internal/geo"
)

// EventStore is the read-only slice of the event store the aggregator needs.
// *db.Store is the production implementation.
type EventStore interface {
	SignupTimes(start, end time.Time) ([]time.Time, error)
	SignupUserIDs(start, end time.Time) ([]uint, error)
	LoginsInRange(start, end time.Time) ([]dbpkg.LoginRecord, error)
	FirstLoginIPs(userIDs []uint) (map[uint]string, error)
}

// Resolver resolves an IP to a country record. Implementations never fail:
// an unresolvable IP yields the zero record.
type Resolver interface {
	Resolve(ip string) geo.Record
}

// IPGroup is one top-login-IP entry with its resolved country.
type IPGroup struct {
	IP          string  `json:"ip"`
	CountryName *string `json:"countryName"`
	CountryISO3 *string `json:"countryIso3"`
	Count       int     `json:"count"`
}

// CountryCount is one signup-country entry.
type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

// Totals are the per-series sums over all buckets of the period.
type Totals struct {
	Signups int `json:"signups"`
	Logins  int `json:"logins"`
}

// DashboardMetrics is the assembled payload for one reporting period.
type DashboardMetrics struct {
	Period          Period         `json:"period"`
	Labels          []string       `json:"labels"`
	Signups         []int          `json:"signups"`
	Logins          []int          `json:"logins"`
	Totals          Totals         `json:"totals"`
	IPGroups        []IPGroup      `json:"ipGroups"`
	SignupCountries []CountryCount `json:"signupCountries"`
}

// Aggregator orchestrates the bucketer, the event store and the geo resolver
// into dashboard payloads. Each Aggregate call is one bounded synchronous
// pipeline; the only state shared across requests is the resolver's cache.
type Aggregator struct {
	store  EventStore
	geo    Resolver
	topIPs int

	// now is a seam for tests; defaults to time.Now.
	now func() time.Time
}

func NewAggregator(store EventStore, resolver Resolver, topIPs int) *Aggregator {
	if topIPs <= 0 {
		topIPs = 50
	}
	return &Aggregator{store: store, geo: resolver, topIPs: topIPs, now: time.Now}
}

// Aggregate computes the full dashboard payload for period. An event-store
// failure aborts the whole aggregation; geo failures only null the affected
// entries.
func (a *Aggregator) Aggregate(period Period) (*DashboardMetrics, error) {
	buckets := Boundaries(period, a.now())
	start := buckets[0].Start
	end := buckets[len(buckets)-1].End

	signupTimes, err := a.store.SignupTimes(start, end)
	if err != nil {
		return nil, fmt.Errorf("query signups: %w", err)
	}
	logins, err := a.store.LoginsInRange(start, end)
	if err != nil {
		return nil, fmt.Errorf("query logins: %w", err)
	}

	labels := make([]string, len(buckets))
	for i, b := range buckets {
		labels[i] = b.Label
	}
	signups := make([]int, len(buckets))
	loginCounts := make([]int, len(buckets))

	var totals Totals
	for _, ts := range signupTimes {
		if idx := IndexFor(period, start, ts); idx >= 0 && idx < len(buckets) {
			signups[idx]++
			totals.Signups++
		}
	}
	for _, l := range logins {
		if idx := IndexFor(period, start, l.CreatedAt); idx >= 0 && idx < len(buckets) {
			loginCounts[idx]++
			totals.Logins++
		}
	}

	ipGroups := a.topIPGroups(logins)

	countries, err := a.signupCountries(start, end)
	if err != nil {
		return nil, err
	}

	return &DashboardMetrics{
		Period:          period,
		Labels:          labels,
		Signups:         signups,
		Logins:          loginCounts,
		Totals:          totals,
		IPGroups:        ipGroups,
		SignupCountries: countries,
	}, nil
}

// topIPGroups counts logins per IP, keeps the top slice and resolves geo for
// that truncated set only, so outbound lookup volume stays bounded per request.
func (a *Aggregator) topIPGroups(logins []dbpkg.LoginRecord) []IPGroup {
	counts := make(map[string]int)
	for _, l := range logins {
		if l.IP != "" {
			counts[l.IP]++
		}
	}

	ips := make([]string, 0, len(counts))
	for ip := range counts {
		ips = append(ips, ip)
	}
	sort.Slice(ips, func(i, j int) bool {
		if counts[ips[i]] != counts[ips[j]] {
			return counts[ips[i]] > counts[ips[j]]
		}
		return ips[i] < ips[j]
	})
	if len(ips) > a.topIPs {
		ips = ips[:a.topIPs]
	}

	groups := make([]IPGroup, 0, len(ips))
	for _, ip := range ips {
		rec := a.geo.Resolve(ip)
		groups = append(groups, IPGroup{
			IP:          ip,
			CountryName: optional(rec.Name),
			CountryISO3: optional(rec.ISO3),
			Count:       counts[ip],
		})
	}
	return groups
}

// signupCountries approximates each signup's geography with the user's
// first-ever login IP, since signup rows carry no IP. This measures
// first-activity location, not true signup-time location.
func (a *Aggregator) signupCountries(start, end time.Time) ([]CountryCount, error) {
	userIDs, err := a.store.SignupUserIDs(start, end)
	if err != nil {
		return nil, fmt.Errorf("query signup ids: %w", err)
	}
	if len(userIDs) == 0 {
		return []CountryCount{}, nil
	}

	firstIPs, err := a.store.FirstLoginIPs(userIDs)
	if err != nil {
		return nil, fmt.Errorf("query first logins: %w", err)
	}

	// Resolve each distinct IP once; the resolver's cache handles repeats
	// across requests.
	byIP := make(map[string]geo.Record)
	byCountry := make(map[string]int)
	for _, id := range userIDs {
		ip := firstIPs[id]
		if ip == "" {
			byCountry["Unknown"]++
			continue
		}
		rec, ok := byIP[ip]
		if !ok {
			rec = a.geo.Resolve(ip)
			byIP[ip] = rec
			if rec.Name == "" {
				log.Printf("signup country unresolved for ip=%s", ip)
			}
		}
		name := rec.Name
		if name == "" {
			name = "Unknown"
		}
		byCountry[name]++
	}

	countries := make([]CountryCount, 0, len(byCountry))
	for name, count := range byCountry {
		countries = append(countries, CountryCount{Country: name, Count: count})
	}
	sort.Slice(countries, func(i, j int) bool {
		if countries[i].Count != countries[j].Count {
			return countries[i].Count > countries[j].Count
		}
		return countries[i].Country < countries[j].Country
	})
	return countries, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
