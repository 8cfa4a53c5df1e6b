// Package geo resolves IP addresses to countries via an external lookup
// service, with a per-resolver cache and a private-range short-circuit.
package geo

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var lookupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "leadinsight",
		Name:      "geo_lookups_total",
		Help:      "Geo resolutions by outcome (cached, private, ok, fail).",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(lookupsTotal)
}

// Record is the country resolution for one IP. The zero record means the
// lookup failed; callers treat every field as optional.
type Record struct {
	Name string
	ISO2 string
	ISO3 string
}

// privateRecord is returned for loopback and RFC 1918 addresses without any
// network call. ISO codes stay empty on purpose.
var privateRecord = Record{Name: "Private"}

// Resolver caches IP->country resolutions for its own lifetime. Resolve
// never returns an error: every failure degrades to the zero record. A
// cached value never changes, so concurrent duplicate lookups are harmless
// (last write wins with an identical value).
type Resolver struct {
	baseURL    string
	client     *http.Client
	maxEntries int

	mu    sync.RWMutex
	cache map[string]Record
}

// NewResolver builds a resolver against an ip-api.com-style endpoint
// (GET baseURL/{ip} returning JSON). timeout bounds each outbound call;
// maxEntries bounds the cache (0 = unbounded).
func NewResolver(baseURL string, timeout time.Duration, maxEntries int) *Resolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: timeout},
		maxEntries: maxEntries,
		cache:      make(map[string]Record),
	}
}

// Resolve returns the country record for ip. Private and loopback addresses
// resolve locally; everything else is looked up once and cached.
func (r *Resolver) Resolve(ip string) Record {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return Record{}
	}

	if isPrivateIP(ip) {
		lookupsTotal.WithLabelValues("private").Inc()
		return privateRecord
	}

	r.mu.RLock()
	rec, ok := r.cache[ip]
	r.mu.RUnlock()
	if ok {
		lookupsTotal.WithLabelValues("cached").Inc()
		return rec
	}

	rec = r.lookup(ip)
	if rec.Name != "" {
		lookupsTotal.WithLabelValues("ok").Inc()
	} else {
		lookupsTotal.WithLabelValues("fail").Inc()
	}

	r.mu.Lock()
	if r.maxEntries <= 0 || len(r.cache) < r.maxEntries {
		r.cache[ip] = rec
	}
	r.mu.Unlock()

	return rec
}

// lookupResponse matches the ip-api.com JSON shape; Status is "success" or "fail".
type lookupResponse struct {
	Status      string `json:"status"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
}

// lookup performs the single outbound call. Any failure (network, timeout,
// non-200, malformed body, unknown country code) yields the zero record;
// no retries.
func (r *Resolver) lookup(ip string) Record {
	resp, err := r.client.Get(r.baseURL + "/" + ip)
	if err != nil {
		return Record{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Record{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return Record{}
	}

	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return Record{}
	}
	if lr.Status != "success" || lr.Country == "" {
		return Record{}
	}

	iso2 := strings.ToUpper(strings.TrimSpace(lr.CountryCode))
	iso3, ok := iso2ToISO3[iso2]
	if !ok {
		return Record{}
	}

	return Record{Name: lr.Country, ISO2: iso2, ISO3: iso3}
}

func isPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast()
}
