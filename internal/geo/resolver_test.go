package geo

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestResolver(t *testing.T, handler http.HandlerFunc) (*Resolver, *int64) {
	t.Helper()
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewResolver(srv.URL, time.Second, 0), &calls
}

func successHandler(name, iso2 string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"status":"success","country":%q,"countryCode":%q}`, name, iso2)
	}
}

func TestResolvePrivateRangesSkipNetwork(t *testing.T) {
	r, calls := newTestResolver(t, successHandler("United States", "US"))

	for _, ip := range []string{"127.0.0.1", "::1", "10.0.0.5", "192.168.1.10", "172.16.0.1", "172.31.255.255"} {
		rec := r.Resolve(ip)
		if rec.Name != "Private" || rec.ISO2 != "" || rec.ISO3 != "" {
			t.Fatalf("Resolve(%q) = %+v, want Private with empty ISO codes", ip, rec)
		}
	}
	if got := atomic.LoadInt64(calls); got != 0 {
		t.Fatalf("private resolution must not hit the network, got %d calls", got)
	}
}

func TestResolveCachesPerIP(t *testing.T) {
	r, calls := newTestResolver(t, successHandler("United States", "US"))

	first := r.Resolve("8.8.8.8")
	if first.Name != "United States" || first.ISO2 != "US" || first.ISO3 != "USA" {
		t.Fatalf("unexpected record: %+v", first)
	}
	if got := atomic.LoadInt64(calls); got != 1 {
		t.Fatalf("expected exactly one lookup, got %d", got)
	}

	second := r.Resolve("8.8.8.8")
	if second != first {
		t.Fatalf("cached value differs: %+v vs %+v", second, first)
	}
	if got := atomic.LoadInt64(calls); got != 1 {
		t.Fatalf("second resolution must be served from cache, got %d calls", got)
	}
}

func TestResolveDegradesOnServerError(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if rec := r.Resolve("8.8.4.4"); rec != (Record{}) {
		t.Fatalf("server error must degrade to the zero record, got %+v", rec)
	}
}

func TestResolveDegradesOnLookupFail(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"status":"fail","message":"reserved range"}`)
	})

	if rec := r.Resolve("203.0.113.9"); rec != (Record{}) {
		t.Fatalf("lookup status=fail must degrade to the zero record, got %+v", rec)
	}
}

func TestResolveDegradesOnMalformedBody(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `not json at all`)
	})

	if rec := r.Resolve("198.51.100.7"); rec != (Record{}) {
		t.Fatalf("malformed body must degrade to the zero record, got %+v", rec)
	}
}

func TestResolveDegradesOnUnknownCountryCode(t *testing.T) {
	r, _ := newTestResolver(t, successHandler("Atlantis", "XX"))

	if rec := r.Resolve("192.0.2.55"); rec != (Record{}) {
		t.Fatalf("unknown ISO2 code must degrade to the zero record, got %+v", rec)
	}
}

func TestResolveDegradesOnUnreachableService(t *testing.T) {
	// Point at a closed port; the client error must not surface.
	r := NewResolver("http://127.0.0.1:1", 200*time.Millisecond, 0)

	if rec := r.Resolve("8.8.8.8"); rec != (Record{}) {
		t.Fatalf("network error must degrade to the zero record, got %+v", rec)
	}
}

func TestResolveCacheBound(t *testing.T) {
	r, calls := newTestResolver(t, successHandler("United States", "US"))
	r.maxEntries = 1

	r.Resolve("8.8.8.8")
	r.Resolve("9.9.9.9") // over the bound: returned but not stored
	r.Resolve("9.9.9.9")

	if got := atomic.LoadInt64(calls); got != 3 {
		t.Fatalf("expected 3 lookups with a full cache, got %d", got)
	}
	if rec := r.Resolve("8.8.8.8"); rec.ISO3 != "USA" {
		t.Fatalf("bounded cache lost its stored entry: %+v", rec)
	}
	if got := atomic.LoadInt64(calls); got != 3 {
		t.Fatalf("stored entry must still be served from cache, got %d calls", got)
	}
}

func TestISO3Table(t *testing.T) {
	for iso2, iso3 := range map[string]string{"US": "USA", "GB": "GBR", "DE": "DEU", "TR": "TUR", "JP": "JPN"} {
		if got := iso2ToISO3[iso2]; got != iso3 {
			t.Errorf("iso2ToISO3[%q] = %q, want %q", iso2, got, iso3)
		}
	}
}
