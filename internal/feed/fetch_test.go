package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"staycal/internal/model"
)

func TestFetchDirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	}))
	defer srv.Close()

	f := NewFetcher("")
	body, err := f.Fetch(context.Background(), Source{Property: "p", Origin: model.OriginAirbnb, URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(body) == 0 {
		t.Fatal("empty body")
	}
}

func TestFetchProxyFallback(t *testing.T) {
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer direct.Close()

	var proxiedFor string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxiedFor = r.URL.Query().Get("url")
		w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	}))
	defer proxy.Close()

	f := NewFetcher(proxy.URL + "/raw?url=")
	body, err := f.Fetch(context.Background(), Source{Property: "p", Origin: model.OriginRiparide, URL: direct.URL})
	if err != nil {
		t.Fatalf("Fetch via proxy: %v", err)
	}
	if len(body) == 0 {
		t.Fatal("empty body from proxy")
	}
	if proxiedFor != direct.URL {
		t.Errorf("proxy asked for %q, want %q", proxiedFor, direct.URL)
	}
}

func TestFetchErrorWithoutProxy(t *testing.T) {
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer direct.Close()

	f := NewFetcher("")
	if _, err := f.Fetch(context.Background(), Source{Property: "p", Origin: model.OriginAirbnb, URL: direct.URL}); err == nil {
		t.Fatal("expected a feed-level error")
	}
}

func TestFetchConditionalCache(t *testing.T) {
	const payload = "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	f := NewFetcher("")
	src := Source{Property: "p", Origin: model.OriginAirbnb, URL: srv.URL}

	first, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if string(first) != payload || string(second) != payload {
		t.Fatal("cached body does not match original")
	}
	if hits != 2 {
		t.Fatalf("server saw %d requests, want 2", hits)
	}
}

func TestFetchEmptyURL(t *testing.T) {
	f := NewFetcher("")
	if _, err := f.Fetch(context.Background(), Source{}); err == nil {
		t.Fatal("expected error for empty URL")
	}
}
