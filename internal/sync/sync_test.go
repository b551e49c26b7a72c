package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"staycal/internal/feed"
	"staycal/internal/metrics"
	"staycal/internal/model"
	"staycal/internal/store"
)

const gardensFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Airbnb Inc//Hosting Calendar 1.0//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:1@airbnb.com\r\n" +
	"DTSTAMP:20250901T000000Z\r\n" +
	"DTSTART:20250910\r\n" +
	"DTEND:20250912\r\n" +
	"SUMMARY:Alice Example\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func newTestRunner(t *testing.T, feeds []feed.Source) (*Runner, *store.Store) {
	t.Helper()
	blob := &store.FileBlob{Path: filepath.Join(t.TempDir(), "reservations.json")}
	s, err := store.Open(context.Background(), blob)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	m := metrics.New(prometheus.NewRegistry())
	return NewRunner(s, feed.NewFetcher(""), feeds, m), s
}

func TestRunCycleImportsAndReplaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(gardensFeed))
	}))
	defer srv.Close()

	feeds := []feed.Source{{
		Property: "Jacky Winter Gardens",
		Origin:   model.OriginAirbnb,
		URL:      srv.URL,
		Label:    "Gardens Airbnb",
	}}
	r, s := newTestRunner(t, feeds)
	ctx := context.Background()

	report, err := r.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if report.Imported != 1 || len(report.FeedErrors) != 0 {
		t.Fatalf("report = %+v", report)
	}

	recs := s.List()
	var manual, imported int
	for _, rec := range recs {
		switch rec.Origin {
		case model.OriginManual:
			manual++
		default:
			imported++
		}
	}
	// Seed has one manual record; every seeded feed-origin record must be
	// gone, replaced by the single fresh draft.
	if manual != 1 {
		t.Errorf("manual records = %d, want 1", manual)
	}
	if imported != 1 {
		t.Errorf("feed records = %d, want 1", imported)
	}

	// Second identical cycle: same cardinality, same ids.
	before := idsOf(recs)
	if _, err := r.RunCycle(ctx); err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	after := idsOf(s.List())
	if before != after {
		t.Fatalf("sync is not idempotent:\n%s\nvs\n%s", before, after)
	}
}

func idsOf(recs []model.Reservation) string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return strings.Join(ids, ",")
}

func TestRunCycleIsolatesFeedFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(gardensFeed))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()
	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>login required</html>"))
	}))
	defer html.Close()

	feeds := []feed.Source{
		{Property: "Jacky Winter Gardens", Origin: model.OriginAirbnb, URL: good.URL, Label: "Gardens Airbnb"},
		{Property: "Jacky Winter Waters", Origin: model.OriginAirbnb, URL: bad.URL, Label: "Waters Airbnb"},
		{Property: "Jacky Winter Waters", Origin: model.OriginRiparide, URL: html.URL, Label: "Waters Riparide"},
	}
	r, _ := newTestRunner(t, feeds)

	report, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if report.Imported != 1 {
		t.Errorf("imported = %d, want 1 from the healthy feed", report.Imported)
	}
	if len(report.FeedErrors) != 2 {
		t.Fatalf("feed errors = %d, want 2", len(report.FeedErrors))
	}

	// The unparsable document must surface as an invalid-format error,
	// distinct from the HTTP failure.
	var invalidFormat bool
	for _, fe := range report.FeedErrors {
		if errors.Is(fe.Err, feed.ErrInvalidFormat) {
			invalidFormat = true
		}
	}
	if !invalidFormat {
		t.Error("expected one ErrInvalidFormat feed error")
	}
}

func TestRunCycleSerialized(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(gardensFeed))
	}))
	defer slow.Close()

	feeds := []feed.Source{{Property: "p", Origin: model.OriginAirbnb, URL: slow.URL, Label: "slow"}}
	r, _ := newTestRunner(t, feeds)

	done := make(chan error, 1)
	go func() {
		_, err := r.RunCycle(context.Background())
		done <- err
	}()

	// Wait until the first cycle is inside its fetch.
	for {
		r.mu.Lock()
		running := r.running
		r.mu.Unlock()
		if running {
			break
		}
	}

	if _, err := r.RunCycle(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("overlapping cycle: err = %v, want ErrSyncInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first cycle: %v", err)
	}
}

func TestRunCycleSkipsBlankURLs(t *testing.T) {
	r, _ := newTestRunner(t, []feed.Source{{Property: "p", Origin: model.OriginAirbnb}})
	report, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if report.FeedCount != 0 {
		t.Fatalf("blank URL counted as a feed: %+v", report)
	}
}
