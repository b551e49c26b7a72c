// Package sync runs the feed resync cycle: fetch every configured feed,
// parse, bulk-merge against the store and persist once. Cycles are
// serialized; the source system let overlapping syncs race to the final
// write, which is avoided here by rejecting the overlap instead.
package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"staycal/internal/feed"
	appLog "staycal/internal/log"
	"staycal/internal/metrics"
	"staycal/internal/model"
	"staycal/internal/recon"
	"staycal/internal/store"
)

// ErrSyncInProgress is returned when a cycle starts while another is running.
var ErrSyncInProgress = errors.New("a sync cycle is already running")

// FeedError reports one feed's failure without aborting the cycle.
type FeedError struct {
	Source feed.Source
	Err    error
}

func (e FeedError) Error() string {
	label := e.Source.Label
	if label == "" {
		label = string(e.Source.Origin) + " " + e.Source.Property
	}
	return label + ": " + e.Err.Error()
}

// Report summarizes one completed cycle for the operator.
type Report struct {
	FeedCount  int
	Imported   int
	FeedErrors []FeedError
	StartedAt  time.Time
	FinishedAt time.Time
}

// Runner owns the sync cycle.
type Runner struct {
	store   *store.Store
	fetcher *feed.Fetcher
	feeds   []feed.Source
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
}

func NewRunner(s *store.Store, f *feed.Fetcher, feeds []feed.Source, m *metrics.Metrics) *Runner {
	return &Runner{store: s, fetcher: f, feeds: feeds, metrics: m}
}

// RunCycle fetches and parses every configured feed, then replaces the
// store's feed-derived records in a single write. Individual feed failures
// abort only that feed's contribution; they are collected in the report.
func (r *Runner) RunCycle(ctx context.Context) (Report, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return Report{}, ErrSyncInProgress
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	report := Report{StartedAt: time.Now()}
	drafts := r.collect(ctx, &report)

	next := recon.BulkMerge(r.store.List(), drafts)
	if err := r.store.ReplaceAll(ctx, next); err != nil {
		return report, err
	}

	report.Imported = len(drafts)
	report.FinishedAt = time.Now()

	if r.metrics != nil {
		r.metrics.SyncsTotal.Inc()
		r.metrics.ImportedTotal.Add(float64(report.Imported))
		if len(report.FeedErrors) > 0 {
			r.metrics.SyncErrorsTotal.Inc()
		}
	}

	appLog.Info("sync cycle completed",
		"feeds", report.FeedCount,
		"imported", report.Imported,
		"failed_feeds", len(report.FeedErrors),
		"elapsed", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

// collect gathers drafts from every configured feed, isolating failures to
// the feed that produced them.
func (r *Runner) collect(ctx context.Context, report *Report) []model.Reservation {
	drafts := make([]model.Reservation, 0)

	for _, src := range r.feeds {
		if src.URL == "" {
			continue
		}
		report.FeedCount++

		body, err := r.fetcher.Fetch(ctx, src)
		if err != nil {
			r.countFetch("error")
			report.FeedErrors = append(report.FeedErrors, FeedError{Source: src, Err: err})
			appLog.Error("feed fetch failed", err, "feed", src.Label, "property", src.Property, "origin", src.Origin)
			continue
		}

		parsed, err := feed.Parse(src, body)
		if err != nil {
			r.countFetch("invalid_format")
			report.FeedErrors = append(report.FeedErrors, FeedError{Source: src, Err: err})
			appLog.Error("feed content unusable", err, "feed", src.Label)
			continue
		}

		r.countFetch("ok")
		appLog.Info("feed parsed", "feed", src.Label, "drafts", len(parsed))
		drafts = append(drafts, parsed...)
	}

	return drafts
}

func (r *Runner) countFetch(result string) {
	if r.metrics != nil {
		r.metrics.FeedFetchesTotal.WithLabelValues(result).Inc()
	}
}

// Schedule starts a cron-driven periodic sync with the given spec, e.g.
// "*/30 * * * *". The returned cron is already running; stop it to halt the
// schedule.
func (r *Runner) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := r.RunCycle(ctx); err != nil {
			if errors.Is(err, ErrSyncInProgress) {
				appLog.Warn("scheduled sync skipped, previous cycle still running")
				return
			}
			appLog.Error("scheduled sync failed", err)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("sync schedule started", "spec", spec)
	return c, nil
}
