package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the prometheus instruments for sync and webhook activity.
type Metrics struct {
	SyncsTotal         prometheus.Counter
	SyncErrorsTotal    prometheus.Counter
	FeedFetchesTotal   *prometheus.CounterVec
	ImportedTotal      prometheus.Counter
	EnrichmentsTotal   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
}

// New registers the instruments with the given registerer. Tests pass a fresh
// registry to avoid duplicate-registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SyncsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "staycal_syncs_total",
			Help: "Total number of completed sync cycles",
		}),

		SyncErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "staycal_sync_errors_total",
			Help: "Total number of sync cycles that reported at least one feed failure",
		}),

		FeedFetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "staycal_feed_fetches_total",
			Help: "Feed fetch attempts by result",
		}, []string{"result"}),

		ImportedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "staycal_reservations_imported_total",
			Help: "Total number of reservation drafts imported from feeds",
		}),

		EnrichmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "staycal_enrichments_total",
			Help: "Enrichment webhook payloads by outcome",
		}, []string{"result"}),

		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "staycal_notifications_total",
			Help: "Outbound notifications by result",
		}, []string{"result"}),
	}
}
