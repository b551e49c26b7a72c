package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"staycal/internal/config"
	"staycal/internal/grid"
	"staycal/internal/layout"
	appLog "staycal/internal/log"
	"staycal/internal/metrics"
	"staycal/internal/model"
	"staycal/internal/notify"
	"staycal/internal/recon"
	"staycal/internal/store"
	appSync "staycal/internal/sync"
)

// Server provides the HTTP API: reservation CRUD, the month calendar view,
// manual sync triggering, and the booking-email enrichment webhook.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	runner   *appSync.Runner
	notifier *notify.Notifier
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	mux      *http.ServeMux
}

// NewServer constructs a new Server. registry may be nil when the /metrics
// endpoint is not wanted (tests usually pass a fresh one).
func NewServer(cfg *config.Config, st *store.Store, runner *appSync.Runner, notifier *notify.Notifier, m *metrics.Metrics, registry *prometheus.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		runner:   runner,
		notifier: notifier,
		metrics:  m,
		registry: registry,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// StartServer starts an HTTP server bound to cfg.Listen. Shutdown is wired
// up in cmd/staycal via http.Server wrapping; this helper only covers the
// simple ListenAndServe path.
func StartServer(_ context.Context, s *Server) error {
	appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
	return http.ListenAndServe(s.cfg.Listen, s.Handler())
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/reservations", s.handleReservations)
	s.mux.HandleFunc("/api/reservations/", s.handleReservationByID)
	s.mux.HandleFunc("/api/calendar", s.handleCalendar)
	s.mux.HandleFunc("/api/sync", s.handleSync)
	s.mux.HandleFunc("/webhooks/booking-email", s.handleBookingEmail)

	if s.registry != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReservations serves the collection endpoint.
//
// GET  /api/reservations  - full list in stored order
// POST /api/reservations  - create a manual reservation
func (s *Server) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		recs := s.store.List()

		q := r.URL.Query()
		if prop := q.Get("property"); prop != "" {
			recs = filterReservations(recs, func(rec model.Reservation) bool {
				return rec.Property == prop
			})
		}
		if fromParam := q.Get("from"); fromParam != "" {
			from, err := model.ParseDate(fromParam)
			if err != nil {
				writeError(w, http.StatusBadRequest, "from must be formatted YYYY-MM-DD")
				return
			}
			// Keep stays that have not ended before the cutoff.
			recs = filterReservations(recs, func(rec model.Reservation) bool {
				return !rec.CheckOut.IsZero() && !rec.CheckOut.Before(from)
			})
		}

		writeJSON(w, http.StatusOK, recs)

	case http.MethodPost:
		var draft model.Reservation
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		created, err := s.store.Create(r.Context(), draft)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		if s.notifier != nil {
			s.notifier.Event(r.Context(), "created", created)
			s.notifier.Confirmation(created)
		}
		writeJSON(w, http.StatusCreated, created)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleReservationByID serves /api/reservations/{id}.
func (s *Server) handleReservationByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/reservations/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.store.Get(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "reservation not found")
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodPut:
		var rec model.Reservation
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		rec.ID = id

		if err := s.store.Update(r.Context(), rec); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "reservation not found")
				return
			}
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		if s.notifier != nil {
			s.notifier.Event(r.Context(), "updated", rec)
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodDelete:
		rec, err := s.store.Get(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "reservation not found")
			return
		}

		if err := s.store.Delete(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrImmutableOrigin) {
				writeError(w, http.StatusForbidden, err.Error())
				return
			}
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "reservation not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to delete reservation")
			return
		}

		if s.notifier != nil {
			s.notifier.Event(r.Context(), "deleted", rec)
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// calendarResponse is the JSON response shape for /api/calendar.
type calendarResponse struct {
	Month    string           `json:"month"`
	Rows     int              `json:"rows"`
	Cells    []grid.Cell      `json:"cells"`
	Segments []layout.Segment `json:"segments"`
}

// handleCalendar returns the rendered month: the Monday-start cell sequence
// plus the laid-out reservation bar segments.
//
// GET /api/calendar?month=2025-06&property=Jacky%20Winter%20Gardens
//   - month:    target month, YYYY-MM (default: current month)
//   - property: optional filter to one unit
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()

	monthParam := q.Get("month")
	var year int
	var month time.Month
	if monthParam == "" {
		now := time.Now()
		year, month = now.Year(), now.Month()
	} else {
		t, err := time.Parse("2006-01", monthParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be formatted YYYY-MM")
			return
		}
		year, month = t.Year(), t.Month()
	}

	reservations := s.store.List()
	if prop := q.Get("property"); prop != "" {
		reservations = filterReservations(reservations, func(rec model.Reservation) bool {
			return rec.Property == prop
		})
	}

	cells := grid.MonthCells(year, month)
	segments := layout.MonthSegments(cells, reservations, year, month)

	writeJSON(w, http.StatusOK, calendarResponse{
		Month:    fmt.Sprintf("%04d-%02d", year, int(month)),
		Rows:     grid.Rows(cells),
		Cells:    cells,
		Segments: segments,
	})
}

// syncResponse is the JSON response shape for /api/sync.
type syncResponse struct {
	FeedCount  int       `json:"feed_count"`
	Imported   int       `json:"imported"`
	FeedErrors []string  `json:"feed_errors"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// handleSync triggers one sync cycle. A cycle already in flight yields 409
// so the caller can retry instead of stacking concurrent writes.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "sync is not configured")
		return
	}

	report, err := s.runner.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, appSync.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		appLog.Error("manual sync failed", err)
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	feedErrs := make([]string, 0, len(report.FeedErrors))
	for _, fe := range report.FeedErrors {
		feedErrs = append(feedErrs, fe.Error())
	}
	writeJSON(w, http.StatusOK, syncResponse{
		FeedCount:  report.FeedCount,
		Imported:   report.Imported,
		FeedErrors: feedErrs,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	})
}

// handleBookingEmail accepts contact details extracted from a platform's
// booking email and attaches them to the matching reservation. A payload
// that matches nothing is acknowledged anyway; the upstream automation has
// no use for a failure it cannot act on.
func (s *Server) handleBookingEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload recon.EnrichmentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := payload.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs := s.store.List()
	idx, ok := recon.Match(recs, payload)
	if !ok {
		appLog.Info("enrichment matched no reservation",
			"origin", payload.SourceOrigin,
			"guest", payload.Extracted.FirstName+" "+payload.Extracted.LastName,
		)
		s.countEnrichment("no_match")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	updated := recon.Apply(recs[idx], payload.Extracted)
	if err := s.store.Update(r.Context(), updated); err != nil {
		appLog.Error("enrichment update failed", err, "id", updated.ID)
		writeError(w, http.StatusInternalServerError, "failed to store contact details")
		return
	}

	appLog.Info("reservation enriched",
		"id", updated.ID,
		"origin", payload.SourceOrigin,
		"guest", updated.GuestName(),
	)
	s.countEnrichment("matched")

	if s.notifier != nil {
		s.notifier.Event(r.Context(), "enriched", updated)
		s.notifier.Confirmation(updated)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) countEnrichment(result string) {
	if s.metrics != nil {
		s.metrics.EnrichmentsTotal.WithLabelValues(result).Inc()
	}
}

func filterReservations(recs []model.Reservation, keep func(model.Reservation) bool) []model.Reservation {
	out := make([]model.Reservation, 0, len(recs))
	for _, rec := range recs {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
