// Package store holds the canonical, de-duplicated reservation collection.
// It is the only mutable shared state in the system; every mutation persists
// the entire collection to the blob backend as one write.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	appLog "staycal/internal/log"
	"staycal/internal/model"
)

var (
	ErrNotFound = errors.New("reservation not found")
	// ErrImmutableOrigin is returned when a delete targets a feed-derived
	// record; those are owned by their feed and disappear on the next sync
	// instead.
	ErrImmutableOrigin = errors.New("only manually created reservations can be deleted")
)

// Store is the reservation collection plus its persistence. Insertion order
// is preserved; the layout engine relies on it as the lane tie-break.
type Store struct {
	mu   sync.Mutex
	blob Blob
	recs []model.Reservation
}

// Open loads the collection from the blob. An absent or empty blob seeds the
// built-in default data set and persists it.
func Open(ctx context.Context, blob Blob) (*Store, error) {
	s := &Store{blob: blob}

	data, err := blob.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		s.recs = Seed()
		appLog.Info("store empty, seeding defaults", "count", len(s.recs))
		if err := s.persistLocked(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := json.Unmarshal(data, &s.recs); err != nil {
		return nil, err
	}
	appLog.Info("store loaded", "count", len(s.recs))
	return s, nil
}

// List returns a copy of the collection in insertion order.
func (s *Store) List() []model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Reservation, len(s.recs))
	copy(out, s.recs)
	return out
}

// Get returns the reservation with the given id.
func (s *Store) Get(id string) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recs {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Reservation{}, ErrNotFound
}

// Create validates and inserts a manually entered reservation, assigning the
// next sequential id. Validation failures leave the store untouched.
func (s *Store) Create(ctx context.Context, r model.Reservation) (model.Reservation, error) {
	r.Origin = model.OriginManual
	r.ID = "" // assigned below; ignore any caller-supplied id
	if err := validateDraft(r); err != nil {
		return model.Reservation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = strconv.Itoa(s.nextLocalIDLocked())
	s.recs = append(s.recs, r)
	if err := s.persistLocked(ctx); err != nil {
		s.recs = s.recs[:len(s.recs)-1]
		return model.Reservation{}, err
	}
	return r, nil
}

// Update replaces the record with the same id.
func (s *Store) Update(ctx context.Context, r model.Reservation) error {
	if err := validateDraft(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.recs {
		if s.recs[i].ID == r.ID {
			prev := s.recs[i]
			s.recs[i] = r
			if err := s.persistLocked(ctx); err != nil {
				s.recs[i] = prev
				return err
			}
			return nil
		}
	}
	return ErrNotFound
}

// Delete removes a manual reservation. Feed-origin records are refused.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.recs {
		if s.recs[i].ID != id {
			continue
		}
		if s.recs[i].Origin != model.OriginManual {
			return ErrImmutableOrigin
		}
		removed := s.recs[i]
		s.recs = append(s.recs[:i], s.recs[i+1:]...)
		if err := s.persistLocked(ctx); err != nil {
			s.recs = append(s.recs[:i], append([]model.Reservation{removed}, s.recs[i:]...)...)
			return err
		}
		return nil
	}
	return ErrNotFound
}

// ReplaceAll swaps in a new collection wholesale, de-duplicating by id with
// last-write-wins, and persists it as one write. This is the sync path.
func (s *Store) ReplaceAll(ctx context.Context, recs []model.Reservation) error {
	deduped := dedupeByID(recs)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.recs
	s.recs = deduped
	if err := s.persistLocked(ctx); err != nil {
		s.recs = prev
		return err
	}
	return nil
}

// dedupeByID keeps first-seen positions but lets a later record with the
// same id win its slot.
func dedupeByID(recs []model.Reservation) []model.Reservation {
	out := make([]model.Reservation, 0, len(recs))
	index := make(map[string]int, len(recs))
	for _, r := range recs {
		if i, ok := index[r.ID]; ok {
			out[i] = r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}

// nextLocalIDLocked scans for the highest numeric id and returns one more.
// Feed-derived ids are not numeric and never collide with this sequence.
func (s *Store) nextLocalIDLocked() int {
	next := 1
	for _, r := range s.recs {
		if n, err := strconv.Atoi(r.ID); err == nil && n >= next {
			next = n + 1
		}
	}
	return next
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.recs)
	if err != nil {
		return err
	}
	return s.blob.Save(ctx, data)
}

func validateDraft(r model.Reservation) error {
	if err := r.Validate(); err != nil {
		appLog.Debug("reservation rejected", "err", err)
		return err
	}
	return nil
}
