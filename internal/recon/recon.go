// Package recon merges freshly parsed feed drafts and webhook-delivered
// partial updates into the reservation collection.
package recon

import (
	"github.com/go-playground/validator/v10"

	appLog "staycal/internal/log"
	"staycal/internal/model"
)

// BulkMerge produces the next collection from the current one plus a full
// feed resync. Manual records survive unchanged; every other existing record
// is discarded and the fresh drafts take their place, which makes feed data
// idempotent and feed-authoritative. Duplicate draft ids resolve
// last-write-wins.
func BulkMerge(current, drafts []model.Reservation) []model.Reservation {
	next := make([]model.Reservation, 0, len(current)+len(drafts))
	for _, r := range current {
		if r.Origin == model.OriginManual {
			next = append(next, r)
		}
	}

	index := make(map[string]int, len(drafts))
	for _, d := range drafts {
		if i, ok := index[d.ID]; ok {
			next[i] = d
			continue
		}
		index[d.ID] = len(next)
		next = append(next, d)
	}
	return next
}

// ExtractedFields is the contact data pulled out of a platform email by the
// upstream automation.
type ExtractedFields struct {
	FirstName string      `json:"first_name" validate:"required"`
	LastName  string      `json:"last_name" validate:"required"`
	Phone     string      `json:"phone,omitempty"`
	Email     string      `json:"email,omitempty" validate:"omitempty,email"`
	CheckIn   *model.Date `json:"check_in,omitempty"`
}

// EnrichmentPayload is the inbound webhook body asserting a contact-detail
// update for one guest.
type EnrichmentPayload struct {
	SourceOrigin model.Origin    `json:"source_origin" validate:"required"`
	Extracted    ExtractedFields `json:"extracted" validate:"required"`
}

var validate = validator.New()

// Validate checks the payload shape before matching. Rule B origins need a
// check-in date to disambiguate guests with multiple stays.
func (p EnrichmentPayload) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	if !model.KnownOrigin(p.SourceOrigin) {
		return &UnknownOriginError{Origin: p.SourceOrigin}
	}
	return nil
}

// UnknownOriginError rejects payloads for origins outside the enumeration.
type UnknownOriginError struct {
	Origin model.Origin
}

func (e *UnknownOriginError) Error() string {
	return "unknown source origin " + string(e.Origin)
}

// Match finds the existing record the payload describes, using the
// origin-specific rule:
//
//   - riparide omits phone numbers from its feed, so the rule is: same
//     origin, empty phone, exact first+last name.
//   - airbnb may omit both phone and email; the rule additionally requires
//     check-in date equality so two stays by the same guest cannot
//     cross-contaminate.
//
// Returns the index into recs, or false when nothing matched. A no-match is
// not an error; enrichment is best-effort.
func Match(recs []model.Reservation, p EnrichmentPayload) (int, bool) {
	switch p.SourceOrigin {
	case model.OriginRiparide:
		for i, r := range recs {
			if r.Origin == model.OriginRiparide &&
				r.Phone == "" &&
				r.FirstName == p.Extracted.FirstName &&
				r.LastName == p.Extracted.LastName {
				return i, true
			}
		}
	case model.OriginAirbnb:
		if p.Extracted.CheckIn == nil {
			return 0, false
		}
		for i, r := range recs {
			if r.Origin == model.OriginAirbnb &&
				r.FirstName == p.Extracted.FirstName &&
				r.LastName == p.Extracted.LastName &&
				r.CheckIn.Equal(*p.Extracted.CheckIn) {
				return i, true
			}
		}
	default:
		appLog.Debug("no enrichment rule for origin", "origin", p.SourceOrigin)
	}
	return 0, false
}

// Apply merges the payload's supplied fields into the matched record.
// Fields the payload leaves empty keep their existing values; the id never
// changes.
func Apply(r model.Reservation, f ExtractedFields) model.Reservation {
	if f.Phone != "" {
		r.Phone = f.Phone
	}
	if f.Email != "" {
		r.Email = f.Email
	}
	return r
}
