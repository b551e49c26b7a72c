package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Origin tags a reservation with its provenance. Manual records belong to the
// operator and survive feed syncs; every other origin is re-derivable from
// its source feed and may be replaced wholesale on the next sync.
type Origin string

const (
	OriginManual     Origin = "manual"
	OriginAirbnb     Origin = "airbnb"
	OriginRiparide   Origin = "riparide"
	OriginBookingCom Origin = "booking.com"
	OriginDirect     Origin = "direct"
)

// KnownOrigin reports whether o is one of the recognized provenance tags.
func KnownOrigin(o Origin) bool {
	switch o {
	case OriginManual, OriginAirbnb, OriginRiparide, OriginBookingCom, OriginDirect:
		return true
	}
	return false
}

// Cleaning is the optional cleaning assignment attached to a stay.
// Free-form; no invariants.
type Cleaning struct {
	Cleaner string `json:"cleaner,omitempty" yaml:"cleaner,omitempty"`
	Date    string `json:"date,omitempty" yaml:"date,omitempty"`
	Time    string `json:"time,omitempty" yaml:"time,omitempty"`
}

// Reservation is one guest stay: a property, a [CheckIn, CheckOut) date
// range, and whatever contact details are known so far. Contact fields are
// frequently empty on feed-imported records until enrichment fills them in.
type Reservation struct {
	ID        string   `json:"id"`
	Property  string   `json:"property" validate:"required"`
	CheckIn   Date     `json:"check_in"`
	CheckOut  Date     `json:"check_out"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Email     string   `json:"email,omitempty" validate:"omitempty,email"`
	Origin    Origin   `json:"origin"`
	Notes     string   `json:"notes,omitempty"`
	Cleaning  Cleaning `json:"cleaning"`
}

// GuestName returns a display name, falling back to "Guest" when both name
// fields are empty.
func (r Reservation) GuestName() string {
	switch {
	case r.FirstName != "" && r.LastName != "":
		return r.FirstName + " " + r.LastName
	case r.FirstName != "":
		return r.FirstName
	case r.LastName != "":
		return r.LastName
	default:
		return "Guest"
	}
}

var validate = validator.New()

var (
	ErrMissingDates  = errors.New("both check-in and check-out dates are required")
	ErrInvertedRange = errors.New("check-out date must be after check-in date")
)

// Validate checks the structural invariants of a reservation before it is
// allowed anywhere near the store. The date-range invariant is CheckOut
// strictly after CheckIn.
func (r Reservation) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.CheckIn.IsZero() || r.CheckOut.IsZero() {
		return ErrMissingDates
	}
	if !r.CheckOut.After(r.CheckIn) {
		return ErrInvertedRange
	}
	if !KnownOrigin(r.Origin) {
		return fmt.Errorf("unknown origin %q", r.Origin)
	}
	return nil
}

// Date is a civil calendar date with no time-of-day or zone component.
// The zero value is "no date".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// NewDate builds a Date from its components, normalizing out-of-range values
// the same way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf truncates a time.Time to its civil date in the time's location.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight UTC of the date, for arithmetic.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return d.Time().Format(dateLayout)
}

func (d Date) Before(o Date) bool { return d.Time().Before(o.Time()) }
func (d Date) After(o Date) bool  { return d.Time().After(o.Time()) }
func (d Date) Equal(o Date) bool  { return d == o }

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// DaysUntil returns the number of whole days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.Time().Sub(d.Time()) / (24 * time.Hour))
}

// MarshalJSON encodes the date as "YYYY-MM-DD"; the zero date encodes as "".
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD" or "" for the zero date.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date literal %s", s)
	}
	s = s[1 : len(s)-1]
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
