package feed

import (
	"bufio"
	"bytes"
	"errors"
	"regexp"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "staycal/internal/log"
	"staycal/internal/model"
)

// ErrInvalidFormat indicates the fetched document does not look like the
// calendar exchange format at all. It is reported distinctly from a fetch
// failure; a document that merely contains broken blocks is not this error.
var ErrInvalidFormat = errors.New("document is not in iCalendar format")

const (
	// maxRecurrences bounds RRULE expansion per event.
	maxRecurrences = 100
	// recurrenceHorizon bounds how far ahead recurring blocks are expanded.
	recurrenceHorizon = 366 * 24 * time.Hour
)

var (
	dateStampRe = regexp.MustCompile(`(\d{8})`)
	firstLastRe = regexp.MustCompile(`^([A-Za-z]+)\s+([A-Za-z]+)`)
	spacesRe    = regexp.MustCompile(`\s+`)
)

// Parse converts one feed document into normalized reservation drafts tagged
// with the source's property and origin.
//
// A strict iCalendar parse is attempted first; feeds from the platforms are
// usually well-formed and this path also expands recurring blocked-date
// events. Untrusted feeds sometimes carry truncated administrative blocks
// that a strict parser rejects wholesale, so on failure the document is
// re-scanned line by line and partial blocks are silently dropped.
func Parse(src Source, body []byte) ([]model.Reservation, error) {
	if !bytes.Contains(body, []byte("BEGIN:VCALENDAR")) && !bytes.Contains(body, []byte("BEGIN:VEVENT")) {
		return nil, ErrInvalidFormat
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err == nil {
		return parseStrict(src, cal), nil
	}

	appLog.Warn("strict calendar parse failed, falling back to line scan", "feed", src.label(), "err", err)
	return parseTolerant(src, body), nil
}

func parseStrict(src Source, cal *ical.Calendar) []model.Reservation {
	drafts := make([]model.Reservation, 0)

	for _, ve := range cal.Events() {
		// The platforms publish date stamps in several shapes (date-only,
		// local, UTC); the calendar date part is all that matters here.
		checkIn := parseDateStamp(propValue(ve, ical.ComponentPropertyDtStart))
		checkOut := parseDateStamp(propValue(ve, ical.ComponentPropertyDtEnd))
		if checkIn.IsZero() || checkOut.IsZero() {
			// Administrative entry without a usable date range; skip.
			continue
		}

		summary := propValue(ve, ical.ComponentPropertySummary)
		notes := unescapeText(propValue(ve, ical.ComponentPropertyDescription))

		if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil && rruleProp.Value != "" {
			drafts = append(drafts, expandRecurring(src, rruleProp.Value, checkIn, checkOut, summary, notes)...)
			continue
		}

		if d, ok := makeDraft(src, checkIn, checkOut, summary, notes); ok {
			drafts = append(drafts, d)
		}
	}

	return drafts
}

// expandRecurring turns an RRULE-bearing event into one draft per instance
// within a bounded horizon. Ids stay deterministic because each instance has
// its own date range.
func expandRecurring(src Source, raw string, checkIn, checkOut model.Date, summary, notes string) []model.Reservation {
	r, err := rrule.StrToRRule(raw)
	if err != nil {
		appLog.Warn("skipping unparsable RRULE", "feed", src.label(), "rrule", raw)
		return nil
	}
	start := checkIn.Time()
	r.DTStart(start)

	stayDays := checkIn.DaysUntil(checkOut)
	if stayDays < 1 {
		stayDays = 1
	}

	times := r.Between(start, start.Add(recurrenceHorizon), true)
	if len(times) > maxRecurrences {
		times = times[:maxRecurrences]
	}

	out := make([]model.Reservation, 0, len(times))
	for _, occ := range times {
		in := model.DateOf(occ)
		if d, ok := makeDraft(src, in, in.AddDays(stayDays), summary, notes); ok {
			out = append(out, d)
		}
	}
	return out
}

// parseTolerant scans for BEGIN:VEVENT / END:VEVENT blocks and extracts
// date stamps (YYYYMMDD anywhere in a DTSTART/DTEND line), the summary and
// the description. Blocks missing either date are dropped without error.
func parseTolerant(src Source, body []byte) []model.Reservation {
	drafts := make([]model.Reservation, 0)

	var (
		inEvent  bool
		checkIn  model.Date
		checkOut model.Date
		summary  string
		notes    string
	)

	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		switch {
		case line == "BEGIN:VEVENT":
			inEvent = true
			checkIn, checkOut = model.Date{}, model.Date{}
			summary, notes = "", ""

		case line == "END:VEVENT" && inEvent:
			if d, ok := makeDraft(src, checkIn, checkOut, summary, notes); ok {
				drafts = append(drafts, d)
			}
			inEvent = false

		case !inEvent:
			// Ignore everything outside event blocks.

		case strings.HasPrefix(line, "DTSTART"):
			checkIn = parseDateStamp(line)

		case strings.HasPrefix(line, "DTEND"):
			checkOut = parseDateStamp(line)

		case strings.HasPrefix(line, "SUMMARY:"):
			summary = strings.TrimPrefix(line, "SUMMARY:")

		case strings.HasPrefix(line, "DESCRIPTION:"):
			notes = unescapeText(strings.TrimPrefix(line, "DESCRIPTION:"))
		}
	}

	return drafts
}

// parseDateStamp pulls the first YYYYMMDD stamp out of a property line.
// Returns the zero Date when nothing parses.
func parseDateStamp(line string) model.Date {
	m := dateStampRe.FindString(line)
	if m == "" {
		return model.Date{}
	}
	t, err := time.Parse("20060102", m)
	if err != nil {
		return model.Date{}
	}
	return model.DateOf(t)
}

// makeDraft assembles one reservation draft; ok is false when either date is
// missing, which drops the block silently.
func makeDraft(src Source, checkIn, checkOut model.Date, summary, notes string) (model.Reservation, bool) {
	if checkIn.IsZero() || checkOut.IsZero() {
		return model.Reservation{}, false
	}

	first, last := splitGuestName(summary)
	return model.Reservation{
		ID:        DraftID(src.Origin, src.Property, checkIn, checkOut, summary),
		Property:  src.Property,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		FirstName: first,
		LastName:  last,
		Origin:    src.Origin,
		Notes:     notes,
	}, true
}

// DraftID derives the deterministic identity of a feed-imported reservation,
// so repeated imports of the same feed entry collapse to one record.
func DraftID(origin model.Origin, property string, checkIn, checkOut model.Date, summary string) string {
	slug := spacesRe.ReplaceAllString(summary, "")
	if slug == "" {
		slug = "booking"
	}
	return "ical-" + string(origin) + "-" + spacesRe.ReplaceAllString(property, "") +
		"-" + checkIn.String() + "-" + checkOut.String() + "-" + slug
}

// splitGuestName derives first/last name from a summary line. A clean
// "First Last" pattern wins; otherwise the first token is the first name and
// the second (if any) the last name; an empty summary yields the placeholder.
func splitGuestName(summary string) (first, last string) {
	if m := firstLastRe.FindStringSubmatch(summary); m != nil {
		return m[1], m[2]
	}
	words := strings.Fields(summary)
	switch len(words) {
	case 0:
		return "Guest", ""
	case 1:
		return words[0], ""
	default:
		return words[0], words[1]
	}
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

func unescapeText(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\,`, ",")
	return s
}
