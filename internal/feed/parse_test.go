package feed

import (
	"strings"
	"testing"

	"staycal/internal/model"
)

var gardensAirbnb = Source{
	Property: "Jacky Winter Gardens",
	Origin:   model.OriginAirbnb,
	URL:      "https://example.com/gardens.ics",
	Label:    "Gardens Airbnb",
}

func ics(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func TestParseWellFormedEvent(t *testing.T) {
	body := ics(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Airbnb Inc//Hosting Calendar 1.0//EN",
		"BEGIN:VEVENT",
		"DTSTAMP:20250601T000000Z",
		"UID:abc123@airbnb.com",
		"DTSTART:20250620",
		"DTEND:20250622",
		"SUMMARY:John Smith",
		"DESCRIPTION:Phone: 555-0123\\nGuests: 2",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	drafts, err := Parse(gardensAirbnb, body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("got %d drafts, want 1", len(drafts))
	}

	d := drafts[0]
	if got := d.CheckIn.String(); got != "2025-06-20" {
		t.Errorf("check-in = %s, want 2025-06-20", got)
	}
	if got := d.CheckOut.String(); got != "2025-06-22" {
		t.Errorf("check-out = %s, want 2025-06-22", got)
	}
	if d.FirstName != "John" || d.LastName != "Smith" {
		t.Errorf("guest = %q %q, want John Smith", d.FirstName, d.LastName)
	}
	if d.Origin != model.OriginAirbnb || d.Property != "Jacky Winter Gardens" {
		t.Errorf("tagging = %s / %s", d.Origin, d.Property)
	}
	if !strings.Contains(d.Notes, "Phone: 555-0123\nGuests: 2") {
		t.Errorf("notes not unescaped: %q", d.Notes)
	}
}

func TestParseDeterministicID(t *testing.T) {
	body := ics(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"BEGIN:VEVENT",
		"UID:u1",
		"DTSTAMP:20250601T000000Z",
		"DTSTART:20250620",
		"DTEND:20250622",
		"SUMMARY:John Smith",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	first, err := Parse(gardensAirbnb, body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	second, err := Parse(gardensAirbnb, body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if first[0].ID != second[0].ID {
		t.Fatalf("ids differ across imports: %s vs %s", first[0].ID, second[0].ID)
	}
	want := "ical-airbnb-JackyWinterGardens-2025-06-20-2025-06-22-JohnSmith"
	if first[0].ID != want {
		t.Fatalf("id = %s, want %s", first[0].ID, want)
	}
}

func TestParseTolerantFallback(t *testing.T) {
	// No VCALENDAR wrapper: the strict parser rejects this, the line scanner
	// must still recover the complete block and drop the truncated one.
	body := ics(
		"BEGIN:VEVENT",
		"DTSTART;VALUE=DATE:20250701",
		"DTEND;VALUE=DATE:20250703",
		"SUMMARY:Sarah Johnson",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"DTSTART;VALUE=DATE:20250710",
		"SUMMARY:Not available",
		"END:VEVENT",
	)

	drafts, err := Parse(gardensAirbnb, body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("got %d drafts, want 1 (partial block must be dropped silently)", len(drafts))
	}
	if drafts[0].FirstName != "Sarah" || drafts[0].LastName != "Johnson" {
		t.Errorf("guest = %q %q", drafts[0].FirstName, drafts[0].LastName)
	}
}

func TestParseInvalidFormat(t *testing.T) {
	_, err := Parse(gardensAirbnb, []byte("<html><body>Not Found</body></html>"))
	if err != ErrInvalidFormat {
		t.Fatalf("err = %v, want ErrInvalidFormat", err)
	}
}

func TestParseEmptyCalendar(t *testing.T) {
	body := ics(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"END:VCALENDAR",
	)
	drafts, err := Parse(gardensAirbnb, body)
	if err != nil {
		t.Fatalf("a parseable document with no events is not an error, got %v", err)
	}
	if len(drafts) != 0 {
		t.Fatalf("got %d drafts, want 0", len(drafts))
	}
}

func TestParseRecurringBlock(t *testing.T) {
	body := ics(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"BEGIN:VEVENT",
		"UID:block-1",
		"DTSTAMP:20250601T000000Z",
		"DTSTART:20250607",
		"DTEND:20250608",
		"RRULE:FREQ=WEEKLY;COUNT=4",
		"SUMMARY:Blocked",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	drafts, err := Parse(gardensAirbnb, body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(drafts) != 4 {
		t.Fatalf("got %d drafts, want 4 weekly instances", len(drafts))
	}
	seen := make(map[string]bool)
	for _, d := range drafts {
		if seen[d.ID] {
			t.Fatalf("duplicate instance id %s", d.ID)
		}
		seen[d.ID] = true
		if got := d.CheckIn.DaysUntil(d.CheckOut); got != 1 {
			t.Errorf("instance stay length = %d days, want 1", got)
		}
	}
	if got := drafts[1].CheckIn.String(); got != "2025-06-14" {
		t.Errorf("second instance check-in = %s, want 2025-06-14", got)
	}
}

func TestSplitGuestName(t *testing.T) {
	cases := []struct {
		summary     string
		first, last string
	}{
		{"John Smith", "John", "Smith"},
		{"Reserved", "Reserved", ""},
		{"", "Guest", ""},
		{"Airbnb (Not available)", "Airbnb", "(Not"},
		{"Mae Mactier (HMABCDE)", "Mae", "Mactier"},
	}
	for _, c := range cases {
		first, last := splitGuestName(c.summary)
		if first != c.first || last != c.last {
			t.Errorf("splitGuestName(%q) = %q %q, want %q %q", c.summary, first, last, c.first, c.last)
		}
	}
}
