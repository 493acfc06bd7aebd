package recurrence

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		"FREQ=DAILY",
		"FREQ=WEEKDAYS",
		"FREQ=WEEKLY",
		"FREQ=WEEKEND",
		"FREQ=ASNEEDED;ANCHOR=20260105",
		"FREQ=ASNEEDED;ANCHOR=20260105;INTERVAL=2;UNIT=WEEKS",
	}
	for _, c := range cases {
		r, err := Parse(c)
		if err != nil {
			t.Fatalf("parse %q: %v", c, err)
		}
		if got := r.String(); got != c {
			t.Errorf("round trip %q = %q", c, got)
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"FREQ=HOURLY",
		"ANCHOR=20260105",
		"FREQ=ASNEEDED",
		"FREQ=ASNEEDED;ANCHOR=20260105;INTERVAL=2",
		"FREQ=DAILY;BOGUS=1",
		"FREQ=ASNEEDED;ANCHOR=not-a-date",
	}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("parse %q: expected error", c)
		}
	}
}

func TestShouldGenerateDaily(t *testing.T) {
	r := Rule{Kind: Daily}
	for d := 0; d < 7; d++ {
		if !r.ShouldGenerate(date(2026, time.March, 1).AddDate(0, 0, d)) {
			t.Errorf("daily should generate every day (offset %d)", d)
		}
	}
}

func TestShouldGenerateWeekdays(t *testing.T) {
	r := Rule{Kind: Weekdays}
	// 2026-03-02 is a Monday.
	monday := date(2026, time.March, 2)
	for d := 0; d < 5; d++ {
		if !r.ShouldGenerate(monday.AddDate(0, 0, d)) {
			t.Errorf("weekdays should generate Mon-Fri (offset %d)", d)
		}
	}
	if r.ShouldGenerate(monday.AddDate(0, 0, 5)) {
		t.Error("weekdays generated on Saturday")
	}
	if r.ShouldGenerate(monday.AddDate(0, 0, 6)) {
		t.Error("weekdays generated on Sunday")
	}
}

func TestShouldGenerateWeeklyAndWeekend(t *testing.T) {
	weekly := Rule{Kind: Weekly}
	weekend := Rule{Kind: Weekend}

	sunday := date(2026, time.March, 1)
	saturday := date(2026, time.March, 7)

	if !weekly.ShouldGenerate(sunday) {
		t.Error("weekly should generate on Sunday")
	}
	if weekly.ShouldGenerate(saturday) {
		t.Error("weekly generated on Saturday")
	}
	if !weekend.ShouldGenerate(saturday) {
		t.Error("weekend should generate on Saturday")
	}
	if weekend.ShouldGenerate(sunday) {
		t.Error("weekend generated on Sunday")
	}
}

func TestShouldGenerateAsNeeded(t *testing.T) {
	anchor := date(2026, time.March, 3)

	once := Rule{Kind: AsNeeded, Anchor: anchor}
	if !once.ShouldGenerate(anchor) {
		t.Error("as-needed should generate on anchor date")
	}
	if once.ShouldGenerate(anchor.AddDate(0, 0, 1)) {
		t.Error("non-repeating as-needed generated off anchor")
	}

	everyThreeDays := Rule{Kind: AsNeeded, Anchor: anchor, Interval: 3, Unit: UnitDays}
	if !everyThreeDays.ShouldGenerate(anchor.AddDate(0, 0, 3)) {
		t.Error("3-day repeat should generate on anchor+3")
	}
	if everyThreeDays.ShouldGenerate(anchor.AddDate(0, 0, 4)) {
		t.Error("3-day repeat generated on anchor+4")
	}

	biweekly := Rule{Kind: AsNeeded, Anchor: anchor, Interval: 2, Unit: UnitWeeks}
	if !biweekly.ShouldGenerate(anchor.AddDate(0, 0, 14)) {
		t.Error("2-week repeat should generate on anchor+14")
	}
	if biweekly.ShouldGenerate(anchor.AddDate(0, 0, 7)) {
		t.Error("2-week repeat generated on anchor+7")
	}

	monthly := Rule{Kind: AsNeeded, Anchor: anchor, Interval: 1, Unit: UnitMonths}
	if !monthly.ShouldGenerate(date(2026, time.April, 3)) {
		t.Error("monthly repeat should generate on same day next month")
	}
	if monthly.ShouldGenerate(date(2026, time.April, 4)) {
		t.Error("monthly repeat generated on wrong day of month")
	}
}

func TestExpiresAt(t *testing.T) {
	monday := date(2026, time.March, 2)

	got := Rule{Kind: Daily}.ExpiresAt(monday)
	want := time.Date(2026, time.March, 2, 23, 59, 59, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("daily expiration = %v, want %v", got, want)
	}

	// Weekly generated Sunday March 1 expires end of the following Sunday.
	sunday := date(2026, time.March, 1)
	got = Rule{Kind: Weekly}.ExpiresAt(sunday)
	want = time.Date(2026, time.March, 8, 23, 59, 59, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("weekly expiration = %v, want %v", got, want)
	}

	// Weekend generated Saturday March 7 expires end of Sunday March 8.
	saturday := date(2026, time.March, 7)
	got = Rule{Kind: Weekend}.ExpiresAt(saturday)
	want = time.Date(2026, time.March, 8, 23, 59, 59, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("weekend expiration = %v, want %v", got, want)
	}
}

func TestPreviousOccurrence(t *testing.T) {
	// Daily: previous calendar day.
	prev, ok := Rule{Kind: Daily}.PreviousOccurrence(date(2026, time.March, 4))
	if !ok || !prev.Equal(date(2026, time.March, 3)) {
		t.Errorf("daily previous = %v ok=%v", prev, ok)
	}

	// Weekdays: Monday wraps back to Friday.
	prev, ok = Rule{Kind: Weekdays}.PreviousOccurrence(date(2026, time.March, 2))
	if !ok || prev.Weekday() != time.Friday {
		t.Errorf("weekdays previous from Monday = %v ok=%v", prev, ok)
	}

	// Weekly: one week back.
	prev, ok = Rule{Kind: Weekly}.PreviousOccurrence(date(2026, time.March, 8))
	if !ok || !prev.Equal(date(2026, time.March, 1)) {
		t.Errorf("weekly previous = %v ok=%v", prev, ok)
	}

	// As-needed without repeat has no previous occurrence.
	anchor := date(2026, time.March, 3)
	if _, ok := (Rule{Kind: AsNeeded, Anchor: anchor}).PreviousOccurrence(anchor); ok {
		t.Error("non-repeating as-needed should have no previous occurrence")
	}

	// Repeating as-needed steps back one interval, but not before the anchor.
	r := Rule{Kind: AsNeeded, Anchor: anchor, Interval: 3, Unit: UnitDays}
	prev, ok = r.PreviousOccurrence(anchor.AddDate(0, 0, 6))
	if !ok || !prev.Equal(anchor.AddDate(0, 0, 3)) {
		t.Errorf("as-needed previous = %v ok=%v", prev, ok)
	}
	if _, ok := r.PreviousOccurrence(anchor); ok {
		t.Error("anchor itself should have no previous occurrence")
	}
}

func TestAllowsMultipleCompletions(t *testing.T) {
	if (Rule{Kind: Daily}).AllowsMultipleCompletions() {
		t.Error("daily should be single-completion")
	}
	if !(Rule{Kind: Weekly}).AllowsMultipleCompletions() {
		t.Error("weekly should allow multiple completions")
	}
	if !(Rule{Kind: Weekend}).AllowsMultipleCompletions() {
		t.Error("weekend should allow multiple completions")
	}
}
