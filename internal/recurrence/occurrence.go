package recurrence

import "time"

// ShouldGenerate reports whether an instance of this rule is due on the
// given date. Weekly instances are generated on the week anchor (Sunday)
// and weekend instances on Saturday; both then live past their generation
// day until expiration.
func (r Rule) ShouldGenerate(date time.Time) bool {
	day := date.Weekday()

	switch r.Kind {
	case Daily:
		return true
	case Weekdays:
		return day >= time.Monday && day <= time.Friday
	case Weekly:
		return day == time.Sunday
	case Weekend:
		return day == time.Saturday
	case AsNeeded:
		if sameDay(r.Anchor, date) {
			return true
		}
		if r.Interval > 0 {
			return r.isRepeatDate(date)
		}
		return false
	}
	return false
}

func (r Rule) isRepeatDate(date time.Time) bool {
	switch r.Unit {
	case UnitDays:
		d := daysBetween(r.Anchor, date)
		return d > 0 && d%r.Interval == 0
	case UnitWeeks:
		d := daysBetween(r.Anchor, date)
		return d > 0 && d%(r.Interval*7) == 0
	case UnitMonths:
		months := (date.Year()-r.Anchor.Year())*12 + int(date.Month()-r.Anchor.Month())
		return months > 0 && months%r.Interval == 0 && date.Day() == r.Anchor.Day()
	}
	return false
}

// ExpiresAt returns the expiration instant for an instance generated on
// date: end of the date itself for daily/weekdays/as-needed, end of the
// following Sunday for weekly, end of Sunday for weekend.
func (r Rule) ExpiresAt(date time.Time) time.Time {
	switch r.Kind {
	case Weekly:
		untilSunday := 7 - int(date.Weekday())
		return endOfDay(date.AddDate(0, 0, untilSunday))
	case Weekend:
		if date.Weekday() == time.Saturday {
			return endOfDay(date.AddDate(0, 0, 1))
		}
		return endOfDay(date)
	default:
		return endOfDay(date)
	}
}

// PreviousOccurrence returns the schedule-implied occurrence immediately
// before date, used for streak continuity. ok is false when the rule has
// no prior occurrence (e.g. a non-repeating as-needed rule, or the anchor
// itself).
func (r Rule) PreviousOccurrence(date time.Time) (time.Time, bool) {
	switch r.Kind {
	case Daily:
		return date.AddDate(0, 0, -1), true
	case Weekdays:
		switch date.Weekday() {
		case time.Monday:
			return date.AddDate(0, 0, -3), true
		case time.Sunday:
			return date.AddDate(0, 0, -2), true
		default:
			return date.AddDate(0, 0, -1), true
		}
	case Weekly, Weekend:
		return date.AddDate(0, 0, -7), true
	case AsNeeded:
		if r.Interval == 0 || sameDay(r.Anchor, date) || date.Before(r.Anchor) {
			return time.Time{}, false
		}
		switch r.Unit {
		case UnitDays:
			prev := date.AddDate(0, 0, -r.Interval)
			if prev.Before(r.Anchor) {
				return time.Time{}, false
			}
			return prev, true
		case UnitWeeks:
			prev := date.AddDate(0, 0, -r.Interval*7)
			if prev.Before(r.Anchor) {
				return time.Time{}, false
			}
			return prev, true
		case UnitMonths:
			prev := date.AddDate(0, -r.Interval, 0)
			if prev.Before(r.Anchor) {
				return time.Time{}, false
			}
			return prev, true
		}
		return time.Time{}, false
	}
	return time.Time{}, false
}

// SameDay reports whether two instants fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return sameDay(a, b)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func daysBetween(from, to time.Time) int {
	return int(startOfDay(to).Sub(startOfDay(from)).Hours() / 24)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// StartOfDay truncates an instant to midnight in its location.
func StartOfDay(t time.Time) time.Time {
	return startOfDay(t)
}
