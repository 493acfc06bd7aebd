package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the closed set of schedule frequencies. Every dispatch on
// frequency goes through a Rule method rather than string comparison.
type Kind int

const (
	Daily Kind = iota
	Weekdays
	Weekly
	Weekend
	AsNeeded
)

var kindNames = map[Kind]string{
	Daily:    "DAILY",
	Weekdays: "WEEKDAYS",
	Weekly:   "WEEKLY",
	Weekend:  "WEEKEND",
	AsNeeded: "ASNEEDED",
}

var kindFromName = map[string]Kind{
	"DAILY":    Daily,
	"WEEKDAYS": Weekdays,
	"WEEKLY":   Weekly,
	"WEEKEND":  Weekend,
	"ASNEEDED": AsNeeded,
}

// RepeatUnit is the step unit for repeating as-needed rules.
type RepeatUnit string

const (
	UnitDays   RepeatUnit = "DAYS"
	UnitWeeks  RepeatUnit = "WEEKS"
	UnitMonths RepeatUnit = "MONTHS"
)

const anchorLayout = "20060102"

// Rule is a recurrence rule. Anchor, Interval, and Unit are meaningful
// only for AsNeeded rules; Interval 0 means the rule fires on the anchor
// date alone.
type Rule struct {
	Kind     Kind
	Anchor   time.Time
	Interval int
	Unit     RepeatUnit
}

// Parse parses an encoded rule like "FREQ=WEEKLY" or
// "FREQ=ASNEEDED;ANCHOR=20260105;INTERVAL=2;UNIT=WEEKS".
func Parse(rule string) (Rule, error) {
	if rule == "" {
		return Rule{}, fmt.Errorf("empty rule")
	}

	var r Rule
	var hasFreq bool

	for _, part := range strings.Split(rule, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return Rule{}, fmt.Errorf("invalid rule part: %q", part)
		}
		key, val := kv[0], kv[1]

		switch key {
		case "FREQ":
			k, ok := kindFromName[val]
			if !ok {
				return Rule{}, fmt.Errorf("unknown frequency: %q", val)
			}
			r.Kind = k
			hasFreq = true

		case "ANCHOR":
			t, err := time.Parse(anchorLayout, val)
			if err != nil {
				return Rule{}, fmt.Errorf("invalid ANCHOR: %q", val)
			}
			r.Anchor = t

		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, fmt.Errorf("invalid interval: %q", val)
			}
			r.Interval = n

		case "UNIT":
			switch RepeatUnit(val) {
			case UnitDays, UnitWeeks, UnitMonths:
				r.Unit = RepeatUnit(val)
			default:
				return Rule{}, fmt.Errorf("unknown unit: %q", val)
			}

		default:
			return Rule{}, fmt.Errorf("unsupported rule key: %q", key)
		}
	}

	if !hasFreq {
		return Rule{}, fmt.Errorf("FREQ is required")
	}
	if r.Kind == AsNeeded && r.Anchor.IsZero() {
		return Rule{}, fmt.Errorf("ASNEEDED requires ANCHOR")
	}
	if r.Interval > 0 && r.Unit == "" {
		return Rule{}, fmt.Errorf("INTERVAL requires UNIT")
	}

	return r, nil
}

// String serializes the rule back to its encoded form.
func (r Rule) String() string {
	parts := []string{"FREQ=" + kindNames[r.Kind]}

	if !r.Anchor.IsZero() {
		parts = append(parts, "ANCHOR="+r.Anchor.Format(anchorLayout))
	}
	if r.Interval > 0 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Interval))
		parts = append(parts, "UNIT="+string(r.Unit))
	}

	return strings.Join(parts, ";")
}

// Describe returns a human-readable description of the rule.
func (r Rule) Describe() string {
	switch r.Kind {
	case Daily:
		return "Every day"
	case Weekdays:
		return "Monday through Friday"
	case Weekly:
		return "Once a week"
	case Weekend:
		return "Weekends"
	case AsNeeded:
		if r.Interval > 0 {
			return fmt.Sprintf("Every %d %s from %s",
				r.Interval, strings.ToLower(string(r.Unit)), r.Anchor.Format("Jan 2"))
		}
		return "On " + r.Anchor.Format("Jan 2, 2006")
	}
	return ""
}

// AllowsMultipleCompletions reports whether instances of this rule stay
// pending and accumulate completion records instead of transitioning to
// completed.
func (r Rule) AllowsMultipleCompletions() bool {
	return r.Kind == Weekly || r.Kind == Weekend
}
