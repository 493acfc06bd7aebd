package chore

import (
	"fmt"
	"time"

	"chorebank/internal/recurrence"
	"chorebank/internal/store"
)

// streakLookback bounds how far back the previous-instance search goes.
// Anything older contributes nothing, which forgives ancient history.
const streakLookback = 30 * 24 * time.Hour

// StreakCalculator chains approvals of a template for a child: each
// approval extends the streak recorded on the previous approved instance
// when that instance falls on exactly the date the recurrence rule
// implies.
type StreakCalculator struct {
	instances *store.InstanceStore
}

func NewStreakCalculator(instances *store.InstanceStore) *StreakCalculator {
	return &StreakCalculator{instances: instances}
}

// Compute returns the streak as of date, counting date itself as the
// first link. Only an approved instance on the rule-implied previous
// occurrence extends the chain; a gap, a missed day, or a day still
// awaiting approval resets the count to 1.
func (c *StreakCalculator) Compute(familyID, childID, templateID int64, rule recurrence.Rule, date time.Time) (int, error) {
	date = recurrence.StartOfDay(date)
	cutoff := date.Add(-streakLookback)

	prev, err := c.instances.LatestApprovedBefore(familyID, childID, templateID, date, cutoff)
	if err != nil {
		return 0, fmt.Errorf("load previous approved instance: %w", err)
	}
	if prev == nil {
		return 1, nil
	}

	expected, ok := rule.PreviousOccurrence(date)
	if !ok || expected.Before(cutoff) {
		return 1, nil
	}
	if recurrence.StartOfDay(prev.Date).Equal(recurrence.StartOfDay(expected)) {
		return prev.StreakCount + 1, nil
	}
	return 1, nil
}
