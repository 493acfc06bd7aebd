package model

import "time"

// ProofRequirement says what a child must attach when completing a chore.
type ProofRequirement string

const (
	ProofPhoto ProofRequirement = "photo"
	ProofNote  ProofRequirement = "note"
	ProofNone  ProofRequirement = "none"
)

// TimeOfDay buckets chores for display ordering.
type TimeOfDay string

const (
	TimeMorning   TimeOfDay = "morning"
	TimeAfternoon TimeOfDay = "afternoon"
	TimeEvening   TimeOfDay = "evening"
	TimeAnytime   TimeOfDay = "anytime"
)

// Sequence returns the display order for a time-of-day bucket.
func (t TimeOfDay) Sequence() int {
	switch t {
	case TimeMorning:
		return 1
	case TimeAfternoon:
		return 2
	case TimeEvening:
		return 3
	default:
		return 4
	}
}

// ChoreTemplate defines a choreable unit and its reward. Templates are
// archived rather than deleted because historical instances reference them.
type ChoreTemplate struct {
	ID               int64            `json:"id"`
	FamilyID         int64            `json:"family_id"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	BucksReward      int              `json:"bucks_reward"`
	ProofRequirement ProofRequirement `json:"proof_requirement"`
	TimeOfDay        TimeOfDay        `json:"time_of_day"`
	Archived         bool             `json:"archived"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
