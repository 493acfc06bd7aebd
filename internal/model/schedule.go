package model

import "time"

// ChoreSchedule binds a template to a child with a recurrence rule.
// At most one active schedule may exist per (template, child); schedules
// are deactivated, never deleted.
type ChoreSchedule struct {
	ID             int64      `json:"id"`
	FamilyID       int64      `json:"family_id"`
	TemplateID     int64      `json:"template_id"`
	ChildID        int64      `json:"child_id"`
	RecurrenceRule string     `json:"recurrence_rule"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
