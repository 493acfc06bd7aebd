package model

import "time"

// InstanceStatus is the lifecycle state of a chore instance.
type InstanceStatus string

const (
	StatusPending   InstanceStatus = "pending"
	StatusCompleted InstanceStatus = "completed"
	StatusApproved  InstanceStatus = "approved"
	StatusRejected  InstanceStatus = "rejected"
	StatusMissed    InstanceStatus = "missed"
	StatusExpired   InstanceStatus = "expired"
)

// Terminal reports whether the status permits no further transitions.
func (s InstanceStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusMissed, StatusExpired:
		return true
	}
	return false
}

// CompletionProof is what a child attached when marking a chore done.
type CompletionProof struct {
	Type     string `json:"type"`
	Note     string `json:"note"`
	PhotoURL string `json:"photo_url"`
}

// ChoreInstance is one dated occurrence of a schedule. Single-completion
// instances move through the status lifecycle; multi-completion instances
// (weekly/weekend rules) stay pending and accumulate Completion records
// until they expire.
type ChoreInstance struct {
	ID              int64           `json:"id"`
	FamilyID        int64           `json:"family_id"`
	ScheduleID      *int64          `json:"schedule_id"`
	TemplateID      int64           `json:"template_id"`
	ChildID         int64           `json:"child_id"`
	Date            time.Time       `json:"date"`
	ExpiresAt       time.Time       `json:"expires_at"`
	Status          InstanceStatus  `json:"status"`
	Proof           CompletionProof `json:"proof"`
	CompletionCount int             `json:"completion_count"`
	BucksAwarded    int             `json:"bucks_awarded"`
	StreakCount     int             `json:"streak_count"`
	Sequence        int             `json:"sequence"`
	TransactionID   *string         `json:"transaction_id"`
	CalendarEventID *string         `json:"calendar_event_id"`
	CompletedAt     *time.Time      `json:"completed_at"`
	ApprovedAt      *time.Time      `json:"approved_at"`
	ApprovedBy      *int64          `json:"approved_by"`
	RejectedAt      *time.Time      `json:"rejected_at"`
	RejectedBy      *int64          `json:"rejected_by"`
	RejectionReason string          `json:"rejection_reason"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Completion is one individually-approvable completion record on a
// multi-completion instance.
type Completion struct {
	ID             int64           `json:"id"`
	InstanceID     int64           `json:"instance_id"`
	CompletedAt    time.Time       `json:"completed_at"`
	Proof          CompletionProof `json:"proof"`
	ApprovalStatus string          `json:"approval_status"`
	BucksAwarded   int             `json:"bucks_awarded"`
	ApprovedBy     *int64          `json:"approved_by"`
	TransactionID  *string         `json:"transaction_id"`
}

const (
	CompletionPending  = "pending"
	CompletionApproved = "approved"
	CompletionRejected = "rejected"
)
