package chore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chorebank/internal/model"
	"chorebank/internal/recurrence"
	"chorebank/internal/store"
)

// Lifecycle drives instances through their states. Single-completion
// instances move pending -> completed -> approved/rejected; weekly and
// weekend instances stay pending and collect completion records that are
// approved individually.
//
// Approval credits bucks exactly once. The guarded update that flips the
// status and writes the transaction id commits in the same SQL
// transaction as the ledger credit, so a second approval fails before
// any money moves and a failed credit rolls the approval back.
type Lifecycle struct {
	instances *store.InstanceStore
	schedules *store.ScheduleStore
	templates *store.TemplateStore
	streaks   *StreakCalculator
	ledger    *store.LedgerStore
	logger    *slog.Logger
}

func NewLifecycle(instances *store.InstanceStore, schedules *store.ScheduleStore, templates *store.TemplateStore, streaks *StreakCalculator, ledger *store.LedgerStore, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		instances: instances,
		schedules: schedules,
		templates: templates,
		streaks:   streaks,
		ledger:    ledger,
		logger:    logger.With("component", "lifecycle"),
	}
}

// ruleFor resolves the instance's recurrence rule. Instances with no
// usable schedule (ad-hoc, deleted, or an unparseable rule) behave like
// daily single-completion chores; resolved=false flags them so approval
// does not chain a streak through a schedule that no longer exists.
func (l *Lifecycle) ruleFor(in *model.ChoreInstance) (rule recurrence.Rule, resolved bool, err error) {
	daily := recurrence.Rule{Kind: recurrence.Daily}
	if in.ScheduleID == nil {
		return daily, false, nil
	}
	sch, err := l.schedules.GetByID(*in.ScheduleID)
	if err != nil {
		return recurrence.Rule{}, false, fmt.Errorf("get schedule: %w", err)
	}
	if sch == nil {
		return daily, false, nil
	}
	rule, err = recurrence.Parse(sch.RecurrenceRule)
	if err != nil {
		return daily, false, nil
	}
	return rule, true, nil
}

func (l *Lifecycle) checkProof(templateID int64, proof model.CompletionProof) error {
	tmpl, err := l.templates.GetByID(templateID)
	if err != nil {
		return fmt.Errorf("get template: %w", err)
	}
	if tmpl == nil {
		return ErrNotFound
	}
	switch tmpl.ProofRequirement {
	case model.ProofPhoto:
		if proof.PhotoURL == "" {
			return ErrProofMissing
		}
	case model.ProofNote:
		if proof.Note == "" {
			return ErrProofMissing
		}
	}
	return nil
}

// Complete records that a child did the chore. On single-completion
// instances it transitions pending -> completed; on multi-completion
// instances it appends a completion record and leaves the instance
// pending so it can be done again before it expires.
func (l *Lifecycle) Complete(instanceID int64, proof model.CompletionProof) (*model.ChoreInstance, error) {
	in, err := l.instances.GetByID(instanceID)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, ErrNotFound
	}
	if in.Status.Terminal() {
		return nil, ErrInvalidTransition
	}
	if err := l.checkProof(in.TemplateID, proof); err != nil {
		return nil, err
	}

	rule, _, err := l.ruleFor(in)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if rule.AllowsMultipleCompletions() {
		if in.Status != model.StatusPending {
			return nil, ErrInvalidTransition
		}
		if _, err := l.instances.CreateCompletion(instanceID, proof, now); err != nil {
			return nil, err
		}
	} else {
		ok, err := l.instances.MarkCompleted(instanceID, proof, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrInvalidTransition
		}
	}

	l.logger.Info("chore completed", "instance_id", instanceID, "child_id", in.ChildID)
	return l.instances.GetByID(instanceID)
}

// Approve accepts a completed single-completion instance, computes the
// streak, and credits the template's reward plus any bonus the approver
// grants. Approving anything other than a completed, uncredited instance
// returns ErrInvalidTransition.
func (l *Lifecycle) Approve(instanceID, approvedBy int64, bonus int) (*model.ChoreInstance, error) {
	in, err := l.instances.GetByID(instanceID)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, ErrNotFound
	}
	if in.Status != model.StatusCompleted || in.TransactionID != nil {
		return nil, ErrInvalidTransition
	}

	tmpl, err := l.templates.GetByID(in.TemplateID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, ErrNotFound
	}

	rule, resolved, err := l.ruleFor(in)
	if err != nil {
		return nil, err
	}
	streak := 1
	if resolved {
		streak, err = l.streaks.Compute(in.FamilyID, in.ChildID, in.TemplateID, rule, in.Date)
		if err != nil {
			return nil, err
		}
	}

	if bonus < 0 {
		bonus = 0
	}
	amount := tmpl.BucksReward + bonus

	// The guarded update claims the credit inside the same SQL
	// transaction as the ledger write: only the winner posts money, and
	// a failed post leaves the instance completed and retryable.
	txID := uuid.NewString()
	_, claimed, err := l.ledger.PostTransactionWith(model.Transaction{
		ID:          txID,
		FamilyID:    in.FamilyID,
		ChildID:     in.ChildID,
		Type:        model.TxEarned,
		Amount:      amount,
		SourceType:  model.SourceChore,
		SourceID:    fmt.Sprintf("%d", instanceID),
		Description: tmpl.Title,
		CreatedBy:   fmt.Sprintf("%d", approvedBy),
	}, func(tx *sql.Tx) (bool, error) {
		return l.instances.MarkApprovedTx(tx, instanceID, approvedBy, amount, streak, txID, time.Now())
	})
	if err != nil {
		return nil, fmt.Errorf("credit approval: %w", err)
	}
	if !claimed {
		return nil, ErrInvalidTransition
	}

	l.logger.Info("chore approved",
		"instance_id", instanceID, "child_id", in.ChildID, "bucks", amount, "streak", streak)
	return l.instances.GetByID(instanceID)
}

// Reject sends a completed instance back with a reason. No bucks move.
func (l *Lifecycle) Reject(instanceID, rejectedBy int64, reason string) (*model.ChoreInstance, error) {
	in, err := l.instances.GetByID(instanceID)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, ErrNotFound
	}

	ok, err := l.instances.MarkRejected(instanceID, rejectedBy, reason, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	l.logger.Info("chore rejected", "instance_id", instanceID, "reason", reason)
	return l.instances.GetByID(instanceID)
}

// ApproveCompletion credits one completion record on a multi-completion
// instance. Each record is approved and paid independently.
func (l *Lifecycle) ApproveCompletion(completionID, approvedBy int64) (*model.Completion, error) {
	c, err := l.instances.GetCompletion(completionID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	if c.ApprovalStatus != model.CompletionPending || c.TransactionID != nil {
		return nil, ErrInvalidTransition
	}

	in, err := l.instances.GetByID(c.InstanceID)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, ErrNotFound
	}
	tmpl, err := l.templates.GetByID(in.TemplateID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, ErrNotFound
	}

	txID := uuid.NewString()
	_, claimed, err := l.ledger.PostTransactionWith(model.Transaction{
		ID:          txID,
		FamilyID:    in.FamilyID,
		ChildID:     in.ChildID,
		Type:        model.TxEarned,
		Amount:      tmpl.BucksReward,
		SourceType:  model.SourceChore,
		SourceID:    fmt.Sprintf("%d", in.ID),
		Description: tmpl.Title,
		CreatedBy:   fmt.Sprintf("%d", approvedBy),
	}, func(tx *sql.Tx) (bool, error) {
		return l.instances.MarkCompletionApprovedTx(tx, completionID, approvedBy, tmpl.BucksReward, txID)
	})
	if err != nil {
		return nil, fmt.Errorf("credit completion: %w", err)
	}
	if !claimed {
		return nil, ErrInvalidTransition
	}

	l.logger.Info("completion approved", "completion_id", completionID, "instance_id", in.ID, "bucks", tmpl.BucksReward)
	return l.instances.GetCompletion(completionID)
}

// RejectCompletion declines one completion record. The instance stays
// pending for further attempts.
func (l *Lifecycle) RejectCompletion(completionID, rejectedBy int64) (*model.Completion, error) {
	c, err := l.instances.GetCompletion(completionID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}

	ok, err := l.instances.MarkCompletionRejected(completionID, rejectedBy)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	l.logger.Info("completion rejected", "completion_id", completionID)
	return l.instances.GetCompletion(completionID)
}

// SweepResult summarizes one expiry sweep.
type SweepResult struct {
	Missed  int `json:"missed"`
	Expired int `json:"expired"`
}

// Sweep closes out pending instances whose expiration has passed.
// Daily and weekdays instances become missed; weekly, weekend, and
// as-needed instances become expired (approved completions keep their
// credits). The guarded updates make a concurrent or repeated sweep a
// no-op.
func (l *Lifecycle) Sweep(familyID int64, now time.Time) (SweepResult, error) {
	var res SweepResult

	due, err := l.instances.ListPendingPastExpiry(familyID, now)
	if err != nil {
		return res, fmt.Errorf("list overdue instances: %w", err)
	}

	for _, in := range due {
		rule, _, err := l.ruleFor(&in)
		if err != nil {
			return res, err
		}

		switch rule.Kind {
		case recurrence.Daily, recurrence.Weekdays:
			ok, err := l.instances.MarkMissed(in.ID)
			if err != nil {
				return res, err
			}
			if ok {
				res.Missed++
			}
		default:
			ok, err := l.instances.MarkExpired(in.ID)
			if err != nil {
				return res, err
			}
			if ok {
				res.Expired++
			}
		}
	}

	if res.Missed > 0 || res.Expired > 0 {
		l.logger.Info("sweep finished", "family_id", familyID, "missed", res.Missed, "expired", res.Expired)
	}
	return res, nil
}
