package store

import (
	"database/sql"
	"fmt"
	"time"

	"chorebank/internal/model"
)

// dayLayout is how instance dates are stored. Dates are day-granular and
// always written in this form so equality predicates match.
const dayLayout = "2006-01-02"

// execer lets guarded updates run on either the pool or an open
// transaction.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type InstanceStore struct {
	db *sql.DB
}

func NewInstanceStore(db *sql.DB) *InstanceStore {
	return &InstanceStore{db: db}
}

func scanInstance(scanner interface{ Scan(...any) error }) (*model.ChoreInstance, error) {
	var in model.ChoreInstance
	var scheduleID, approvedBy, rejectedBy sql.NullInt64
	var transactionID, calendarEventID sql.NullString
	var completedAt, approvedAt, rejectedAt sql.NullTime

	err := scanner.Scan(
		&in.ID, &in.FamilyID, &scheduleID, &in.TemplateID, &in.ChildID,
		&in.Date, &in.ExpiresAt, &in.Status,
		&in.Proof.Type, &in.Proof.Note, &in.Proof.PhotoURL,
		&in.CompletionCount, &in.BucksAwarded, &in.StreakCount, &in.Sequence,
		&transactionID, &calendarEventID,
		&completedAt, &approvedAt, &approvedBy, &rejectedAt, &rejectedBy, &in.RejectionReason,
		&in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if scheduleID.Valid {
		in.ScheduleID = &scheduleID.Int64
	}
	if transactionID.Valid {
		in.TransactionID = &transactionID.String
	}
	if calendarEventID.Valid {
		in.CalendarEventID = &calendarEventID.String
	}
	if completedAt.Valid {
		in.CompletedAt = &completedAt.Time
	}
	if approvedAt.Valid {
		in.ApprovedAt = &approvedAt.Time
	}
	if approvedBy.Valid {
		in.ApprovedBy = &approvedBy.Int64
	}
	if rejectedAt.Valid {
		in.RejectedAt = &rejectedAt.Time
	}
	if rejectedBy.Valid {
		in.RejectedBy = &rejectedBy.Int64
	}
	return &in, nil
}

const instanceCols = `id, family_id, schedule_id, template_id, child_id, date, expires_at, status,
	proof_type, proof_note, proof_photo_url,
	completion_count, bucks_awarded, streak_count, sequence,
	transaction_id, calendar_event_id,
	completed_at, approved_at, approved_by, rejected_at, rejected_by, rejection_reason,
	created_at, updated_at`

// Create inserts a pending instance. scheduleID is nil for default
// (one-off) instances created outside any schedule.
func (s *InstanceStore) Create(familyID int64, scheduleID *int64, templateID, childID int64, date, expiresAt time.Time, sequence int) (*model.ChoreInstance, error) {
	var schID sql.NullInt64
	if scheduleID != nil {
		schID = sql.NullInt64{Int64: *scheduleID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO chore_instances (family_id, schedule_id, template_id, child_id, date, expires_at, sequence)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		familyID, schID, templateID, childID, date.Format(dayLayout), expiresAt.UTC(), sequence,
	)
	if err != nil {
		return nil, fmt.Errorf("insert instance: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *InstanceStore) GetByID(id int64) (*model.ChoreInstance, error) {
	row := s.db.QueryRow(`SELECT `+instanceCols+` FROM chore_instances WHERE id = ?`, id)
	in, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return in, nil
}

// ExistsForScheduleDate reports whether a non-expired instance already
// exists for (schedule, date). The generator checks this before inserting;
// the partial unique index backstops it.
func (s *InstanceStore) ExistsForScheduleDate(scheduleID int64, date time.Time) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM chore_instances WHERE schedule_id = ? AND date = ? AND status <> 'expired'`,
		scheduleID, date.Format(dayLayout),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check instance exists: %w", err)
	}
	return count > 0, nil
}

func (s *InstanceStore) ListByDate(familyID int64, date time.Time) ([]model.ChoreInstance, error) {
	return s.list(
		`SELECT `+instanceCols+` FROM chore_instances WHERE family_id = ? AND date = ? ORDER BY sequence ASC, id ASC`,
		familyID, date.Format(dayLayout),
	)
}

func (s *InstanceStore) ListByChildAndDate(familyID, childID int64, date time.Time) ([]model.ChoreInstance, error) {
	return s.list(
		`SELECT `+instanceCols+` FROM chore_instances WHERE family_id = ? AND child_id = ? AND date = ? ORDER BY sequence ASC, id ASC`,
		familyID, childID, date.Format(dayLayout),
	)
}

func (s *InstanceStore) ListByStatus(familyID int64, status model.InstanceStatus) ([]model.ChoreInstance, error) {
	return s.list(
		`SELECT `+instanceCols+` FROM chore_instances WHERE family_id = ? AND status = ? ORDER BY date ASC, id ASC`,
		familyID, status,
	)
}

// ListPendingPastExpiry returns pending instances whose expiration is in
// the past. The sweeper classifies each as missed or expired by its rule.
func (s *InstanceStore) ListPendingPastExpiry(familyID int64, now time.Time) ([]model.ChoreInstance, error) {
	return s.list(
		`SELECT `+instanceCols+` FROM chore_instances WHERE family_id = ? AND status = 'pending' AND expires_at < ? ORDER BY id ASC`,
		familyID, now.UTC(),
	)
}

func (s *InstanceStore) list(query string, args ...any) ([]model.ChoreInstance, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var instances []model.ChoreInstance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, *in)
	}
	return instances, rows.Err()
}

// --- Guarded transitions ---
//
// Each transition is a single UPDATE guarded on the current status. A
// zero rows-affected result means the instance was not in the expected
// state; callers map that to an invalid-transition error.

func (s *InstanceStore) MarkCompleted(id int64, proof model.CompletionProof, completedAt time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances
		 SET status = 'completed', proof_type = ?, proof_note = ?, proof_photo_url = ?,
		     completion_count = completion_count + 1, completed_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'pending'`,
		proof.Type, proof.Note, proof.PhotoURL, completedAt.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("mark completed: %w", err)
	}
	return oneRow(result)
}

func (s *InstanceStore) MarkApproved(id, approvedBy int64, bucksAwarded, streakCount int, transactionID string, approvedAt time.Time) (bool, error) {
	return markApproved(s.db, id, approvedBy, bucksAwarded, streakCount, transactionID, approvedAt)
}

// MarkApprovedTx is MarkApproved running on an existing transaction, so
// the status claim and its ledger credit commit together.
func (s *InstanceStore) MarkApprovedTx(tx *sql.Tx, id, approvedBy int64, bucksAwarded, streakCount int, transactionID string, approvedAt time.Time) (bool, error) {
	return markApproved(tx, id, approvedBy, bucksAwarded, streakCount, transactionID, approvedAt)
}

func markApproved(e execer, id, approvedBy int64, bucksAwarded, streakCount int, transactionID string, approvedAt time.Time) (bool, error) {
	result, err := e.Exec(
		`UPDATE chore_instances
		 SET status = 'approved', bucks_awarded = ?, streak_count = ?, transaction_id = ?,
		     approved_at = ?, approved_by = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'completed' AND transaction_id IS NULL`,
		bucksAwarded, streakCount, transactionID, approvedAt.UTC(), approvedBy, id,
	)
	if err != nil {
		return false, fmt.Errorf("mark approved: %w", err)
	}
	return oneRow(result)
}

func (s *InstanceStore) MarkRejected(id, rejectedBy int64, reason string, rejectedAt time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances
		 SET status = 'rejected', rejection_reason = ?, rejected_at = ?, rejected_by = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'completed'`,
		reason, rejectedAt.UTC(), rejectedBy, id,
	)
	if err != nil {
		return false, fmt.Errorf("mark rejected: %w", err)
	}
	return oneRow(result)
}

func (s *InstanceStore) MarkMissed(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances SET status = 'missed', updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("mark missed: %w", err)
	}
	return oneRow(result)
}

func (s *InstanceStore) MarkExpired(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances SET status = 'expired', updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("mark expired: %w", err)
	}
	return oneRow(result)
}

func (s *InstanceStore) SetCalendarEventID(id int64, eventID string) error {
	_, err := s.db.Exec(
		`UPDATE chore_instances SET calendar_event_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		eventID, id,
	)
	if err != nil {
		return fmt.Errorf("set calendar event id: %w", err)
	}
	return nil
}

func oneRow(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// --- Completion records (multi-completion instances) ---

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.Completion, error) {
	var c model.Completion
	var approvedBy sql.NullInt64
	var transactionID sql.NullString

	err := scanner.Scan(
		&c.ID, &c.InstanceID, &c.CompletedAt,
		&c.Proof.Type, &c.Proof.Note, &c.Proof.PhotoURL,
		&c.ApprovalStatus, &c.BucksAwarded, &approvedBy, &transactionID,
	)
	if err != nil {
		return nil, err
	}

	if approvedBy.Valid {
		c.ApprovedBy = &approvedBy.Int64
	}
	if transactionID.Valid {
		c.TransactionID = &transactionID.String
	}
	return &c, nil
}

const completionCols = `id, instance_id, completed_at, proof_type, proof_note, proof_photo_url, approval_status, bucks_awarded, approved_by, transaction_id`

// CreateCompletion records one completion on a multi-completion instance
// and bumps the instance's completion count. The instance stays pending.
func (s *InstanceStore) CreateCompletion(instanceID int64, proof model.CompletionProof, completedAt time.Time) (*model.Completion, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO chore_completions (instance_id, completed_at, proof_type, proof_note, proof_photo_url) VALUES (?, ?, ?, ?, ?)`,
		instanceID, completedAt.UTC(), proof.Type, proof.Note, proof.PhotoURL,
	)
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE chore_instances SET completion_count = completion_count + 1, completed_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		completedAt.UTC(), instanceID,
	); err != nil {
		return nil, fmt.Errorf("bump completion count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetCompletion(id)
}

func (s *InstanceStore) GetCompletion(id int64) (*model.Completion, error) {
	row := s.db.QueryRow(`SELECT `+completionCols+` FROM chore_completions WHERE id = ?`, id)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

func (s *InstanceStore) ListCompletions(instanceID int64) ([]model.Completion, error) {
	rows, err := s.db.Query(
		`SELECT `+completionCols+` FROM chore_completions WHERE instance_id = ? ORDER BY completed_at ASC, id ASC`,
		instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var completions []model.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}

func (s *InstanceStore) MarkCompletionApproved(id, approvedBy int64, bucksAwarded int, transactionID string) (bool, error) {
	return markCompletionApproved(s.db, id, approvedBy, bucksAwarded, transactionID)
}

// MarkCompletionApprovedTx is MarkCompletionApproved on an existing
// transaction, pairing the claim with its ledger credit.
func (s *InstanceStore) MarkCompletionApprovedTx(tx *sql.Tx, id, approvedBy int64, bucksAwarded int, transactionID string) (bool, error) {
	return markCompletionApproved(tx, id, approvedBy, bucksAwarded, transactionID)
}

func markCompletionApproved(e execer, id, approvedBy int64, bucksAwarded int, transactionID string) (bool, error) {
	result, err := e.Exec(
		`UPDATE chore_completions
		 SET approval_status = 'approved', bucks_awarded = ?, approved_by = ?, transaction_id = ?
		 WHERE id = ? AND approval_status = 'pending' AND transaction_id IS NULL`,
		bucksAwarded, approvedBy, transactionID, id,
	)
	if err != nil {
		return false, fmt.Errorf("approve completion: %w", err)
	}
	return oneRow(result)
}

func (s *InstanceStore) MarkCompletionRejected(id, rejectedBy int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_completions
		 SET approval_status = 'rejected', approved_by = ?
		 WHERE id = ? AND approval_status = 'pending'`,
		rejectedBy, id,
	)
	if err != nil {
		return false, fmt.Errorf("reject completion: %w", err)
	}
	return oneRow(result)
}

// --- Streak and cleanup queries ---

// LatestApprovedBefore returns the child's most recent approved instance
// of the template dated strictly before the given day, looking back no
// further than cutoff. Returns nil when there is none; only approval
// extends a streak, so completed-but-unreviewed days do not show up here.
func (s *InstanceStore) LatestApprovedBefore(familyID, childID, templateID int64, before, cutoff time.Time) (*model.ChoreInstance, error) {
	in, err := scanInstance(s.db.QueryRow(
		`SELECT `+instanceCols+` FROM chore_instances
		 WHERE family_id = ? AND child_id = ? AND template_id = ?
		   AND status = 'approved' AND date < ? AND date >= ?
		 ORDER BY date DESC LIMIT 1`,
		familyID, childID, templateID, before.Format(dayLayout), cutoff.Format(dayLayout),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest approved instance: %w", err)
	}
	return in, nil
}

// ListDuplicateCandidates returns all non-expired instances belonging to
// (schedule, date) groups that hold more than one row, ordered so the
// cleanup pass can rank within each group.
func (s *InstanceStore) ListDuplicateCandidates(familyID int64) ([]model.ChoreInstance, error) {
	return s.list(
		`SELECT ` + instanceCols + ` FROM chore_instances i
		 WHERE family_id = ? AND schedule_id IS NOT NULL AND status <> 'expired'
		   AND (SELECT COUNT(*) FROM chore_instances
		        WHERE schedule_id = i.schedule_id AND date = i.date AND status <> 'expired') > 1
		 ORDER BY schedule_id ASC, date ASC, id ASC`,
		familyID,
	)
}

func (s *InstanceStore) DeleteInstances(ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var deleted int64
	for _, id := range ids {
		result, err := tx.Exec(`DELETE FROM chore_instances WHERE id = ?`, id)
		if err != nil {
			return 0, fmt.Errorf("delete instance %d: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return deleted, nil
}
