package store

import (
	"database/sql"
	"fmt"
	"time"

	"chorebank/internal/model"
)

type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

func scanSchedule(scanner interface{ Scan(...any) error }) (*model.ChoreSchedule, error) {
	var sch model.ChoreSchedule
	var startDate, endDate sql.NullTime

	err := scanner.Scan(
		&sch.ID, &sch.FamilyID, &sch.TemplateID, &sch.ChildID, &sch.RecurrenceRule,
		&startDate, &endDate, &sch.Active, &sch.CreatedAt, &sch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if startDate.Valid {
		sch.StartDate = &startDate.Time
	}
	if endDate.Valid {
		sch.EndDate = &endDate.Time
	}
	return &sch, nil
}

const scheduleCols = `id, family_id, template_id, child_id, recurrence_rule, start_date, end_date, active, created_at, updated_at`

// Create adds a schedule binding a template to a child. At most one
// active schedule exists per (template, child): when an equivalent one is
// already active it is returned instead of inserting a duplicate. Races
// that slip past this check are healed by the cleanup pass.
func (s *ScheduleStore) Create(familyID, templateID, childID int64, recurrenceRule string, startDate, endDate *time.Time) (*model.ChoreSchedule, error) {
	existing, err := s.GetActiveFor(familyID, templateID, childID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var start, end sql.NullTime
	if startDate != nil {
		start = sql.NullTime{Time: startDate.UTC(), Valid: true}
	}
	if endDate != nil {
		end = sql.NullTime{Time: endDate.UTC(), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO chore_schedules (family_id, template_id, child_id, recurrence_rule, start_date, end_date) VALUES (?, ?, ?, ?, ?, ?)`,
		familyID, templateID, childID, recurrenceRule, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// GetActiveFor returns the oldest active schedule for a (template, child)
// pair, or nil when none is active.
func (s *ScheduleStore) GetActiveFor(familyID, templateID, childID int64) (*model.ChoreSchedule, error) {
	row := s.db.QueryRow(
		`SELECT `+scheduleCols+` FROM chore_schedules
		 WHERE family_id = ? AND template_id = ? AND child_id = ? AND active = 1
		 ORDER BY id ASC LIMIT 1`,
		familyID, templateID, childID,
	)
	sch, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active schedule: %w", err)
	}
	return sch, nil
}

func (s *ScheduleStore) GetByID(id int64) (*model.ChoreSchedule, error) {
	row := s.db.QueryRow(`SELECT `+scheduleCols+` FROM chore_schedules WHERE id = ?`, id)
	sch, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sch, nil
}

func (s *ScheduleStore) List(familyID int64) ([]model.ChoreSchedule, error) {
	return s.list(`SELECT `+scheduleCols+` FROM chore_schedules WHERE family_id = ? ORDER BY id ASC`, familyID)
}

// ListActive returns the schedules the generator walks.
func (s *ScheduleStore) ListActive(familyID int64) ([]model.ChoreSchedule, error) {
	return s.list(`SELECT `+scheduleCols+` FROM chore_schedules WHERE family_id = ? AND active = 1 ORDER BY id ASC`, familyID)
}

// ListActiveByChild is used for streak lookups and per-child views.
func (s *ScheduleStore) ListActiveByChild(familyID, childID int64) ([]model.ChoreSchedule, error) {
	return s.list(
		`SELECT `+scheduleCols+` FROM chore_schedules WHERE family_id = ? AND child_id = ? AND active = 1 ORDER BY id ASC`,
		familyID, childID,
	)
}

func (s *ScheduleStore) list(query string, args ...any) ([]model.ChoreSchedule, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.ChoreSchedule
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sch)
	}
	return schedules, rows.Err()
}

func (s *ScheduleStore) Update(id int64, recurrenceRule string, startDate, endDate *time.Time) (*model.ChoreSchedule, error) {
	var start, end sql.NullTime
	if startDate != nil {
		start = sql.NullTime{Time: startDate.UTC(), Valid: true}
	}
	if endDate != nil {
		end = sql.NullTime{Time: endDate.UTC(), Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE chore_schedules SET recurrence_rule = ?, start_date = ?, end_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		recurrenceRule, start, end, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	return s.GetByID(id)
}

// Deactivate retires a schedule. Schedules are never deleted: existing
// instances keep their schedule_id for streak continuity.
func (s *ScheduleStore) Deactivate(id int64) error {
	_, err := s.db.Exec(
		`UPDATE chore_schedules SET active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("deactivate schedule: %w", err)
	}
	return nil
}

func (s *ScheduleStore) Activate(id int64) error {
	_, err := s.db.Exec(
		`UPDATE chore_schedules SET active = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("activate schedule: %w", err)
	}
	return nil
}

// ActiveDuplicates returns ids of redundant active schedules: for each
// (template, child) pair with more than one active schedule, every id
// except the earliest-created survives here and should be deactivated.
func (s *ScheduleStore) ActiveDuplicates(familyID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT id FROM chore_schedules s
		 WHERE family_id = ? AND active = 1
		   AND id <> (
		     SELECT MIN(id) FROM chore_schedules
		     WHERE template_id = s.template_id AND child_id = s.child_id AND active = 1
		   )`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query duplicate schedules: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan schedule id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
