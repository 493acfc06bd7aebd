package store

import (
	"database/sql"
	"fmt"

	"chorebank/internal/model"
)

type TemplateStore struct {
	db *sql.DB
}

func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

func scanTemplate(scanner interface{ Scan(...any) error }) (*model.ChoreTemplate, error) {
	var t model.ChoreTemplate
	err := scanner.Scan(
		&t.ID, &t.FamilyID, &t.Title, &t.Description, &t.BucksReward,
		&t.ProofRequirement, &t.TimeOfDay, &t.Archived, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const templateCols = `id, family_id, title, description, bucks_reward, proof_requirement, time_of_day, archived, created_at, updated_at`

func (s *TemplateStore) Create(familyID int64, title, description string, bucksReward int, proof model.ProofRequirement, timeOfDay model.TimeOfDay) (*model.ChoreTemplate, error) {
	result, err := s.db.Exec(
		`INSERT INTO chore_templates (family_id, title, description, bucks_reward, proof_requirement, time_of_day) VALUES (?, ?, ?, ?, ?, ?)`,
		familyID, title, description, bucksReward, proof, timeOfDay,
	)
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TemplateStore) GetByID(id int64) (*model.ChoreTemplate, error) {
	row := s.db.QueryRow(`SELECT `+templateCols+` FROM chore_templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// List returns a family's templates, active before archived.
func (s *TemplateStore) List(familyID int64, includeArchived bool) ([]model.ChoreTemplate, error) {
	query := `SELECT ` + templateCols + ` FROM chore_templates WHERE family_id = ?`
	if !includeArchived {
		query += ` AND archived = 0`
	}
	query += ` ORDER BY archived ASC, title ASC`

	rows, err := s.db.Query(query, familyID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []model.ChoreTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (s *TemplateStore) Update(id int64, title, description string, bucksReward int, proof model.ProofRequirement, timeOfDay model.TimeOfDay) (*model.ChoreTemplate, error) {
	_, err := s.db.Exec(
		`UPDATE chore_templates SET title = ?, description = ?, bucks_reward = ?, proof_requirement = ?, time_of_day = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, description, bucksReward, proof, timeOfDay, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return s.GetByID(id)
}

// Archive hides a template from pickers and generation without deleting
// the instance history that points at it.
func (s *TemplateStore) Archive(id int64) error {
	_, err := s.db.Exec(
		`UPDATE chore_templates SET archived = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("archive template: %w", err)
	}
	return nil
}

func (s *TemplateStore) Unarchive(id int64) error {
	_, err := s.db.Exec(
		`UPDATE chore_templates SET archived = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("unarchive template: %w", err)
	}
	return nil
}
