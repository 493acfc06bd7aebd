package chore

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chorebank/internal/model"
	"chorebank/internal/recurrence"
	"chorebank/internal/store"
)

// leaseTTL bounds how long a generation run can exclude others. Crashed
// runs free their slot when the lease expires.
const leaseTTL = 10 * time.Second

// Generator materializes chore instances from active schedules. It is
// safe to run concurrently from multiple processes: a per-family,
// per-date lease in the shared database elects one worker, and an
// existence check plus a unique index make the inserts idempotent.
type Generator struct {
	schedules *store.ScheduleStore
	templates *store.TemplateStore
	instances *store.InstanceStore
	leases    *store.LeaseStore
	owner     string
	logger    *slog.Logger
}

func NewGenerator(schedules *store.ScheduleStore, templates *store.TemplateStore, instances *store.InstanceStore, leases *store.LeaseStore, logger *slog.Logger) *Generator {
	return &Generator{
		schedules: schedules,
		templates: templates,
		instances: instances,
		leases:    leases,
		owner:     uuid.NewString(),
		logger:    logger.With("component", "generator"),
	}
}

// Generate creates the instances due on date for every active schedule
// in the family. It returns the ids of the instances it created. When
// another worker holds the generation lease the call is a no-op.
func (g *Generator) Generate(familyID int64, date time.Time) ([]int64, error) {
	date = recurrence.StartOfDay(date)
	key := fmt.Sprintf("generate:%d:%s", familyID, date.Format("2006-01-02"))

	ok, err := g.leases.Acquire(key, g.owner, leaseTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire generation lease: %w", err)
	}
	if !ok {
		g.logger.Info("generation already in progress", "family_id", familyID, "date", date.Format("2006-01-02"))
		return nil, nil
	}
	defer g.leases.Release(key, g.owner)

	schedules, err := g.schedules.ListActive(familyID)
	if err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}

	var created []int64
	for _, sch := range schedules {
		in, err := g.generateForSchedule(sch, date)
		if err != nil {
			return created, err
		}
		if in != nil {
			created = append(created, in.ID)
		}
	}

	if len(created) > 0 {
		g.logger.Info("instances generated", "family_id", familyID, "date", date.Format("2006-01-02"), "count", len(created))
	}
	return created, nil
}

func (g *Generator) generateForSchedule(sch model.ChoreSchedule, date time.Time) (*model.ChoreInstance, error) {
	rule, err := recurrence.Parse(sch.RecurrenceRule)
	if err != nil {
		g.logger.Error("invalid recurrence rule", "schedule_id", sch.ID, "rule", sch.RecurrenceRule, "error", err)
		return nil, nil
	}

	if sch.StartDate != nil && date.Before(recurrence.StartOfDay(*sch.StartDate)) {
		return nil, nil
	}
	if sch.EndDate != nil && date.After(recurrence.StartOfDay(*sch.EndDate)) {
		return nil, nil
	}
	if !rule.ShouldGenerate(date) {
		return nil, nil
	}

	tmpl, err := g.templates.GetByID(sch.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("get template %d: %w", sch.TemplateID, err)
	}
	if tmpl == nil || tmpl.Archived {
		// Orphaned schedule: its template was archived or removed.
		g.logger.Warn("skipping schedule with unavailable template", "schedule_id", sch.ID, "template_id", sch.TemplateID)
		return nil, nil
	}

	exists, err := g.instances.ExistsForScheduleDate(sch.ID, date)
	if err != nil {
		return nil, fmt.Errorf("check instance exists: %w", err)
	}
	if exists {
		return nil, nil
	}

	in, err := g.instances.Create(sch.FamilyID, &sch.ID, sch.TemplateID, sch.ChildID,
		date, rule.ExpiresAt(date), tmpl.TimeOfDay.Sequence())
	if err != nil {
		// Unique index violation means another worker inserted between our
		// existence check and this insert. Treat it as already generated.
		g.logger.Warn("instance insert lost race", "schedule_id", sch.ID, "date", date.Format("2006-01-02"), "error", err)
		return nil, nil
	}
	return in, nil
}

// CreateDefault creates a one-off instance outside any schedule, due and
// expiring on the given date. Parents use this for ad-hoc chores.
func (g *Generator) CreateDefault(familyID, templateID, childID int64, date time.Time) (*model.ChoreInstance, error) {
	date = recurrence.StartOfDay(date)

	tmpl, err := g.templates.GetByID(templateID)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tmpl == nil || tmpl.Archived {
		return nil, ErrNotFound
	}

	in, err := g.instances.Create(familyID, nil, templateID, childID,
		date, recurrence.Rule{Kind: recurrence.Daily}.ExpiresAt(date), tmpl.TimeOfDay.Sequence())
	if err != nil {
		return nil, fmt.Errorf("create default instance: %w", err)
	}
	return in, nil
}
