package chore

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"chorebank/internal/database"
	"chorebank/internal/ledger"
	"chorebank/internal/model"
	"chorebank/internal/store"
)

// fixture wires the full engine against one database, mirroring how the
// server assembles it.
type fixture struct {
	db *sql.DB

	family *model.Family
	admin  *model.FamilyMember
	child  *model.FamilyMember

	templates *store.TemplateStore
	schedules *store.ScheduleStore
	instances *store.InstanceStore
	leases    *store.LeaseStore

	gen     *Generator
	lc      *Lifecycle
	ledger  *ledger.Service
	cleaner *Cleaner
}

func setupFixture(t *testing.T, dbPath string) *fixture {
	t.Helper()
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		db:        db,
		templates: store.NewTemplateStore(db),
		schedules: store.NewScheduleStore(db),
		instances: store.NewInstanceStore(db),
		leases:    store.NewLeaseStore(db),
	}
	ledgerStore := store.NewLedgerStore(db)
	f.ledger = ledger.NewService(ledgerStore, logger)
	f.gen = NewGenerator(f.schedules, f.templates, f.instances, f.leases, logger)
	f.lc = NewLifecycle(f.instances, f.schedules, f.templates, NewStreakCalculator(f.instances), ledgerStore, logger)
	f.cleaner = NewCleaner(f.schedules, f.instances, logger)

	fs := store.NewFamilyStore(db)
	f.family, err = fs.CreateFamily("Palsson")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	f.admin, err = fs.CreateMember(f.family.ID, "Mom", model.RoleAdmin, "#FF0000", "👩")
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	f.child, err = fs.CreateMember(f.family.ID, "Theo", model.RoleChild, "#0000FF", "🦖")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return f
}

func (f *fixture) addChore(t *testing.T, title string, bucks int, rule string) (*model.ChoreTemplate, *model.ChoreSchedule) {
	t.Helper()
	tmpl, err := f.templates.Create(f.family.ID, title, "", bucks, model.ProofNone, model.TimeAnytime)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	sch, err := f.schedules.Create(f.family.ID, tmpl.ID, f.child.ID, rule, nil, nil)
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return tmpl, sch
}

func (f *fixture) instanceOn(t *testing.T, date time.Time) *model.ChoreInstance {
	t.Helper()
	list, err := f.instances.ListByDate(f.family.ID, date)
	if err != nil {
		t.Fatalf("list instances: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 instance on %s, got %d", date.Format("2006-01-02"), len(list))
	}
	return &list[0]
}

func (f *fixture) balance(t *testing.T) int {
	t.Helper()
	b, err := f.ledger.Balance(f.family.ID, f.child.ID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return b.CurrentBalance
}

// day returns midnight UTC of the given March 2026 day. March 2026 starts
// on a Sunday, which makes weekday arithmetic easy to read.
func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}
