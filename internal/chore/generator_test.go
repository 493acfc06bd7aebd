package chore

import (
	"path/filepath"
	"sync"
	"testing"

	"chorebank/internal/model"
)

func TestGenerateDaily(t *testing.T) {
	f := setupFixture(t, ":memory:")
	f.addChore(t, "Make bed", 2, "FREQ=DAILY")

	created, err := f.gen.Generate(f.family.ID, day(2))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created = %d, want 1", len(created))
	}

	in := f.instanceOn(t, day(2))
	if in.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", in.Status)
	}
}

func TestGenerateIdempotent(t *testing.T) {
	f := setupFixture(t, ":memory:")
	f.addChore(t, "Make bed", 2, "FREQ=DAILY")

	if created, _ := f.gen.Generate(f.family.ID, day(2)); len(created) != 1 {
		t.Fatal("expected first run to create an instance")
	}
	created, err := f.gen.Generate(f.family.ID, day(2))
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("second run created %d instances, want 0", len(created))
	}
}

func TestGenerateWeeklyOnlyOnSunday(t *testing.T) {
	f := setupFixture(t, ":memory:")
	f.addChore(t, "Clean room", 5, "FREQ=WEEKLY")

	// March 2, 2026 is a Monday: nothing due
	if created, _ := f.gen.Generate(f.family.ID, day(2)); len(created) != 0 {
		t.Errorf("weekly chore generated on Monday")
	}
	// March 1 is a Sunday
	created, err := f.gen.Generate(f.family.ID, day(1))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created = %d, want 1 on Sunday", len(created))
	}

	// the weekly instance lives until the following Sunday night
	in := f.instanceOn(t, day(1))
	if got := in.ExpiresAt.Day(); got != 8 {
		t.Errorf("expires day = %d, want 8", got)
	}
}

func TestGenerateSkipsArchivedTemplate(t *testing.T) {
	f := setupFixture(t, ":memory:")
	tmpl, _ := f.addChore(t, "Old chore", 2, "FREQ=DAILY")
	f.templates.Archive(tmpl.ID)

	created, err := f.gen.Generate(f.family.ID, day(2))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("created = %d, archived template should be skipped", len(created))
	}
}

func TestGenerateHonorsScheduleWindow(t *testing.T) {
	f := setupFixture(t, ":memory:")
	tmpl, _ := f.templates.Create(f.family.ID, "Seasonal", "", 2, model.ProofNone, model.TimeAnytime)

	start, end := day(5), day(10)
	if _, err := f.schedules.Create(f.family.ID, tmpl.ID, f.child.ID, "FREQ=DAILY", &start, &end); err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	if created, _ := f.gen.Generate(f.family.ID, day(4)); len(created) != 0 {
		t.Error("generated before start date")
	}
	if created, _ := f.gen.Generate(f.family.ID, day(5)); len(created) != 1 {
		t.Error("expected generation on start date")
	}
	if created, _ := f.gen.Generate(f.family.ID, day(11)); len(created) != 0 {
		t.Error("generated after end date")
	}
}

func TestGenerateInactiveScheduleSkipped(t *testing.T) {
	f := setupFixture(t, ":memory:")
	_, sch := f.addChore(t, "Retired", 2, "FREQ=DAILY")
	f.schedules.Deactivate(sch.ID)

	if created, _ := f.gen.Generate(f.family.ID, day(2)); len(created) != 0 {
		t.Error("generated from a deactivated schedule")
	}
}

func TestGenerateConcurrentRunsCreateOnce(t *testing.T) {
	// A file-backed database so all connections see one store, as in
	// production with several app processes.
	f := setupFixture(t, filepath.Join(t.TempDir(), "chorebank.db"))
	f.addChore(t, "Make bed", 2, "FREQ=DAILY")

	gens := make([]*Generator, 4)
	for i := range gens {
		gens[i] = NewGenerator(f.schedules, f.templates, f.instances, f.leases, f.gen.logger)
	}

	var wg sync.WaitGroup
	results := make([]int, len(gens))
	for i, g := range gens {
		wg.Add(1)
		go func(i int, g *Generator) {
			defer wg.Done()
			ids, err := g.Generate(f.family.ID, day(2))
			if err != nil {
				t.Errorf("generate %d: %v", i, err)
			}
			results[i] = len(ids)
		}(i, g)
	}
	wg.Wait()

	total := 0
	for _, n := range results {
		total += n
	}
	if total != 1 {
		t.Errorf("concurrent runs created %d instances, want exactly 1", total)
	}

	list, _ := f.instances.ListByDate(f.family.ID, day(2))
	if len(list) != 1 {
		t.Errorf("found %d instances, want 1", len(list))
	}
}

func TestCreateDefault(t *testing.T) {
	f := setupFixture(t, ":memory:")
	tmpl, err := f.templates.Create(f.family.ID, "Ad hoc", "", 3, model.ProofNone, model.TimeEvening)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	in, err := f.gen.CreateDefault(f.family.ID, tmpl.ID, f.child.ID, day(2))
	if err != nil {
		t.Fatalf("create default: %v", err)
	}
	if in.ScheduleID != nil {
		t.Error("default instance should have no schedule")
	}
	if in.Sequence != model.TimeEvening.Sequence() {
		t.Errorf("sequence = %d, want %d", in.Sequence, model.TimeEvening.Sequence())
	}

	// archived templates cannot spawn default instances
	f.templates.Archive(tmpl.ID)
	if _, err := f.gen.CreateDefault(f.family.ID, tmpl.ID, f.child.ID, day(3)); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
