package chore

import (
	"errors"
	"testing"
	"time"

	"chorebank/internal/model"
)

func TestCompleteAndApprove(t *testing.T) {
	f := setupFixture(t, ":memory:")
	f.addChore(t, "Make bed", 2, "FREQ=DAILY")
	f.gen.Generate(f.family.ID, day(2))
	in := f.instanceOn(t, day(2))

	completed, err := f.lc.Complete(in.ID, model.CompletionProof{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != model.StatusCompleted {
		t.Errorf("status = %q, want completed", completed.Status)
	}

	approved, err := f.lc.Approve(in.ID, f.admin.ID, 0)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.StatusApproved {
		t.Errorf("status = %q, want approved", approved.Status)
	}
	if approved.BucksAwarded != 2 {
		t.Errorf("bucks_awarded = %d, want 2", approved.BucksAwarded)
	}
	if approved.StreakCount != 1 {
		t.Errorf("streak = %d, want 1", approved.StreakCount)
	}
	if approved.TransactionID == nil {
		t.Fatal("expected transaction id on approved instance")
	}

	if got := f.balance(t); got != 2 {
		t.Errorf("balance = %d, want 2", got)
	}

	// the ledger entry traces back to the instance
	txns, err := f.ledger.History(f.family.ID, f.child.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txns))
	}
	if txns[0].ID != *approved.TransactionID {
		t.Errorf("transaction id mismatch: %s vs %s", txns[0].ID, *approved.TransactionID)
	}
	if txns[0].Type != model.TxEarned || txns[0].BalanceAfter != 2 {
		t.Errorf("transaction = %+v", txns[0])
	}
}

func TestApproveWithBonus(t *testing.T) {
	f := setupFixture(t, ":memory:")
	f.addChore(t, "Rake leaves", 3, "FREQ=DAILY")
	f.gen.Generate(f.family.ID, day(2))
	in := f.instanceOn(t, day(2))

	if _, err := f.lc.Complete(in.ID, model.CompletionProof{}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	approved, err := f.lc.Approve(in.ID, f.admin.ID, 2)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.BucksAwarded != 5 {
		t.Errorf("bucks_awarded = %d, want reward 3 + bonus 2", approved.BucksAwarded)
	}
	if got := f.balance(t); got != 5 {
		t.Errorf("balance = %d, want 5", got)
	}
}

func TestApproveTwiceCreditsOnce(t *testing.T) {
	f := setupFixture(t, ":memory:")
	f.addChore(t, "Make bed", 2, "FREQ=DAILY")
	f.gen.Generate(f.family.ID, day(2))
	in := f.instanceOn(t, day(2))

	f.lc.Complete(in.ID, model.CompletionProof{})
	if _, err := f.lc.Approve(in.ID, f.admin.ID, 0); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err := f.lc.Approve(in.ID, f.admin.ID, 0)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second approve err = %v, want ErrInvalidTransition", err)
	}
	if got := f.balance(t); got != 2 {
		t.Errorf("balance = %d after double approve, want 2", got)
	}
}

func TestApprovePendingFails(t *testing.T) {
	f := setupFixture(t, ":memory:")
	f.addChore(t, "Make bed", 2, "FREQ=DAILY")
	f.gen.Generate(f.family.ID, day(2))
	in := f.instanceOn(t, day(2))

	if _, err := f.lc.Approve(in.ID, f.admin.ID, 0); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("approve pending err = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.lc.Approve(9999, f.admin.ID, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("approve missing err = %v, want ErrNotFound", err)
	}
}

func TestRejectThenNoCredit(t *testing.T) {
	f := setupFixture(t, ":memory:")
	f.addChore(t, "Make bed", 2, "FREQ=DAILY")
	f.gen.Generate(f.family.ID, day(2))
	in := f.instanceOn(t, day(2))

	f.lc.Complete(in.ID, model.CompletionProof{})
	rejected, err := f.lc.Reject(in.ID, f.admin.ID, "blanket on the floor")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != model.StatusRejected {
		t.Errorf("status = %q, want rejected", rejected.Status)
	}
	if rejected.RejectionReason != "blanket on the floor" {
		t.Errorf("reason = %q", rejected.RejectionReason)
	}
	if got := f.balance(t); got != 0 {
		t.Errorf("balance = %d after rejection, want 0", got)
	}

	// terminal: cannot complete or approve afterward
	if _, err := f.lc.Complete(in.ID, model.CompletionProof{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("complete rejected err = %v, want ErrInvalidTransition", err)
	}
}

func TestCompleteRequiresProof(t *testing.T) {
	f := setupFixture(t, ":memory:")
	tmpl, err := f.templates.Create(f.family.ID, "Vacuum", "", 4, model.ProofPhoto, model.TimeAnytime)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if _, err := f.schedules.Create(f.family.ID, tmpl.ID, f.child.ID, "FREQ=DAILY", nil, nil); err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	f.gen.Generate(f.family.ID, day(2))
	in := f.instanceOn(t, day(2))

	if _, err := f.lc.Complete(in.ID, model.CompletionProof{}); !errors.Is(err, ErrProofMissing) {
		t.Fatalf("complete without photo err = %v, want ErrProofMissing", err)
	}
	if _, err := f.lc.Complete(in.ID, model.CompletionProof{Type: "photo", PhotoURL: "/uploads/p.jpg"}); err != nil {
		t.Fatalf("complete with photo: %v", err)
	}
}

func TestWeeklyMultipleCompletions(t *testing.T) {
	f := setupFixture(t, ":memory:")
	f.addChore(t, "Practice piano", 3, "FREQ=WEEKLY")
	f.gen.Generate(f.family.ID, day(1)) // Sunday
	in := f.instanceOn(t, day(1))

	// two completions during the week; the instance stays pending
	if _, err := f.lc.Complete(in.ID, model.CompletionProof{}); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	got, _ := f.instances.GetByID(in.ID)
	if got.Status != model.StatusPending {
		t.Fatalf("status = %q after first completion, want pending", got.Status)
	}
	if _, err := f.lc.Complete(in.ID, model.CompletionProof{}); err != nil {
		t.Fatalf("second complete: %v", err)
	}

	completions, _ := f.instances.ListCompletions(in.ID)
	if len(completions) != 2 {
		t.Fatalf("expected 2 completion records, got %d", len(completions))
	}

	// each record is approved and credited independently
	for _, c := range completions {
		if _, err := f.lc.ApproveCompletion(c.ID, f.admin.ID); err != nil {
			t.Fatalf("approve completion %d: %v", c.ID, err)
		}
	}
	if got := f.balance(t); got != 6 {
		t.Errorf("balance = %d, want 6 after two approved completions", got)
	}

	// re-approving a record fails and moves no money
	if _, err := f.lc.ApproveCompletion(completions[0].ID, f.admin.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("re-approve err = %v, want ErrInvalidTransition", err)
	}
	if got := f.balance(t); got != 6 {
		t.Errorf("balance = %d after re-approve, want 6", got)
	}
}

func TestRejectCompletion(t *testing.T) {
	f := setupFixture(t, ":memory:")
	f.addChore(t, "Practice piano", 3, "FREQ=WEEKLY")
	f.gen.Generate(f.family.ID, day(1))
	in := f.instanceOn(t, day(1))

	f.lc.Complete(in.ID, model.CompletionProof{})
	completions, _ := f.instances.ListCompletions(in.ID)

	c, err := f.lc.RejectCompletion(completions[0].ID, f.admin.ID)
	if err != nil {
		t.Fatalf("reject completion: %v", err)
	}
	if c.ApprovalStatus != model.CompletionRejected {
		t.Errorf("status = %q, want rejected", c.ApprovalStatus)
	}
	if got := f.balance(t); got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}

	// the instance still accepts further completions
	if _, err := f.lc.Complete(in.ID, model.CompletionProof{}); err != nil {
		t.Fatalf("complete after rejection: %v", err)
	}
}

func TestSweepMissedAndExpired(t *testing.T) {
	f := setupFixture(t, ":memory:")
	f.addChore(t, "Make bed", 2, "FREQ=DAILY")

	weeklyTmpl, err := f.templates.Create(f.family.ID, "Clean room", "", 5, model.ProofNone, model.TimeAnytime)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if _, err := f.schedules.Create(f.family.ID, weeklyTmpl.ID, f.child.ID, "FREQ=WEEKLY", nil, nil); err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	// Sunday run picks up both the daily and the weekly chore
	if created, _ := f.gen.Generate(f.family.ID, day(1)); len(created) != 2 {
		t.Fatal("expected 2 instances on Sunday")
	}

	// daily expires Sunday night, weekly the following Sunday night
	afterMonday := day(2).Add(6 * time.Hour)
	res, err := f.lc.Sweep(f.family.ID, afterMonday)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Missed != 1 || res.Expired != 0 {
		t.Errorf("sweep = %+v, want 1 missed, 0 expired", res)
	}

	// after the following Sunday the weekly instance expires too
	res, err = f.lc.Sweep(f.family.ID, day(9).Add(6*time.Hour))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if res.Missed != 0 || res.Expired != 1 {
		t.Errorf("sweep = %+v, want 0 missed, 1 expired", res)
	}

	// sweeping again finds nothing
	res, _ = f.lc.Sweep(f.family.ID, day(9).Add(7*time.Hour))
	if res.Missed != 0 || res.Expired != 0 {
		t.Errorf("repeat sweep = %+v, want zeros", res)
	}
}

func TestSweepKeepsApprovedCompletionCredits(t *testing.T) {
	f := setupFixture(t, ":memory:")
	f.addChore(t, "Practice piano", 3, "FREQ=WEEKLY")
	f.gen.Generate(f.family.ID, day(1))
	in := f.instanceOn(t, day(1))

	f.lc.Complete(in.ID, model.CompletionProof{})
	completions, _ := f.instances.ListCompletions(in.ID)
	f.lc.ApproveCompletion(completions[0].ID, f.admin.ID)

	res, err := f.lc.Sweep(f.family.ID, day(9).Add(6*time.Hour))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Expired != 1 {
		t.Fatalf("expired = %d, want 1", res.Expired)
	}

	got, _ := f.instances.GetByID(in.ID)
	if got.Status != model.StatusExpired {
		t.Errorf("status = %q, want expired", got.Status)
	}
	if f.balance(t) != 3 {
		t.Errorf("balance = %d, credit should survive expiry", f.balance(t))
	}
}

func TestSweepAsNeededExpires(t *testing.T) {
	f := setupFixture(t, ":memory:")
	f.addChore(t, "Wash car", 5, "FREQ=ASNEEDED;ANCHOR=20260302")

	if created, _ := f.gen.Generate(f.family.ID, day(2)); len(created) != 1 {
		t.Fatal("expected 1 instance on the anchor date")
	}
	in := f.instanceOn(t, day(2))

	// a never-done as-needed chore expires, it was never "missed"
	res, err := f.lc.Sweep(f.family.ID, day(3).Add(6*time.Hour))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Expired != 1 || res.Missed != 0 {
		t.Errorf("sweep = %+v, want 1 expired, 0 missed", res)
	}

	got, _ := f.instances.GetByID(in.ID)
	if got.Status != model.StatusExpired {
		t.Errorf("status = %q, want expired", got.Status)
	}
}

func TestApproveRollsBackWhenCreditFails(t *testing.T) {
	f := setupFixture(t, ":memory:")
	f.addChore(t, "Make bed", 2, "FREQ=DAILY")
	f.gen.Generate(f.family.ID, day(2))
	in := f.instanceOn(t, day(2))
	f.lc.Complete(in.ID, model.CompletionProof{})

	// force the ledger write to fail mid-approval
	if _, err := f.db.Exec(`ALTER TABLE bucks_transactions RENAME TO bucks_transactions_gone`); err != nil {
		t.Fatalf("hide ledger table: %v", err)
	}
	if _, err := f.lc.Approve(in.ID, f.admin.ID, 0); err == nil {
		t.Fatal("expected approve to fail when the credit cannot post")
	}

	// the claim must have rolled back with the credit
	got, _ := f.instances.GetByID(in.ID)
	if got.Status != model.StatusCompleted {
		t.Errorf("status = %q, want completed after rollback", got.Status)
	}
	if got.TransactionID != nil {
		t.Errorf("transaction_id = %v, want nil after rollback", *got.TransactionID)
	}

	// once the ledger is healthy again the retry succeeds
	if _, err := f.db.Exec(`ALTER TABLE bucks_transactions_gone RENAME TO bucks_transactions`); err != nil {
		t.Fatalf("restore ledger table: %v", err)
	}
	approved, err := f.lc.Approve(in.ID, f.admin.ID, 0)
	if err != nil {
		t.Fatalf("retry approve: %v", err)
	}
	if approved.Status != model.StatusApproved {
		t.Errorf("status = %q, want approved", approved.Status)
	}
	if f.balance(t) != 2 {
		t.Errorf("balance = %d, want 2", f.balance(t))
	}
}
