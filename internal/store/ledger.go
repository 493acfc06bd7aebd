package store

import (
	"database/sql"
	"fmt"
	"time"

	"chorebank/internal/model"
)

type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func scanBalance(scanner interface{ Scan(...any) error }) (*model.Balance, error) {
	var b model.Balance
	var lastTx sql.NullString

	err := scanner.Scan(
		&b.ChildID, &b.FamilyID, &b.CurrentBalance, &b.LifetimeEarned,
		&b.LifetimeSpent, &lastTx, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastTx.Valid {
		b.LastTransactionID = &lastTx.String
	}
	return &b, nil
}

const balanceCols = `child_id, family_id, current_balance, lifetime_earned, lifetime_spent, last_transaction_id, updated_at`

// GetBalance returns the child's account, or a zero balance when the
// child has never transacted.
func (s *LedgerStore) GetBalance(familyID, childID int64) (*model.Balance, error) {
	row := s.db.QueryRow(`SELECT `+balanceCols+` FROM bucks_balances WHERE child_id = ?`, childID)
	b, err := scanBalance(row)
	if err == sql.ErrNoRows {
		return &model.Balance{ChildID: childID, FamilyID: familyID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

func (s *LedgerStore) ListBalances(familyID int64) ([]model.Balance, error) {
	rows, err := s.db.Query(
		`SELECT `+balanceCols+` FROM bucks_balances WHERE family_id = ? ORDER BY current_balance DESC, child_id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var balances []model.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, *b)
	}
	return balances, rows.Err()
}

// Stats aggregates a child's activity since a point in time on top of
// the stored balance. The balance row stays authoritative; only the
// period breakdown is derived from transaction rows.
func (s *LedgerStore) Stats(familyID, childID int64, since time.Time) (*model.BalanceStats, error) {
	balance, err := s.GetBalance(familyID, childID)
	if err != nil {
		return nil, err
	}

	stats := &model.BalanceStats{
		ChildID:        childID,
		FamilyID:       familyID,
		CurrentBalance: balance.CurrentBalance,
		LifetimeEarned: balance.LifetimeEarned,
		LifetimeSpent:  balance.LifetimeSpent,
		Since:          since,
	}

	err = s.db.QueryRow(
		`SELECT
			COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0),
			COUNT(*)
		 FROM bucks_transactions
		 WHERE family_id = ? AND child_id = ? AND created_at >= ?`,
		familyID, childID, since.UTC(),
	).Scan(&stats.PeriodEarned, &stats.PeriodSpent, &stats.PeriodTransactions)
	if err != nil {
		return nil, fmt.Errorf("aggregate transactions: %w", err)
	}
	return stats, nil
}

// PostTransaction atomically appends a ledger entry and moves the stored
// balance. The balance row is created lazily on the first transaction.
// Amount is signed; negative amounts may drive the balance below zero.
func (s *LedgerStore) PostTransaction(t model.Transaction) (*model.Transaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	posted, err := postTransaction(tx, t)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return posted, nil
}

// PostTransactionWith runs claim inside the same SQL transaction as the
// ledger write. A claim returning false aborts with nothing written; an
// error from either side rolls back both. Approvals use this so a
// credited status can never outlive a failed ledger post.
func (s *LedgerStore) PostTransactionWith(t model.Transaction, claim func(tx *sql.Tx) (bool, error)) (*model.Transaction, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ok, err := claim(tx)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	posted, err := postTransaction(tx, t)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return posted, true, nil
}

func postTransaction(tx *sql.Tx, t model.Transaction) (*model.Transaction, error) {
	var current, earned, spent int
	err := tx.QueryRow(
		`SELECT current_balance, lifetime_earned, lifetime_spent FROM bucks_balances WHERE child_id = ?`,
		t.ChildID,
	).Scan(&current, &earned, &spent)
	if err == sql.ErrNoRows {
		if _, err := tx.Exec(
			`INSERT INTO bucks_balances (child_id, family_id) VALUES (?, ?)`,
			t.ChildID, t.FamilyID,
		); err != nil {
			return nil, fmt.Errorf("create balance: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}

	balanceAfter := current + t.Amount
	if t.Amount > 0 {
		earned += t.Amount
	} else {
		spent += -t.Amount
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(
		`INSERT INTO bucks_transactions (id, family_id, child_id, type, amount, balance_after, source_type, source_id, description, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.FamilyID, t.ChildID, t.Type, t.Amount, balanceAfter,
		t.SourceType, t.SourceID, t.Description, now, t.CreatedBy,
	); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE bucks_balances
		 SET current_balance = ?, lifetime_earned = ?, lifetime_spent = ?, last_transaction_id = ?, updated_at = ?
		 WHERE child_id = ?`,
		balanceAfter, earned, spent, t.ID, now, t.ChildID,
	); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	t.BalanceAfter = balanceAfter
	t.CreatedAt = now
	return &t, nil
}

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.Transaction, error) {
	var t model.Transaction
	err := scanner.Scan(
		&t.ID, &t.FamilyID, &t.ChildID, &t.Type, &t.Amount, &t.BalanceAfter,
		&t.SourceType, &t.SourceID, &t.Description, &t.CreatedAt, &t.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const transactionCols = `id, family_id, child_id, type, amount, balance_after, source_type, source_id, description, created_at, created_by`

func (s *LedgerStore) GetTransaction(id string) (*model.Transaction, error) {
	row := s.db.QueryRow(`SELECT `+transactionCols+` FROM bucks_transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns a child's history, newest first.
func (s *LedgerStore) ListTransactions(familyID, childID int64, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT `+transactionCols+` FROM bucks_transactions
		 WHERE family_id = ? AND child_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		familyID, childID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

// ListTransactionsBySource finds ledger entries tracing back to a given
// record, e.g. all credits for one chore instance.
func (s *LedgerStore) ListTransactionsBySource(sourceType model.SourceType, sourceID string) ([]model.Transaction, error) {
	rows, err := s.db.Query(
		`SELECT `+transactionCols+` FROM bucks_transactions
		 WHERE source_type = ? AND source_id = ? ORDER BY created_at ASC, rowid ASC`,
		sourceType, sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions by source: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}
