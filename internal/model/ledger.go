package model

import "time"

// TransactionType classifies a bucks transaction.
type TransactionType string

const (
	TxEarned   TransactionType = "earned"
	TxSpent    TransactionType = "spent"
	TxBonus    TransactionType = "bonus"
	TxAdjusted TransactionType = "adjusted"
)

// SourceType says what kind of record a transaction traces back to.
type SourceType string

const (
	SourceChore  SourceType = "chore"
	SourceReward SourceType = "reward"
	SourceAdmin  SourceType = "admin"
)

// Balance is a child's bucks account. The stored balance is authoritative;
// the transaction log is audit history.
type Balance struct {
	ChildID           int64     `json:"child_id"`
	FamilyID          int64     `json:"family_id"`
	CurrentBalance    int       `json:"current_balance"`
	LifetimeEarned    int       `json:"lifetime_earned"`
	LifetimeSpent     int       `json:"lifetime_spent"`
	LastTransactionID *string   `json:"last_transaction_id"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Transaction is one immutable entry in a child's bucks ledger.
// Amount is signed: positive credits, negative debits. BalanceAfter
// records the stored balance as of this write.
type Transaction struct {
	ID           string          `json:"id"`
	FamilyID     int64           `json:"family_id"`
	ChildID      int64           `json:"child_id"`
	Type         TransactionType `json:"type"`
	Amount       int             `json:"amount"`
	BalanceAfter int             `json:"balance_after"`
	SourceType   SourceType      `json:"source_type"`
	SourceID     string          `json:"source_id"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"created_at"`
	CreatedBy    string          `json:"created_by"`
}

// BalanceStats combines the stored balance with a derived breakdown of
// activity over a recent period.
type BalanceStats struct {
	ChildID            int64     `json:"child_id"`
	FamilyID           int64     `json:"family_id"`
	CurrentBalance     int       `json:"current_balance"`
	LifetimeEarned     int       `json:"lifetime_earned"`
	LifetimeSpent      int       `json:"lifetime_spent"`
	PeriodEarned       int       `json:"period_earned"`
	PeriodSpent        int       `json:"period_spent"`
	PeriodTransactions int       `json:"period_transactions"`
	Since              time.Time `json:"since"`
}

// Reward is a catalog item a child can spend bucks on.
type Reward struct {
	ID          int64     `json:"id"`
	FamilyID    int64     `json:"family_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	BucksCost   int       `json:"bucks_cost"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}
