// Package ledger wraps the bucks transaction store with the typed entry
// points the rest of the app uses. Every balance change goes through one
// of these methods so the transaction log stays complete.
package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chorebank/internal/model"
	"chorebank/internal/store"
)

type Service struct {
	store  *store.LedgerStore
	logger *slog.Logger
}

func NewService(s *store.LedgerStore, logger *slog.Logger) *Service {
	return &Service{store: s, logger: logger.With("component", "ledger")}
}

// Post appends a transaction. An empty ID is assigned a fresh UUID.
func (s *Service) Post(t model.Transaction) (*model.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	posted, err := s.store.PostTransaction(t)
	if err != nil {
		return nil, fmt.Errorf("post transaction: %w", err)
	}
	s.logger.Info("transaction posted",
		"id", posted.ID, "child_id", posted.ChildID, "type", posted.Type,
		"amount", posted.Amount, "balance_after", posted.BalanceAfter)
	return posted, nil
}

// TipChore credits a discretionary bonus on top of a chore's reward.
// Chore approval credits themselves post through the store directly so
// they can share the approval's SQL transaction.
func (s *Service) TipChore(familyID, childID int64, amount int, instanceID int64, createdBy string) (*model.Transaction, error) {
	return s.Post(model.Transaction{
		FamilyID:    familyID,
		ChildID:     childID,
		Type:        model.TxBonus,
		Amount:      amount,
		SourceType:  model.SourceChore,
		SourceID:    fmt.Sprintf("%d", instanceID),
		Description: "Bonus",
		CreatedBy:   createdBy,
	})
}

// SpendOnReward debits a reward purchase. There is no sufficiency check:
// parents decide whether a child may go negative, the ledger just records
// it.
func (s *Service) SpendOnReward(familyID, childID int64, reward *model.Reward, createdBy string) (*model.Transaction, error) {
	return s.Post(model.Transaction{
		FamilyID:    familyID,
		ChildID:     childID,
		Type:        model.TxSpent,
		Amount:      -reward.BucksCost,
		SourceType:  model.SourceReward,
		SourceID:    fmt.Sprintf("%d", reward.ID),
		Description: reward.Title,
		CreatedBy:   createdBy,
	})
}

// RefundReward reverses a reward purchase.
func (s *Service) RefundReward(familyID, childID int64, reward *model.Reward, createdBy string) (*model.Transaction, error) {
	return s.Post(model.Transaction{
		FamilyID:    familyID,
		ChildID:     childID,
		Type:        model.TxAdjusted,
		Amount:      reward.BucksCost,
		SourceType:  model.SourceReward,
		SourceID:    fmt.Sprintf("%d", reward.ID),
		Description: "Refund: " + reward.Title,
		CreatedBy:   createdBy,
	})
}

// AdjustBalance applies a signed manual correction.
func (s *Service) AdjustBalance(familyID, childID int64, amount int, reason, createdBy string) (*model.Transaction, error) {
	return s.Post(model.Transaction{
		FamilyID:    familyID,
		ChildID:     childID,
		Type:        model.TxAdjusted,
		Amount:      amount,
		SourceType:  model.SourceAdmin,
		Description: reason,
		CreatedBy:   createdBy,
	})
}

// Balance returns the child's account.
func (s *Service) Balance(familyID, childID int64) (*model.Balance, error) {
	return s.store.GetBalance(familyID, childID)
}

// Balances returns every account in the family, highest balance first.
func (s *Service) Balances(familyID int64) ([]model.Balance, error) {
	return s.store.ListBalances(familyID)
}

// History returns a child's recent transactions, newest first.
func (s *Service) History(familyID, childID int64, limit int) ([]model.Transaction, error) {
	return s.store.ListTransactions(familyID, childID, limit)
}

// Stats returns the child's balance with an activity breakdown since the
// given time.
func (s *Service) Stats(familyID, childID int64, since time.Time) (*model.BalanceStats, error) {
	return s.store.Stats(familyID, childID, since)
}
