// Package credit records token grants as ledger entries. Every grant
// carries the user's balance after it, so a user's entries chain from 0 to
// the current token balance.
package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/glow-labs/glow/internal/domain"
)

// Service reads the token ledger.
type Service struct {
	store domain.ProgressionStore
}

// NewService creates a ledger service.
func NewService(store domain.ProgressionStore) *Service {
	return &Service{store: store}
}

// History returns the user's recent ledger entries, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.store.LedgerEntries(ctx, userID, limit)
}

// Verify reconciles the user's full ledger against the stored balance.
func (s *Service) Verify(ctx context.Context, userID string) error {
	state, err := s.store.GetProgression(ctx, userID)
	if err != nil {
		return err
	}
	entries, err := s.store.LedgerEntries(ctx, userID, 0)
	if err != nil {
		return err
	}
	return Reconcile(entries, state.Tokens)
}

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Grant builds a ledger entry for amount tokens. balance is the user's
// token balance after the grant.
func Grant(userID string, tx domain.TxType, amount, balance int64, ref, desc string, at time.Time) (domain.LedgerEntry, error) {
	if amount <= 0 {
		return domain.LedgerEntry{}, fmt.Errorf("%w: grant amount must be positive, got %d", domain.ErrInvalidInput, amount)
	}
	if balance < amount {
		return domain.LedgerEntry{}, fmt.Errorf("%w: balance %d below grant %d", domain.ErrInvalidInput, balance, amount)
	}
	return domain.LedgerEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        tx,
		Amount:      amount,
		Balance:     balance,
		Ref:         ref,
		Description: desc,
		Timestamp:   at,
	}, nil
}

// Builder accumulates grants against a running balance.
type Builder struct {
	userID  string
	balance int64
	ref     string
	at      time.Time
	entries []domain.LedgerEntry
}

// NewBuilder starts from the balance before any of the grants.
func NewBuilder(userID string, balance int64, ref string, at time.Time) *Builder {
	return &Builder{userID: userID, balance: balance, ref: ref, at: at}
}

// Add appends a grant. Non-positive amounts are skipped.
func (b *Builder) Add(tx domain.TxType, amount int64, desc string) error {
	if amount <= 0 {
		return nil
	}
	e, err := Grant(b.userID, tx, amount, b.balance+amount, b.ref, desc, b.at)
	if err != nil {
		return err
	}
	b.balance += amount
	b.entries = append(b.entries, e)
	return nil
}

// Balance is the running balance after all added grants.
func (b *Builder) Balance() int64 { return b.balance }

// Entries returns the grants in order.
func (b *Builder) Entries() []domain.LedgerEntry { return b.entries }

// Reconcile checks that entries (newest first, as stored) chain from a
// zero balance and end at balance.
func Reconcile(entries []domain.LedgerEntry, balance int64) error {
	var running int64
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Amount <= 0 {
			return fmt.Errorf("entry %s: non-positive amount %d", e.ID, e.Amount)
		}
		running += e.Amount
		if e.Balance != running {
			return fmt.Errorf("entry %s: balance %d, expected %d", e.ID, e.Balance, running)
		}
	}
	if running != balance {
		return fmt.Errorf("ledger sums to %d, stored balance is %d", running, balance)
	}
	return nil
}
