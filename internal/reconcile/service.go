// Package reconcile releases or caps the bonus ledger entries the
// purchase pipeline created on hold. Team matches are capped at the
// beneficiary's last purchase size and released only once both placement
// legs are populated; overrides release unconditionally. The job runs
// periodically and entries it cannot release yet are simply retried on
// the next run.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cubixnet/comp/internal/domain"
	"github.com/cubixnet/comp/internal/store"
)

// AccountReader loads beneficiary state.
type AccountReader interface {
	Get(ctx context.Context, address string) (*domain.Account, error)
}

// LedgerStore is the held-entry slice of the bonus ledger.
type LedgerStore interface {
	FindPending(ctx context.Context) ([]domain.BonusLedgerEntry, error)
	ApplyEntryUpdate(ctx context.Context, entryID int64, beneficiary string, upd store.EntryUpdate, credit decimal.Decimal) error
}

// Summary reports the outcome of one reconciliation run.
type Summary struct {
	RunAt          time.Time
	Scanned        int
	Released       int
	ReleasedAmount decimal.Decimal
	CappedAmount   decimal.Decimal
	StillHeld      int
	Failed         int
}

// Service is the reconciliation job.
type Service struct {
	accounts AccountReader
	ledger   LedgerStore
}

// NewService creates the reconciliation job.
func NewService(accounts AccountReader, ledger LedgerStore) *Service {
	if accounts == nil {
		panic("reconcile.NewService: accounts is nil")
	}
	if ledger == nil {
		panic("reconcile.NewService: ledger is nil")
	}
	return &Service{accounts: accounts, ledger: ledger}
}

// Run processes every pending entry once. Per-entry failures are logged
// and skipped so one bad entry never blocks the batch.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	summary := Summary{
		RunAt:          time.Now().UTC(),
		ReleasedAmount: decimal.Zero,
		CappedAmount:   decimal.Zero,
	}

	entries, err := s.ledger.FindPending(ctx)
	if err != nil {
		return summary, fmt.Errorf("loading pending entries: %w", err)
	}
	summary.Scanned = len(entries)
	slog.Info("reconciliation start", "pending", len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		released, capped, err := s.reconcileEntry(ctx, entry)
		if err != nil {
			summary.Failed++
			slog.Error("reconciling entry failed", "entry", entry.ID, "beneficiary", entry.Beneficiary, "error", err)
			continue
		}
		summary.CappedAmount = summary.CappedAmount.Add(capped)
		if released.IsPositive() {
			summary.Released++
			summary.ReleasedAmount = summary.ReleasedAmount.Add(released)
		} else {
			summary.StillHeld++
		}
	}

	slog.Info("reconciliation done",
		"scanned", summary.Scanned,
		"released", summary.Released,
		"released_amount", summary.ReleasedAmount,
		"capped_amount", summary.CappedAmount,
		"still_held", summary.StillHeld,
		"failed", summary.Failed)
	return summary, nil
}

// reconcileEntry decides one entry's fate and returns the released and
// newly capped amounts.
func (s *Service) reconcileEntry(ctx context.Context, entry domain.BonusLedgerEntry) (released, capped decimal.Decimal, err error) {
	switch entry.Kind {
	case domain.BonusTeamMatch:
		return s.reconcileTeamMatch(ctx, entry)
	case domain.BonusTeamMatchOverride:
		if err := s.ledger.ApplyEntryUpdate(ctx, entry.ID, entry.Beneficiary, store.EntryUpdate{
			Amount:       entry.Amount,
			CappedAmount: entry.CappedAmount,
			Releasable:   true,
			OnHold:       false,
		}, entry.Amount); err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		return entry.Amount, decimal.Zero, nil
	default:
		return decimal.Zero, decimal.Zero, fmt.Errorf("entry %d: unexpected held kind %s", entry.ID, entry.Kind)
	}
}

// reconcileTeamMatch applies the flush cap and the two-leg release gate.
func (s *Service) reconcileTeamMatch(ctx context.Context, entry domain.BonusLedgerEntry) (released, capped decimal.Decimal, err error) {
	beneficiary, err := s.accounts.Get(ctx, entry.Beneficiary)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("loading beneficiary: %w", err)
	}

	// An account that never purchased has no flush allowance at all.
	if !beneficiary.LastPurchaseAmount.IsPositive() {
		slog.Debug("entry held, beneficiary has no purchase", "entry", entry.ID, "beneficiary", entry.Beneficiary)
		return decimal.Zero, decimal.Zero, nil
	}

	amount := entry.Amount
	capped = decimal.Zero
	if excess := amount.Sub(beneficiary.LastPurchaseAmount); excess.IsPositive() {
		capped = excess
		amount = beneficiary.LastPurchaseAmount
	}

	upd := store.EntryUpdate{
		Amount:       amount,
		CappedAmount: entry.CappedAmount.Add(capped),
		Releasable:   false,
		OnHold:       true,
	}
	credit := decimal.Zero
	if beneficiary.TeamACount >= 1 && beneficiary.TeamBCount >= 1 {
		upd.Releasable = true
		upd.OnHold = false
		credit = amount
	} else if capped.IsZero() {
		// Nothing changed: leave the entry alone for the next run.
		return decimal.Zero, decimal.Zero, nil
	}

	if err := s.ledger.ApplyEntryUpdate(ctx, entry.ID, entry.Beneficiary, upd, credit); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return credit, capped, nil
}
