package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cubixnet/comp/internal/domain"
	"github.com/cubixnet/comp/internal/store"
)

// payDirectBonus credits the buyer's sponsor a percentage of the
// purchase price, immediately withdrawable. The root account and
// sponsors whose own last pack is the entry tier (or who carry a
// negative legacy tier) earn nothing.
func (s *Service) payDirectBonus(ctx context.Context, buyer *domain.Account, purchase *domain.Purchase) error {
	if buyer.Sponsor == "" {
		return nil
	}
	sponsor, err := s.accounts.Get(ctx, buyer.Sponsor)
	if err != nil {
		return fmt.Errorf("loading sponsor %s: %w", buyer.Sponsor, err)
	}
	if sponsor.IsRoot() {
		slog.Debug("direct bonus skipped, sponsor is root", "sponsor", sponsor.Address)
		return nil
	}
	if sponsor.LastPurchaseTier < 0 || sponsor.LastPurchaseTier == 1 {
		slog.Debug("direct bonus skipped, sponsor tier ineligible", "sponsor", sponsor.Address, "tier", sponsor.LastPurchaseTier)
		return nil
	}

	rank, err := s.catalog.Rank(ctx, sponsor.RankID)
	if err != nil {
		return fmt.Errorf("loading sponsor rank %d: %w", sponsor.RankID, err)
	}
	bonus := domain.Percent(purchase.Price, rank.DirectBonusPercent)
	if !bonus.IsPositive() {
		return nil
	}

	batch := store.Batch{
		Deltas: []store.AccountDelta{{
			Address:                  sponsor.Address,
			DirectSponsorBonusEarned: bonus,
			WithdrawableBalance:      bonus,
		}},
		Entries: []domain.BonusLedgerEntry{{
			Kind:          domain.BonusDirect,
			SourceAddress: buyer.Address,
			Beneficiary:   sponsor.Address,
			PurchaseID:    purchase.ID,
			Amount:        bonus,
			Percent:       rank.DirectBonusPercent,
			Releasable:    true,
		}},
	}
	if err := s.applyBatch(ctx, batch); err != nil {
		return err
	}
	slog.Info("direct bonus paid", "sponsor", sponsor.Address, "buyer", buyer.Address, "amount", bonus)
	return nil
}
