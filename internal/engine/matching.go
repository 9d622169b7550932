package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/cubixnet/comp/internal/domain"
	"github.com/cubixnet/comp/internal/store"
)

// runBinaryMatching pays the 7% team matching bonus to every affected
// ancestor whose two legs both carry unmatched volume. The matched
// amount advances both carry-forward deltas, so the same volume can
// never be matched twice. Entries are created held; only the
// reconciliation job releases them.
func (s *Service) runBinaryMatching(ctx context.Context, buyer *domain.Account, affected []string, purchase *domain.Purchase) error {
	// Reload after propagation so the just-credited volume participates.
	chain, err := s.accounts.GetMany(ctx, affected)
	if err != nil {
		return err
	}

	directSponsor := ""
	if n := len(buyer.SponsorAncestors); n > 0 {
		directSponsor = buyer.SponsorAncestors[n-1]
	}

	batch := store.Batch{}
	for _, ancestor := range chain {
		unmatchedA := ancestor.UnmatchedA()
		unmatchedB := ancestor.UnmatchedB()
		if !unmatchedA.IsPositive() || !unmatchedB.IsPositive() {
			continue
		}
		matched := decimal.Min(unmatchedA, unmatchedB)
		teamBonus := domain.Percent(matched, teamMatchingPercent)

		delta := store.AccountDelta{
			Address:           ancestor.Address,
			TeamAMatchedDelta: matched,
			TeamBMatchedDelta: matched,
		}
		if teamBonus.IsPositive() {
			delta.TeamMatchingBonusEarned = teamBonus
			batch.Entries = append(batch.Entries, domain.BonusLedgerEntry{
				Kind:          domain.BonusTeamMatch,
				SourceAddress: buyer.Address,
				Beneficiary:   ancestor.Address,
				PurchaseID:    purchase.ID,
				Amount:        teamBonus,
				Percent:       teamMatchingPercent,
				Releasable:    false,
				OnHold:        true,
			})
		}

		override, pct, err := s.overrideBonus(ctx, buyer, ancestor, directSponsor, teamBonus)
		if err != nil {
			return err
		}
		if override.IsPositive() {
			delta.DirectMatchingBonusEarned = override
			batch.Entries = append(batch.Entries, domain.BonusLedgerEntry{
				Kind:          domain.BonusTeamMatchOverride,
				SourceAddress: buyer.Address,
				Beneficiary:   ancestor.Address,
				PurchaseID:    purchase.ID,
				Amount:        override,
				Percent:       pct,
				Releasable:    false,
				OnHold:        true,
			})
		}

		batch.Deltas = append(batch.Deltas, delta)
		slog.Debug("binary match", "ancestor", ancestor.Address, "matched", matched, "bonus", teamBonus, "override", override)
	}

	if len(batch.Deltas) == 0 {
		return nil
	}
	if err := s.applyBatch(ctx, batch); err != nil {
		return fmt.Errorf("applying matching batch: %w", err)
	}
	return nil
}

// overrideBonus computes the secondary credit on top of a team match.
// It applies only to ancestors inside the buyer's sponsor chain, and the
// direct sponsor is excluded because the direct bonus already covers
// that relationship.
func (s *Service) overrideBonus(ctx context.Context, buyer, ancestor *domain.Account, directSponsor string, teamBonus decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if !teamBonus.IsPositive() {
		return decimal.Zero, decimal.Zero, nil
	}
	inSponsorChain := false
	for _, addr := range buyer.SponsorAncestors {
		if addr == ancestor.Address {
			inSponsorChain = true
			break
		}
	}
	if !inSponsorChain || ancestor.Address == directSponsor {
		return decimal.Zero, decimal.Zero, nil
	}
	rank, err := s.catalog.Rank(ctx, ancestor.RankID)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("loading rank %d for %s: %w", ancestor.RankID, ancestor.Address, err)
	}
	return domain.Percent(teamBonus, rank.DirectBonusPercent), rank.DirectBonusPercent, nil
}
