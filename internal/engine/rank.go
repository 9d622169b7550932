package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/cubixnet/comp/internal/domain"
	"github.com/cubixnet/comp/internal/store"
)

// evaluateRanks re-checks promotion eligibility for the buyer and every
// affected ancestor. Non-advancement is a normal outcome, never an
// error; only a store failure aborts the pipeline.
func (s *Service) evaluateRanks(ctx context.Context, buyerAddress string, affected []string, purchase *domain.Purchase) error {
	if !s.opts.RankAdvancement {
		return nil
	}
	ranks, err := s.catalog.Ranks(ctx)
	if err != nil {
		return err
	}
	for _, address := range append([]string{buyerAddress}, affected...) {
		if err := s.evaluateRank(ctx, address, ranks, purchase); err != nil {
			return fmt.Errorf("evaluating rank of %s: %w", address, err)
		}
	}
	return nil
}

// evaluateRank promotes one account if it passes every qualification
// check in order. A promotion debits the rank threshold from both rank
// buckets and pays the rank bonus, all in one batch.
func (s *Service) evaluateRank(ctx context.Context, address string, ranks []domain.Rank, purchase *domain.Purchase) error {
	acct, err := s.accounts.Get(ctx, address)
	if err != nil {
		return err
	}

	bestLeg := decimal.Max(acct.RankVolumeA, acct.RankVolumeB)

	// Highest rank whose volume threshold the stronger bucket clears.
	var candidate *domain.Rank
	for i := len(ranks) - 1; i >= 0; i-- {
		if ranks[i].MinimumVolume.LessThanOrEqual(bestLeg) {
			candidate = &ranks[i]
			break
		}
	}
	if candidate == nil || !candidate.MinimumVolume.IsPositive() {
		return nil
	}
	if candidate.ID <= acct.RankID {
		return nil
	}
	if acct.DirectReferralCount < candidate.MinimumDirectReferrals {
		slog.Debug("rank gate: direct referrals", "account", address, "have", acct.DirectReferralCount, "need", candidate.MinimumDirectReferrals)
		return nil
	}
	if !domain.LegRatioSatisfied(acct.RankVolumeA, acct.RankVolumeB, candidate.LegRatio) {
		slog.Debug("rank gate: leg ratio", "account", address, "ratio", candidate.LegRatio)
		return nil
	}
	if candidate.HasStarRequirement() {
		ok, err := s.starRequirementMet(ctx, acct, *candidate)
		if err != nil {
			return err
		}
		if !ok {
			slog.Debug("rank gate: downline stars", "account", address, "need", candidate.StarCount)
			return nil
		}
	}

	batch := store.Batch{
		Deltas: []store.AccountDelta{{
			Address:             acct.Address,
			RankVolumeA:         candidate.MinimumVolume.Neg(),
			RankVolumeB:         candidate.MinimumVolume.Neg(),
			SetRankID:           candidate.ID,
			RankBonusEarned:     candidate.RankBonus,
			WithdrawableBalance: candidate.RankBonus,
		}},
	}
	if candidate.RankBonus.IsPositive() {
		batch.Entries = []domain.BonusLedgerEntry{{
			Kind:          domain.BonusRank,
			SourceAddress: acct.Address,
			Beneficiary:   acct.Address,
			PurchaseID:    purchase.ID,
			Amount:        candidate.RankBonus,
			Releasable:    true,
		}}
	}
	if err := s.applyBatch(ctx, batch); err != nil {
		return err
	}
	slog.Info("rank promoted", "account", acct.Address, "rank", candidate.Name, "bonus", candidate.RankBonus)
	return nil
}

// starRequirementMet counts descendants holding a rank at or below the
// candidate's star rank, partitioned by each descendant's own placement
// node. A 1:1 plan needs the star count in both legs, a 2:1 plan in at
// least one, and both legs must be populated either way.
func (s *Service) starRequirementMet(ctx context.Context, acct *domain.Account, candidate domain.Rank) (bool, error) {
	descendants, err := s.subtree.DescendantSubtree(ctx, acct.Address)
	if err != nil {
		return false, err
	}
	stars := lo.Filter(descendants, func(d *domain.Account, _ int) bool {
		return d.RankID <= candidate.StarRankID
	})
	legA, legB := lo.FilterReject(stars, func(d *domain.Account, _ int) bool {
		return d.PlacementNode == domain.LegA
	})

	if acct.TeamACount < 1 || acct.TeamBCount < 1 {
		return false, nil
	}
	if candidate.LegRatio == 1 {
		return len(legA) >= candidate.StarCount && len(legB) >= candidate.StarCount, nil
	}
	return len(legA) >= candidate.StarCount || len(legB) >= candidate.StarCount, nil
}
