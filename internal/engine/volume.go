package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/cubixnet/comp/internal/domain"
	"github.com/cubixnet/comp/internal/store"
)

// affectedAncestors returns the deduplicated union of the buyer's
// placement and sponsor ancestors. The store returns them ordered by
// ascending tree depth, so index i+1 is always deeper than index i and
// the next-in-chain rule of leg attribution holds.
func affectedAncestors(buyer *domain.Account) []string {
	return lo.Uniq(append(append([]string{}, buyer.PlacementAncestors...), buyer.SponsorAncestors...))
}

// legFor attributes the purchase to one of the ancestor's legs: leg A
// when the next account down the chain sits on placement node A,
// otherwise leg B.
func legFor(next *domain.Account) domain.Leg {
	if next.PlacementNode == domain.LegA {
		return domain.LegA
	}
	return domain.LegB
}

// propagateVolume credits the full purchase price to one leg of every
// affected ancestor, in one atomic batch together with the buyer's own
// income counter and the volume event journal.
func (s *Service) propagateVolume(ctx context.Context, buyer *domain.Account, affected []string, purchase *domain.Purchase) error {
	chain, err := s.accounts.GetMany(ctx, affected)
	if err != nil {
		return err
	}

	batch := store.Batch{}
	for i, ancestor := range chain {
		next := buyer
		if i+1 < len(chain) {
			next = chain[i+1]
		}
		leg := legFor(next)

		delta := store.AccountDelta{
			Address:        ancestor.Address,
			BusinessVolume: purchase.Price,
		}
		if leg == domain.LegA {
			delta.TeamAVolume = purchase.Price
			delta.RankVolumeA = purchase.Price
			delta.TeamACount = 1
		} else {
			delta.TeamBVolume = purchase.Price
			delta.RankVolumeB = purchase.Price
			delta.TeamBCount = 1
		}
		batch.Deltas = append(batch.Deltas, delta)
		batch.Events = append(batch.Events, domain.VolumeEvent{
			Ancestor:   ancestor.Address,
			Leg:        leg,
			Amount:     purchase.Price,
			Buyer:      buyer.Address,
			PurchaseID: purchase.ID,
		})
		slog.Debug("volume credited", "ancestor", ancestor.Address, "leg", leg, "amount", purchase.Price)
	}

	batch.Deltas = append(batch.Deltas, store.AccountDelta{
		Address:          buyer.Address,
		IndividualIncome: purchase.Price,
		SetLastPurchase:  &store.LastPurchase{Tier: purchase.Tier, Amount: purchase.Price},
	})

	if err := s.applyBatch(ctx, batch); err != nil {
		return fmt.Errorf("applying volume batch for %d ancestors: %w", len(chain), err)
	}
	return nil
}
