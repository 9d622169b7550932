// Package network manages the structure of the referral network:
// enrolling accounts under a placement parent and a sponsor. Ancestor
// snapshots are built once here and never recomputed, which is what
// makes the engine's chain lookups a single fetch.
package network

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cubixnet/comp/internal/domain"
	"github.com/cubixnet/comp/internal/notify"
	"github.com/cubixnet/comp/internal/store"
)

// AccountStore is the slice of the store the enrollment service needs.
type AccountStore interface {
	Get(ctx context.Context, address string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	ApplyBatch(ctx context.Context, batch store.Batch) error
}

// RankReader resolves the default rank for new accounts.
type RankReader interface {
	Ranks(ctx context.Context) ([]domain.Rank, error)
}

// Enrollment describes one new participant.
type Enrollment struct {
	Address string
	Parent  string
	Leg     domain.Leg
	Sponsor string
	Email   string // optional, for the welcome notification
}

// Service enrolls accounts into the network.
type Service struct {
	accounts AccountStore
	ranks    RankReader
	notifier notify.Notifier
}

// NewService creates a new enrollment Service.
func NewService(accounts AccountStore, ranks RankReader, notifier notify.Notifier) *Service {
	if accounts == nil {
		panic("network.NewService: accounts is nil")
	}
	if ranks == nil {
		panic("network.NewService: ranks is nil")
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Service{accounts: accounts, ranks: ranks, notifier: notifier}
}

// EnrollRoot creates the network's root account. It has no parent and no
// sponsor and is only valid once, before any other enrollment.
func (s *Service) EnrollRoot(ctx context.Context, address string) (*domain.Account, error) {
	rank, err := s.defaultRank(ctx)
	if err != nil {
		return nil, err
	}

	root := &domain.Account{Address: address, RankID: rank.ID}
	if err := s.accounts.Create(ctx, root); err != nil {
		return nil, err
	}
	return root, nil
}

// Enroll creates an account under a placement parent and leg with a
// sponsor. The ancestor snapshots extend the respective parents' own
// snapshots, which preserves the construction invariant
// ancestors(x) = ancestors(parent(x)) + [parent(x)].
func (s *Service) Enroll(ctx context.Context, e Enrollment) (*domain.Account, error) {
	if e.Address == "" {
		return nil, fmt.Errorf("enrollment address is empty")
	}

	parent, err := s.accounts.Get(ctx, e.Parent)
	if err != nil {
		return nil, fmt.Errorf("placement parent: %w", err)
	}
	sponsor, err := s.accounts.Get(ctx, e.Sponsor)
	if err != nil {
		return nil, fmt.Errorf("sponsor: %w", err)
	}

	rank, err := s.defaultRank(ctx)
	if err != nil {
		return nil, err
	}

	a := &domain.Account{
		Address:            e.Address,
		Parent:             parent.Address,
		PlacementNode:      e.Leg,
		PlacementAncestors: append(append([]string{}, parent.PlacementAncestors...), parent.Address),
		TreeDepth:          parent.TreeDepth + 1,
		Sponsor:            sponsor.Address,
		SponsorAncestors:   append(append([]string{}, sponsor.SponsorAncestors...), sponsor.Address),
		RankID:             rank.ID,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}

	err = s.accounts.ApplyBatch(ctx, store.Batch{Deltas: []store.AccountDelta{
		{Address: sponsor.Address, DirectReferralCount: 1},
	}})
	if err != nil {
		return nil, fmt.Errorf("crediting sponsor referral count: %w", err)
	}

	if e.Email != "" {
		if err := s.notifier.Send(ctx, e.Email, "Welcome to the network",
			fmt.Sprintf("Your account %s is enrolled under sponsor %s.", e.Address, sponsor.Address)); err != nil {
			slog.Error("welcome notification failed", "address", e.Address, "error", err)
		}
	}

	return a, nil
}

func (s *Service) defaultRank(ctx context.Context) (domain.Rank, error) {
	ranks, err := s.ranks.Ranks(ctx)
	if err != nil {
		return domain.Rank{}, fmt.Errorf("loading ranks: %w", err)
	}
	if len(ranks) == 0 {
		return domain.Rank{}, fmt.Errorf("rank table is empty: %w", domain.ErrNotFound)
	}
	return ranks[0], nil
}
