// Package engine runs the compensation pipeline: volume propagation up
// the placement and sponsor trees, the direct sponsor bonus, the binary
// matching bonus with carry-forward deltas, and rank evaluation. One
// purchase triggers exactly one run of the pipeline; each step commits
// its counter updates and ledger entries as a single atomic batch.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cubixnet/comp/internal/domain"
	"github.com/cubixnet/comp/internal/store"
	"github.com/cubixnet/comp/internal/wallet"
)

// teamMatchingPercent is the fixed binary matching rate.
var teamMatchingPercent = decimal.NewFromInt(7)

// AccountStore is the account persistence slice the engine consumes.
type AccountStore interface {
	Get(ctx context.Context, address string) (*domain.Account, error)
	GetMany(ctx context.Context, addresses []string) ([]*domain.Account, error)
	ApplyBatch(ctx context.Context, batch store.Batch) error
}

// PurchaseStore persists purchase records.
type PurchaseStore interface {
	Create(ctx context.Context, p *domain.Purchase) error
	Get(ctx context.Context, id int64) (*domain.Purchase, error)
	AdvanceStatus(ctx context.Context, id int64, from, to domain.PurchaseStatus) error
}

// Catalog resolves rank and pack reference data.
type Catalog interface {
	Rank(ctx context.Context, id int) (domain.Rank, error)
	Ranks(ctx context.Context) ([]domain.Rank, error)
	Pack(ctx context.Context, tier int) (domain.Pack, error)
}

// SubtreeWalker enumerates placement descendants for star counting.
type SubtreeWalker interface {
	DescendantSubtree(ctx context.Context, address string) ([]*domain.Account, error)
}

// Options tunes pipeline behavior.
type Options struct {
	// RankAdvancement enables the promotion side of the rank engine.
	RankAdvancement bool
	// RetryMax and RetryBaseDelay bound the transient-failure retry of
	// each atomic batch.
	RetryMax       int
	RetryBaseDelay time.Duration
}

// Service is the purchase distribution pipeline.
type Service struct {
	accounts  AccountStore
	purchases PurchaseStore
	catalog   Catalog
	wallet    wallet.Service
	subtree   SubtreeWalker
	opts      Options
}

// NewService creates the pipeline. All stores are required; wallet may
// be nil for replay/recovery use where no payment is taken.
func NewService(accounts AccountStore, purchases PurchaseStore, catalog Catalog, walletSvc wallet.Service, subtree SubtreeWalker, opts Options) *Service {
	if accounts == nil {
		panic("engine.NewService: accounts is nil")
	}
	if purchases == nil {
		panic("engine.NewService: purchases is nil")
	}
	if catalog == nil {
		panic("engine.NewService: catalog is nil")
	}
	if subtree == nil {
		panic("engine.NewService: subtree is nil")
	}
	if opts.RetryBaseDelay == 0 {
		opts.RetryBaseDelay = 200 * time.Millisecond
	}
	return &Service{
		accounts:  accounts,
		purchases: purchases,
		catalog:   catalog,
		wallet:    walletSvc,
		subtree:   subtree,
		opts:      opts,
	}
}

// ProcessPurchase takes payment for a pack and runs the distribution
// pipeline. The wallet debit happens before any counter mutation, so an
// insufficient balance aborts the purchase cleanly.
func (s *Service) ProcessPurchase(ctx context.Context, buyerAddress string, tier int) (*domain.Purchase, error) {
	buyer, err := s.accounts.Get(ctx, buyerAddress)
	if err != nil {
		return nil, err
	}
	pack, err := s.catalog.Pack(ctx, tier)
	if err != nil {
		return nil, err
	}

	if buyer.LastPurchaseTier > pack.Tier {
		return nil, fmt.Errorf("buyer %s holds tier %d: %w", buyer.Address, buyer.LastPurchaseTier, domain.ErrTierDowngrade)
	}

	if s.wallet != nil {
		balance, err := s.wallet.Balance(ctx, buyer.Address)
		if err != nil {
			return nil, fmt.Errorf("checking wallet balance: %w", err)
		}
		if balance.LessThan(pack.Price) {
			return nil, fmt.Errorf("balance %s below pack price %s: %w", balance, pack.Price, domain.ErrInsufficientFunds)
		}
		memo := fmt.Sprintf("%s pack bought for %s", pack.Name, pack.Price)
		if err := s.wallet.Debit(ctx, buyer.Address, pack.Price, memo); err != nil {
			return nil, fmt.Errorf("debiting wallet: %w", err)
		}
	}

	purchase := &domain.Purchase{
		Buyer:  buyer.Address,
		Tier:   pack.Tier,
		Price:  pack.Price,
		Status: domain.PurchasePaid,
	}
	if err := s.purchases.Create(ctx, purchase); err != nil {
		return nil, err
	}

	if err := s.Distribute(ctx, purchase.ID); err != nil {
		return nil, err
	}
	purchase.Status = domain.PurchaseSettled
	return purchase, nil
}

// Distribute runs the pipeline for a paid purchase and settles it.
// Replaying a settled purchase is rejected, never double-counted. The
// purchase status advances after each non-repeatable step, so a
// distribution that failed mid-pipeline resumes at the first incomplete
// step: a replay never re-applies volume or re-pays the direct bonus.
// Matching and rank evaluation are safe to re-run as-is, guarded by the
// carry-forward deltas and the rank order respectively.
func (s *Service) Distribute(ctx context.Context, purchaseID int64) error {
	purchase, err := s.purchases.Get(ctx, purchaseID)
	if err != nil {
		return err
	}
	switch purchase.Status {
	case domain.PurchasePaid, domain.PurchaseVolumeApplied, domain.PurchaseDirectPaid:
	case domain.PurchaseSettled, domain.PurchaseLegacy:
		return fmt.Errorf("purchase %d: %w", purchase.ID, domain.ErrPurchaseSettled)
	default:
		return fmt.Errorf("purchase %d is %s, not paid", purchase.ID, purchase.Status)
	}

	buyer, err := s.accounts.Get(ctx, purchase.Buyer)
	if err != nil {
		return err
	}

	slog.Info("distribution start", "buyer", buyer.Address, "purchase", purchase.ID,
		"price", purchase.Price, "status", purchase.Status)

	affected := affectedAncestors(buyer)

	if purchase.Status == domain.PurchasePaid {
		if err := s.propagateVolume(ctx, buyer, affected, purchase); err != nil {
			return fmt.Errorf("propagating volume: %w", err)
		}
		if err := s.advance(ctx, purchase, domain.PurchaseVolumeApplied); err != nil {
			return err
		}
	}
	if purchase.Status == domain.PurchaseVolumeApplied {
		if err := s.payDirectBonus(ctx, buyer, purchase); err != nil {
			return fmt.Errorf("paying direct bonus: %w", err)
		}
		if err := s.advance(ctx, purchase, domain.PurchaseDirectPaid); err != nil {
			return err
		}
	}
	if err := s.runBinaryMatching(ctx, buyer, affected, purchase); err != nil {
		return fmt.Errorf("running binary matching: %w", err)
	}
	if err := s.evaluateRanks(ctx, buyer.Address, affected, purchase); err != nil {
		return fmt.Errorf("evaluating ranks: %w", err)
	}

	if err := s.advance(ctx, purchase, domain.PurchaseSettled); err != nil {
		return err
	}
	slog.Info("distribution done", "buyer", buyer.Address, "purchase", purchase.ID)
	return nil
}

// advance records the completion of a pipeline step on the purchase.
func (s *Service) advance(ctx context.Context, purchase *domain.Purchase, to domain.PurchaseStatus) error {
	if err := s.purchases.AdvanceStatus(ctx, purchase.ID, purchase.Status, to); err != nil {
		return fmt.Errorf("advancing purchase %d to %s: %w", purchase.ID, to, err)
	}
	purchase.Status = to
	return nil
}

// applyBatch commits one pipeline step with transient-failure retry.
func (s *Service) applyBatch(ctx context.Context, batch store.Batch) error {
	return store.WithRetry(ctx, s.opts.RetryMax, s.opts.RetryBaseDelay, func(ctx context.Context) error {
		return s.accounts.ApplyBatch(ctx, batch)
	})
}
