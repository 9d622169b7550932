package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/cubixnet/comp/internal/domain"
)

// Memory is an in-process implementation of every store, used by tests
// and by the local development mode of the seed command. Batches commit
// atomically under one lock: deltas are applied to copies first and
// published only if the whole batch (invariant checks included) passes.
type Memory struct {
	mu        sync.Mutex
	accounts  map[string]*domain.Account
	ranks     map[int]domain.Rank
	packs     map[int]domain.Pack
	entries   []domain.BonusLedgerEntry
	purchases []domain.Purchase
	events    []domain.VolumeEvent
	nextEntry int64
	nextPurch int64
	order     []string // account creation order, for stable listings
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*domain.Account),
		ranks:    make(map[int]domain.Rank),
		packs:    make(map[int]domain.Pack),
	}
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	c.PlacementAncestors = slices.Clone(a.PlacementAncestors)
	c.SponsorAncestors = slices.Clone(a.SponsorAncestors)
	return &c
}

// Get returns one account by address.
func (m *Memory) Get(_ context.Context, address string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[address]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", address, domain.ErrNotFound)
	}
	return cloneAccount(a), nil
}

// GetMany returns accounts ordered by ascending tree depth. Unknown
// addresses are absent from the result.
func (m *Memory) GetMany(_ context.Context, addresses []string) ([]*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Account
	for _, addr := range addresses {
		if a, ok := m.accounts[addr]; ok {
			out = append(out, cloneAccount(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TreeDepth < out[j].TreeDepth })
	return out, nil
}

// Children returns the direct placement children of an account in
// creation order.
func (m *Memory) Children(_ context.Context, parent string) ([]*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Account
	for _, addr := range m.order {
		if a := m.accounts[addr]; a.Parent == parent {
			out = append(out, cloneAccount(a))
		}
	}
	return out, nil
}

// Create inserts a new account.
func (m *Memory) Create(_ context.Context, a *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[a.Address]; exists {
		return fmt.Errorf("account %s already exists", a.Address)
	}
	c := cloneAccount(a)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.accounts[c.Address] = c
	m.order = append(m.order, c.Address)
	return nil
}

// ApplyBatch applies deltas, ledger entries and volume events atomically.
func (m *Memory) ApplyBatch(_ context.Context, batch Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[string]*domain.Account, len(batch.Deltas))
	for _, d := range batch.Deltas {
		a, ok := staged[d.Address]
		if !ok {
			orig, exists := m.accounts[d.Address]
			if !exists {
				return fmt.Errorf("account %s: %w", d.Address, domain.ErrNotFound)
			}
			a = cloneAccount(orig)
			staged[d.Address] = a
		}
		applyMemoryDelta(a, d)
		if err := a.CheckVolumeInvariant(); err != nil {
			return fmt.Errorf("account %s: matched delta exceeds leg volume: %w", d.Address, err)
		}
	}

	for addr, a := range staged {
		m.accounts[addr] = a
	}
	for _, e := range batch.Entries {
		m.nextEntry++
		e.ID = m.nextEntry
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		m.entries = append(m.entries, e)
	}
	for _, ev := range batch.Events {
		ev.ID = int64(len(m.events) + 1)
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = time.Now().UTC()
		}
		m.events = append(m.events, ev)
	}
	return nil
}

func applyMemoryDelta(a *domain.Account, d AccountDelta) {
	a.TeamAVolume = a.TeamAVolume.Add(d.TeamAVolume)
	a.TeamBVolume = a.TeamBVolume.Add(d.TeamBVolume)
	a.TeamAMatchedDelta = a.TeamAMatchedDelta.Add(d.TeamAMatchedDelta)
	a.TeamBMatchedDelta = a.TeamBMatchedDelta.Add(d.TeamBMatchedDelta)
	a.RankVolumeA = a.RankVolumeA.Add(d.RankVolumeA)
	a.RankVolumeB = a.RankVolumeB.Add(d.RankVolumeB)
	a.TeamACount += d.TeamACount
	a.TeamBCount += d.TeamBCount
	a.BusinessVolume = a.BusinessVolume.Add(d.BusinessVolume)
	a.IndividualIncome = a.IndividualIncome.Add(d.IndividualIncome)
	a.DirectSponsorBonusEarned = a.DirectSponsorBonusEarned.Add(d.DirectSponsorBonusEarned)
	a.TeamMatchingBonusEarned = a.TeamMatchingBonusEarned.Add(d.TeamMatchingBonusEarned)
	a.DirectMatchingBonusEarned = a.DirectMatchingBonusEarned.Add(d.DirectMatchingBonusEarned)
	a.RankBonusEarned = a.RankBonusEarned.Add(d.RankBonusEarned)
	a.WithdrawableBalance = a.WithdrawableBalance.Add(d.WithdrawableBalance)
	a.DirectReferralCount += d.DirectReferralCount
	if d.SetRankID > 0 {
		a.RankID = d.SetRankID
	}
	if d.SetLastPurchase != nil {
		a.LastPurchaseTier = d.SetLastPurchase.Tier
		a.LastPurchaseAmount = d.SetLastPurchase.Amount
	}
}

// FindPending returns entries still awaiting reconciliation, oldest first.
func (m *Memory) FindPending(_ context.Context) ([]domain.BonusLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Filter(m.entries, func(e domain.BonusLedgerEntry, _ int) bool {
		return !e.Releasable
	}), nil
}

// ListByBeneficiary returns an account's bonus history, newest first.
func (m *Memory) ListByBeneficiary(_ context.Context, address string, limit, offset int) ([]domain.BonusLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var out []domain.BonusLedgerEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].Beneficiary == address {
			out = append(out, m.entries[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ApplyEntryUpdate writes a reconciliation outcome and credits the
// beneficiary when credit is positive.
func (m *Memory) ApplyEntryUpdate(_ context.Context, entryID int64, beneficiary string, upd EntryUpdate, credit decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := slices.IndexFunc(m.entries, func(e domain.BonusLedgerEntry) bool {
		return e.ID == entryID && !e.Releasable
	})
	if idx < 0 {
		return fmt.Errorf("entry %d: %w", entryID, domain.ErrNotFound)
	}

	if credit.IsPositive() {
		a, ok := m.accounts[beneficiary]
		if !ok {
			return fmt.Errorf("beneficiary %s: %w", beneficiary, domain.ErrNotFound)
		}
		a.WithdrawableBalance = a.WithdrawableBalance.Add(credit)
	}

	m.entries[idx].Amount = upd.Amount
	m.entries[idx].CappedAmount = upd.CappedAmount
	m.entries[idx].Releasable = upd.Releasable
	m.entries[idx].OnHold = upd.OnHold
	return nil
}

// ReleasedSum returns the total released bonus amount for an account.
func (m *Memory) ReleasedSum(_ context.Context, address string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, e := range m.entries {
		if e.Beneficiary == address && e.Releasable {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

// Events returns the volume event journal for one purchase.
func (m *Memory) Events(purchaseID int64) []domain.VolumeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Filter(m.events, func(ev domain.VolumeEvent, _ int) bool {
		return ev.PurchaseID == purchaseID
	})
}

// CreatePurchase inserts a purchase and assigns its ID.
func (m *Memory) CreatePurchase(_ context.Context, p *domain.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPurch++
	p.ID = m.nextPurch
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.purchases = append(m.purchases, *p)
	return nil
}

// GetPurchase returns one purchase by ID.
func (m *Memory) GetPurchase(_ context.Context, id int64) (*domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.purchases {
		if m.purchases[i].ID == id {
			p := m.purchases[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("purchase %d: %w", id, domain.ErrNotFound)
}

// AdvanceStatus moves a purchase from one pipeline status to the next,
// rejecting the move if the purchase already left the expected state.
func (m *Memory) AdvanceStatus(_ context.Context, id int64, from, to domain.PurchaseStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.purchases {
		if m.purchases[i].ID == id {
			if m.purchases[i].Status != from {
				return fmt.Errorf("purchase %d not in %s state: %w", id, from, domain.ErrPurchaseSettled)
			}
			m.purchases[i].Status = to
			return nil
		}
	}
	return fmt.Errorf("purchase %d: %w", id, domain.ErrNotFound)
}

// ListByBuyer returns an account's purchases, newest first.
func (m *Memory) ListByBuyer(_ context.Context, buyer string, limit, offset int) ([]domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var out []domain.Purchase
	for i := len(m.purchases) - 1; i >= 0; i-- {
		if m.purchases[i].Buyer == buyer {
			out = append(out, m.purchases[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Rank returns one rank by ID.
func (m *Memory) Rank(_ context.Context, id int) (domain.Rank, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.ranks[id]
	if !ok {
		return domain.Rank{}, fmt.Errorf("rank %d: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

// Ranks returns every rank ordered by ascending volume threshold.
func (m *Memory) Ranks(_ context.Context) ([]domain.Rank, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ranks := lo.Values(m.ranks)
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].MinimumVolume.Equal(ranks[j].MinimumVolume) {
			return ranks[i].ID < ranks[j].ID
		}
		return ranks[i].MinimumVolume.LessThan(ranks[j].MinimumVolume)
	})
	return ranks, nil
}

// Pack returns one pack by tier.
func (m *Memory) Pack(_ context.Context, tier int) (domain.Pack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packs[tier]
	if !ok {
		return domain.Pack{}, fmt.Errorf("pack tier %d: %w", tier, domain.ErrNotFound)
	}
	return p, nil
}

// Packs returns the pack catalog ordered by tier.
func (m *Memory) Packs(_ context.Context) ([]domain.Pack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	packs := lo.Values(m.packs)
	sort.Slice(packs, func(i, j int) bool { return packs[i].Tier < packs[j].Tier })
	return packs, nil
}

// SeedRanks upserts the compensation plan.
func (m *Memory) SeedRanks(_ context.Context, ranks []domain.Rank) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range ranks {
		m.ranks[r.ID] = r
	}
	return nil
}

// SeedPacks upserts the pack catalog.
func (m *Memory) SeedPacks(_ context.Context, packs []domain.Pack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range packs {
		m.packs[p.Tier] = p
	}
	return nil
}

// Addresses returns all account addresses sorted, for diagnostics.
func (m *Memory) Addresses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	addrs := slices.Clone(m.order)
	sort.Slice(addrs, func(i, j int) bool { return strings.Compare(addrs[i], addrs[j]) < 0 })
	return addrs
}
