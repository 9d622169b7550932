package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cubixnet/comp/internal/domain"
)

func TestMemoryApplyBatchRejectsInvariantViolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Create(ctx, &domain.Account{Address: "alice", RankID: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Seed some volume first.
	err := m.ApplyBatch(ctx, Batch{Deltas: []AccountDelta{
		{Address: "alice", TeamAVolume: decimal.NewFromInt(100), TeamBVolume: decimal.NewFromInt(40)},
	}})
	if err != nil {
		t.Fatalf("seeding batch: %v", err)
	}

	// Matching more than the B leg holds must reject the whole batch.
	err = m.ApplyBatch(ctx, Batch{
		Deltas: []AccountDelta{
			{Address: "alice", TeamAMatchedDelta: decimal.NewFromInt(41), TeamBMatchedDelta: decimal.NewFromInt(41)},
		},
		Entries: []domain.BonusLedgerEntry{
			{Kind: domain.BonusTeamMatch, Beneficiary: "alice", Amount: decimal.NewFromInt(3)},
		},
	})
	if !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("ApplyBatch = %v, want ErrInvariantViolation", err)
	}

	// Nothing from the rejected batch may be visible.
	a, err := m.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !a.TeamAMatchedDelta.IsZero() || !a.TeamBMatchedDelta.IsZero() {
		t.Errorf("matched deltas mutated by rejected batch: A=%s B=%s", a.TeamAMatchedDelta, a.TeamBMatchedDelta)
	}
	if pending, _ := m.FindPending(ctx); len(pending) != 0 {
		t.Errorf("rejected batch left %d ledger entries", len(pending))
	}
}

func TestMemoryGetManyDepthOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, a := range []*domain.Account{
		{Address: "deep", TreeDepth: 3},
		{Address: "root", TreeDepth: 0},
		{Address: "mid", TreeDepth: 1},
	} {
		if err := m.Create(ctx, a); err != nil {
			t.Fatalf("create %s: %v", a.Address, err)
		}
	}

	got, err := m.GetMany(ctx, []string{"deep", "root", "mid", "ghost"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("GetMany returned %d accounts, want 3", len(got))
	}
	for i, want := range []string{"root", "mid", "deep"} {
		if got[i].Address != want {
			t.Errorf("position %d = %s, want %s", i, got[i].Address, want)
		}
	}
}

func TestMemoryAdvanceStatusForwardOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p := &domain.Purchase{Buyer: "alice", Tier: 2, Price: decimal.NewFromInt(200), Status: domain.PurchasePaid}
	if err := m.CreatePurchase(ctx, p); err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	if err := m.AdvanceStatus(ctx, p.ID, domain.PurchasePaid, domain.PurchaseVolumeApplied); err != nil {
		t.Fatalf("first advance: %v", err)
	}
	// The compare-and-set rejects a stale expected status.
	if err := m.AdvanceStatus(ctx, p.ID, domain.PurchasePaid, domain.PurchaseVolumeApplied); !errors.Is(err, domain.ErrPurchaseSettled) {
		t.Errorf("stale advance = %v, want ErrPurchaseSettled", err)
	}
	if err := m.AdvanceStatus(ctx, p.ID, domain.PurchaseVolumeApplied, domain.PurchaseSettled); err != nil {
		t.Fatalf("settling advance: %v", err)
	}
	got, err := m.GetPurchase(ctx, p.ID)
	if err != nil {
		t.Fatalf("get purchase: %v", err)
	}
	if got.Status != domain.PurchaseSettled {
		t.Errorf("status = %s, want %s", got.Status, domain.PurchaseSettled)
	}
}

func TestMemoryApplyEntryUpdateCredits(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Create(ctx, &domain.Account{Address: "bob", RankID: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := m.ApplyBatch(ctx, Batch{Entries: []domain.BonusLedgerEntry{
		{Kind: domain.BonusTeamMatch, Beneficiary: "bob", Amount: decimal.NewFromInt(30), OnHold: true},
	}})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	pending, _ := m.FindPending(ctx)
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	upd := EntryUpdate{Amount: decimal.NewFromInt(30), Releasable: true}
	if err := m.ApplyEntryUpdate(ctx, pending[0].ID, "bob", upd, decimal.NewFromInt(30)); err != nil {
		t.Fatalf("entry update: %v", err)
	}

	a, _ := m.Get(ctx, "bob")
	if !a.WithdrawableBalance.Equal(decimal.NewFromInt(30)) {
		t.Errorf("withdrawable = %s, want 30", a.WithdrawableBalance)
	}
	if pending, _ = m.FindPending(ctx); len(pending) != 0 {
		t.Errorf("entry still pending after release")
	}

	// A released entry may not be updated again.
	err = m.ApplyEntryUpdate(ctx, 1, "bob", upd, decimal.Zero)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("re-update of released entry = %v, want ErrNotFound", err)
	}
}
