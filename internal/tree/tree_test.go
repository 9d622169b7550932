package tree

import (
	"context"
	"errors"
	"testing"

	"github.com/cubixnet/comp/internal/domain"
	"github.com/cubixnet/comp/internal/store"
)

// buildNetwork creates root with two children on each leg and one
// grandchild: root -> (a on A, b on B), a -> (c on A).
func buildNetwork(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()

	accounts := []*domain.Account{
		{Address: "root", RankID: 1},
		{Address: "a", Parent: "root", PlacementNode: domain.LegA,
			PlacementAncestors: []string{"root"}, TreeDepth: 1,
			Sponsor: "root", SponsorAncestors: []string{"root"}, RankID: 1},
		{Address: "b", Parent: "root", PlacementNode: domain.LegB,
			PlacementAncestors: []string{"root"}, TreeDepth: 1,
			Sponsor: "root", SponsorAncestors: []string{"root"}, RankID: 1},
		{Address: "c", Parent: "a", PlacementNode: domain.LegA,
			PlacementAncestors: []string{"root", "a"}, TreeDepth: 2,
			Sponsor: "a", SponsorAncestors: []string{"root", "a"}, RankID: 1},
	}
	for _, a := range accounts {
		if err := m.Create(ctx, a); err != nil {
			t.Fatalf("create %s: %v", a.Address, err)
		}
	}
	return m
}

func TestAncestorChainRootFirst(t *testing.T) {
	ctx := context.Background()
	svc := NewService(buildNetwork(t))

	chain, err := svc.AncestorChain(ctx, "c", domain.PlacementTree)
	if err != nil {
		t.Fatalf("AncestorChain: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("chain length = %d, want 2", len(chain))
	}
	if chain[0].Address != "root" || chain[1].Address != "a" {
		t.Errorf("chain = [%s, %s], want [root, a]", chain[0].Address, chain[1].Address)
	}
}

func TestAncestorChainRootIsEmpty(t *testing.T) {
	ctx := context.Background()
	svc := NewService(buildNetwork(t))

	chain, err := svc.AncestorChain(ctx, "root", domain.SponsorTree)
	if err != nil {
		t.Fatalf("AncestorChain: %v", err)
	}
	if len(chain) != 0 {
		t.Errorf("root chain length = %d, want 0", len(chain))
	}
}

func TestAncestorChainUnknownAccount(t *testing.T) {
	ctx := context.Background()
	svc := NewService(buildNetwork(t))

	_, err := svc.AncestorChain(ctx, "ghost", domain.PlacementTree)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("AncestorChain(ghost) = %v, want ErrNotFound", err)
	}
}

func TestDescendantSubtree(t *testing.T) {
	ctx := context.Background()
	svc := NewService(buildNetwork(t))

	subtree, err := svc.DescendantSubtree(ctx, "root")
	if err != nil {
		t.Fatalf("DescendantSubtree: %v", err)
	}
	if len(subtree) != 3 {
		t.Fatalf("subtree size = %d, want 3", len(subtree))
	}

	// Breadth-first: both depth-1 children precede the grandchild.
	if subtree[0].Address != "a" || subtree[1].Address != "b" || subtree[2].Address != "c" {
		t.Errorf("subtree order = [%s, %s, %s], want [a, b, c]",
			subtree[0].Address, subtree[1].Address, subtree[2].Address)
	}
}

func TestDescendantSubtreeLeaf(t *testing.T) {
	ctx := context.Background()
	svc := NewService(buildNetwork(t))

	subtree, err := svc.DescendantSubtree(ctx, "c")
	if err != nil {
		t.Fatalf("DescendantSubtree: %v", err)
	}
	if len(subtree) != 0 {
		t.Errorf("leaf subtree size = %d, want 0", len(subtree))
	}
}
