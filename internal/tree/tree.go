// Package tree is a read-only view over the two parallel ancestor
// structures of the network: the binary placement tree and the sponsor
// (referral) tree. Ancestor lists are denormalized snapshots fixed at
// enrollment, so chain lookup is a single fetch; descendant enumeration
// walks the placement edges with an explicit frontier to stay safe on
// deep trees.
package tree

import (
	"context"
	"fmt"

	"github.com/cubixnet/comp/internal/domain"
)

// AccountReader is the slice of the account store the tree view needs.
type AccountReader interface {
	Get(ctx context.Context, address string) (*domain.Account, error)
	GetMany(ctx context.Context, addresses []string) ([]*domain.Account, error)
	Children(ctx context.Context, parent string) ([]*domain.Account, error)
}

// Service resolves ancestor chains and descendant subtrees.
type Service struct {
	accounts AccountReader
}

// NewService creates a new tree Service.
func NewService(accounts AccountReader) *Service {
	if accounts == nil {
		panic("tree.NewService: accounts is nil")
	}
	return &Service{accounts: accounts}
}

// AncestorChain returns the ancestors of an account in the given tree,
// ordered root-first.
func (s *Service) AncestorChain(ctx context.Context, address string, kind domain.TreeKind) ([]*domain.Account, error) {
	a, err := s.accounts.Get(ctx, address)
	if err != nil {
		return nil, err
	}

	var addresses []string
	switch kind {
	case domain.PlacementTree:
		addresses = a.PlacementAncestors
	case domain.SponsorTree:
		addresses = a.SponsorAncestors
	default:
		return nil, fmt.Errorf("unknown tree kind %q", kind)
	}
	if len(addresses) == 0 {
		return nil, nil
	}

	chain, err := s.accounts.GetMany(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("resolving %s ancestors of %s: %w", kind, address, err)
	}
	return chain, nil
}

// DescendantSubtree returns every transitive placement descendant of an
// account in breadth-first order. Edges are set once at enrollment and
// never retargeted, so the walk cannot cycle.
func (s *Service) DescendantSubtree(ctx context.Context, address string) ([]*domain.Account, error) {
	if _, err := s.accounts.Get(ctx, address); err != nil {
		return nil, err
	}

	var all []*domain.Account
	frontier := []string{address}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]

		children, err := s.accounts.Children(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("walking subtree of %s: %w", address, err)
		}
		for _, child := range children {
			all = append(all, child)
			frontier = append(frontier, child.Address)
		}
	}
	return all, nil
}
