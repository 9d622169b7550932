package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cubixnet/comp/internal/domain"
)

// PgPurchaseStore implements purchase persistence with PostgreSQL.
type PgPurchaseStore struct {
	pool *pgxpool.Pool
}

// NewPgPurchaseStore creates a new PostgreSQL purchase store.
func NewPgPurchaseStore(pool *pgxpool.Pool) *PgPurchaseStore {
	return &PgPurchaseStore{pool: pool}
}

// Create inserts a purchase and fills in its assigned ID.
func (s *PgPurchaseStore) Create(ctx context.Context, p *domain.Purchase) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO purchases (buyer, tier, price, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		p.Buyer, p.Tier, p.Price, p.Status).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating purchase for %s: %w", p.Buyer, err)
	}
	return nil
}

// Get returns one purchase by ID.
func (s *PgPurchaseStore) Get(ctx context.Context, id int64) (*domain.Purchase, error) {
	var p domain.Purchase
	err := s.pool.QueryRow(ctx,
		`SELECT id, buyer, tier, price, status, created_at FROM purchases WHERE id = $1`,
		id).Scan(&p.ID, &p.Buyer, &p.Tier, &p.Price, &p.Status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting purchase %d: %w", id, err)
	}
	return &p, nil
}

// AdvanceStatus moves a purchase from one pipeline status to the next.
// The compare-and-set on the current status keeps transitions one-way:
// a purchase that already left the expected state is not re-advanced.
func (s *PgPurchaseStore) AdvanceStatus(ctx context.Context, id int64, from, to domain.PurchaseStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE purchases SET status = $2 WHERE id = $1 AND status = $3`,
		id, to, from)
	if err != nil {
		return fmt.Errorf("advancing purchase %d to %s: %w", id, to, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase %d not in %s state: %w", id, from, domain.ErrPurchaseSettled)
	}
	return nil
}

// ListByBuyer returns an account's purchases, newest first.
func (s *PgPurchaseStore) ListByBuyer(ctx context.Context, buyer string, limit, offset int) ([]domain.Purchase, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, buyer, tier, price, status, created_at FROM purchases
		 WHERE buyer = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		buyer, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing purchases for %s: %w", buyer, err)
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.Buyer, &p.Tier, &p.Price, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating purchases: %w", err)
	}
	return purchases, nil
}
