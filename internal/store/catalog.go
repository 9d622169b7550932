package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cubixnet/comp/internal/domain"
)

// PgCatalogStore implements rank and pack reference data with PostgreSQL.
type PgCatalogStore struct {
	pool *pgxpool.Pool
}

// NewPgCatalogStore creates a new PostgreSQL catalog store.
func NewPgCatalogStore(pool *pgxpool.Pool) *PgCatalogStore {
	return &PgCatalogStore{pool: pool}
}

// Rank returns one rank by ID.
func (s *PgCatalogStore) Rank(ctx context.Context, id int) (domain.Rank, error) {
	var r domain.Rank
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, minimum_volume, minimum_direct_referrals, leg_ratio,
		        star_count, star_rank_id, direct_bonus_percent, rank_bonus
		 FROM ranks WHERE id = $1`, id).Scan(
		&r.ID, &r.Name, &r.MinimumVolume, &r.MinimumDirectReferrals, &r.LegRatio,
		&r.StarCount, &r.StarRankID, &r.DirectBonusPercent, &r.RankBonus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rank{}, fmt.Errorf("rank %d: %w", id, domain.ErrNotFound)
		}
		return domain.Rank{}, fmt.Errorf("getting rank %d: %w", id, err)
	}
	return r, nil
}

// Ranks returns every rank ordered by ascending volume threshold.
func (s *PgCatalogStore) Ranks(ctx context.Context) ([]domain.Rank, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, minimum_volume, minimum_direct_referrals, leg_ratio,
		        star_count, star_rank_id, direct_bonus_percent, rank_bonus
		 FROM ranks ORDER BY minimum_volume ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing ranks: %w", err)
	}
	defer rows.Close()

	var ranks []domain.Rank
	for rows.Next() {
		var r domain.Rank
		if err := rows.Scan(&r.ID, &r.Name, &r.MinimumVolume, &r.MinimumDirectReferrals,
			&r.LegRatio, &r.StarCount, &r.StarRankID, &r.DirectBonusPercent, &r.RankBonus); err != nil {
			return nil, fmt.Errorf("scanning rank: %w", err)
		}
		ranks = append(ranks, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ranks: %w", err)
	}
	return ranks, nil
}

// Pack returns one pack by tier.
func (s *PgCatalogStore) Pack(ctx context.Context, tier int) (domain.Pack, error) {
	var p domain.Pack
	err := s.pool.QueryRow(ctx,
		`SELECT tier, name, price FROM packs WHERE tier = $1`, tier).Scan(&p.Tier, &p.Name, &p.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Pack{}, fmt.Errorf("pack tier %d: %w", tier, domain.ErrNotFound)
		}
		return domain.Pack{}, fmt.Errorf("getting pack tier %d: %w", tier, err)
	}
	return p, nil
}

// Packs returns the pack catalog ordered by tier.
func (s *PgCatalogStore) Packs(ctx context.Context) ([]domain.Pack, error) {
	rows, err := s.pool.Query(ctx, `SELECT tier, name, price FROM packs ORDER BY tier ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing packs: %w", err)
	}
	defer rows.Close()

	var packs []domain.Pack
	for rows.Next() {
		var p domain.Pack
		if err := rows.Scan(&p.Tier, &p.Name, &p.Price); err != nil {
			return nil, fmt.Errorf("scanning pack: %w", err)
		}
		packs = append(packs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating packs: %w", err)
	}
	return packs, nil
}

// SeedRanks upserts the compensation plan.
func (s *PgCatalogStore) SeedRanks(ctx context.Context, ranks []domain.Rank) error {
	for _, r := range ranks {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO ranks (id, name, minimum_volume, minimum_direct_referrals, leg_ratio,
			                    star_count, star_rank_id, direct_bonus_percent, rank_bonus)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (id) DO UPDATE SET
				name = $2, minimum_volume = $3, minimum_direct_referrals = $4, leg_ratio = $5,
				star_count = $6, star_rank_id = $7, direct_bonus_percent = $8, rank_bonus = $9`,
			r.ID, r.Name, r.MinimumVolume, r.MinimumDirectReferrals, r.LegRatio,
			r.StarCount, r.StarRankID, r.DirectBonusPercent, r.RankBonus)
		if err != nil {
			return fmt.Errorf("seeding rank %s: %w", r.Name, err)
		}
	}
	return nil
}

// SeedPacks upserts the pack catalog.
func (s *PgCatalogStore) SeedPacks(ctx context.Context, packs []domain.Pack) error {
	for _, p := range packs {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO packs (tier, name, price) VALUES ($1, $2, $3)
			 ON CONFLICT (tier) DO UPDATE SET name = $2, price = $3`,
			p.Tier, p.Name, p.Price)
		if err != nil {
			return fmt.Errorf("seeding pack %s: %w", p.Name, err)
		}
	}
	return nil
}
