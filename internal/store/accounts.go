package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/cubixnet/comp/internal/domain"
)

const accountColumns = `address, parent, placement_node, placement_ancestors, tree_depth,
	sponsor, sponsor_ancestors,
	team_a_volume, team_b_volume, team_a_matched_delta, team_b_matched_delta,
	rank_volume_a, rank_volume_b, team_a_count, team_b_count,
	business_volume, individual_income,
	direct_sponsor_bonus_earned, team_matching_bonus_earned,
	direct_matching_bonus_earned, rank_bonus_earned, withdrawable_balance,
	direct_referral_count, rank_id, last_purchase_tier, last_purchase_amount, created_at`

// PgAccountStore implements account persistence with PostgreSQL.
type PgAccountStore struct {
	pool *pgxpool.Pool
}

// NewPgAccountStore creates a new PostgreSQL account store.
func NewPgAccountStore(pool *pgxpool.Pool) *PgAccountStore {
	return &PgAccountStore{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.Address, &a.Parent, &a.PlacementNode, &a.PlacementAncestors, &a.TreeDepth,
		&a.Sponsor, &a.SponsorAncestors,
		&a.TeamAVolume, &a.TeamBVolume, &a.TeamAMatchedDelta, &a.TeamBMatchedDelta,
		&a.RankVolumeA, &a.RankVolumeB, &a.TeamACount, &a.TeamBCount,
		&a.BusinessVolume, &a.IndividualIncome,
		&a.DirectSponsorBonusEarned, &a.TeamMatchingBonusEarned,
		&a.DirectMatchingBonusEarned, &a.RankBonusEarned, &a.WithdrawableBalance,
		&a.DirectReferralCount, &a.RankID, &a.LastPurchaseTier, &a.LastPurchaseAmount, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Get returns one account by address.
func (s *PgAccountStore) Get(ctx context.Context, address string) (*domain.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE address = $1`, address)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", address, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting account %s: %w", address, err)
	}
	return a, nil
}

// GetMany returns the accounts for the given addresses ordered by
// ascending tree depth (root-most first). Unknown addresses are simply
// absent from the result.
func (s *PgAccountStore) GetMany(ctx context.Context, addresses []string) ([]*domain.Account, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE address = ANY($1) ORDER BY tree_depth ASC`,
		addresses)
	if err != nil {
		return nil, fmt.Errorf("getting accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return accounts, nil
}

// Children returns the direct placement children of an account.
func (s *PgAccountStore) Children(ctx context.Context, parent string) ([]*domain.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE parent = $1 ORDER BY created_at ASC`, parent)
	if err != nil {
		return nil, fmt.Errorf("getting children of %s: %w", parent, err)
	}
	defer rows.Close()

	var children []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning child account: %w", err)
		}
		children = append(children, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating children: %w", err)
	}
	return children, nil
}

// Create inserts a new account.
func (s *PgAccountStore) Create(ctx context.Context, a *domain.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (
			address, parent, placement_node, placement_ancestors, tree_depth,
			sponsor, sponsor_ancestors, rank_id, last_purchase_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)`,
		a.Address, a.Parent, a.PlacementNode, a.PlacementAncestors, a.TreeDepth,
		a.Sponsor, a.SponsorAncestors, a.RankID)
	if err != nil {
		return fmt.Errorf("creating account %s: %w", a.Address, err)
	}
	return nil
}

// ApplyBatch applies one pipeline step's deltas, ledger entries and
// volume events in a single transaction. Touched rows are locked in
// address order so concurrent purchases over overlapping ancestor sets
// serialize instead of deadlocking. The matched-delta invariant is
// re-checked on the updated rows; a violation rolls the batch back.
func (s *PgAccountStore) ApplyBatch(ctx context.Context, batch Batch) error {
	if len(batch.Deltas) == 0 && len(batch.Entries) == 0 && len(batch.Events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning batch: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SET LOCAL lock_timeout = '5s'`); err != nil {
		return fmt.Errorf("setting lock timeout: %w", err)
	}

	addresses := lo.Uniq(lo.Map(batch.Deltas, func(d AccountDelta, _ int) string { return d.Address }))
	sort.Strings(addresses)
	if len(addresses) > 0 {
		if _, err := tx.Exec(ctx,
			`SELECT address FROM accounts WHERE address = ANY($1) ORDER BY address FOR UPDATE`,
			addresses); err != nil {
			return fmt.Errorf("locking accounts: %w", err)
		}
	}

	for _, d := range batch.Deltas {
		if err := applyDelta(ctx, tx, d); err != nil {
			return err
		}
	}

	for _, e := range batch.Entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO bonus_ledger (
				kind, source_address, beneficiary, purchase_id,
				amount, percent, releasable, on_hold, capped_amount
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.Kind, e.SourceAddress, e.Beneficiary, e.PurchaseID,
			e.Amount, e.Percent, e.Releasable, e.OnHold, e.CappedAmount); err != nil {
			return fmt.Errorf("inserting %s bonus entry for %s: %w", e.Kind, e.Beneficiary, err)
		}
	}

	for _, ev := range batch.Events {
		if _, err := tx.Exec(ctx,
			`INSERT INTO volume_events (ancestor, leg, amount, buyer, purchase_id)
			 VALUES ($1, $2, $3, $4, $5)`,
			ev.Ancestor, ev.Leg, ev.Amount, ev.Buyer, ev.PurchaseID); err != nil {
			return fmt.Errorf("inserting volume event for %s: %w", ev.Ancestor, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

func applyDelta(ctx context.Context, tx pgx.Tx, d AccountDelta) error {
	row := tx.QueryRow(ctx,
		`UPDATE accounts SET
			team_a_volume = team_a_volume + $2,
			team_b_volume = team_b_volume + $3,
			team_a_matched_delta = team_a_matched_delta + $4,
			team_b_matched_delta = team_b_matched_delta + $5,
			rank_volume_a = rank_volume_a + $6,
			rank_volume_b = rank_volume_b + $7,
			team_a_count = team_a_count + $8,
			team_b_count = team_b_count + $9,
			business_volume = business_volume + $10,
			individual_income = individual_income + $11,
			direct_sponsor_bonus_earned = direct_sponsor_bonus_earned + $12,
			team_matching_bonus_earned = team_matching_bonus_earned + $13,
			direct_matching_bonus_earned = direct_matching_bonus_earned + $14,
			rank_bonus_earned = rank_bonus_earned + $15,
			withdrawable_balance = withdrawable_balance + $16,
			direct_referral_count = direct_referral_count + $17,
			rank_id = CASE WHEN $18 > 0 THEN $18 ELSE rank_id END,
			last_purchase_tier = COALESCE($19, last_purchase_tier),
			last_purchase_amount = COALESCE($20, last_purchase_amount)
		WHERE address = $1
		RETURNING team_a_volume, team_b_volume, team_a_matched_delta, team_b_matched_delta`,
		d.Address,
		d.TeamAVolume, d.TeamBVolume, d.TeamAMatchedDelta, d.TeamBMatchedDelta,
		d.RankVolumeA, d.RankVolumeB, d.TeamACount, d.TeamBCount,
		d.BusinessVolume, d.IndividualIncome,
		d.DirectSponsorBonusEarned, d.TeamMatchingBonusEarned,
		d.DirectMatchingBonusEarned, d.RankBonusEarned, d.WithdrawableBalance,
		d.DirectReferralCount, d.SetRankID,
		lastPurchaseTier(d.SetLastPurchase), lastPurchaseAmount(d.SetLastPurchase))

	var check domain.Account
	err := row.Scan(&check.TeamAVolume, &check.TeamBVolume, &check.TeamAMatchedDelta, &check.TeamBMatchedDelta)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("account %s: %w", d.Address, domain.ErrNotFound)
		}
		return fmt.Errorf("updating account %s: %w", d.Address, err)
	}
	if err := check.CheckVolumeInvariant(); err != nil {
		return fmt.Errorf("account %s: matched delta exceeds leg volume: %w", d.Address, err)
	}
	return nil
}

func lastPurchaseTier(lp *LastPurchase) *int {
	if lp == nil {
		return nil
	}
	return &lp.Tier
}

func lastPurchaseAmount(lp *LastPurchase) any {
	if lp == nil {
		return nil
	}
	return lp.Amount
}
