package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cubixnet/comp/internal/domain"
)

const entryColumns = `id, kind, source_address, beneficiary, purchase_id,
	amount, percent, releasable, on_hold, capped_amount, created_at`

// PgLedgerStore implements bonus ledger persistence with PostgreSQL.
type PgLedgerStore struct {
	pool *pgxpool.Pool
}

// NewPgLedgerStore creates a new PostgreSQL bonus ledger store.
func NewPgLedgerStore(pool *pgxpool.Pool) *PgLedgerStore {
	return &PgLedgerStore{pool: pool}
}

func scanEntry(row rowScanner) (domain.BonusLedgerEntry, error) {
	var e domain.BonusLedgerEntry
	err := row.Scan(&e.ID, &e.Kind, &e.SourceAddress, &e.Beneficiary, &e.PurchaseID,
		&e.Amount, &e.Percent, &e.Releasable, &e.OnHold, &e.CappedAmount, &e.CreatedAt)
	return e, err
}

// FindPending returns every entry still awaiting reconciliation, oldest
// first.
func (s *PgLedgerStore) FindPending(ctx context.Context) ([]domain.BonusLedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM bonus_ledger WHERE releasable = FALSE ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("finding pending entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.BonusLedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pending entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending entries: %w", err)
	}
	return entries, nil
}

// ListByBeneficiary returns an account's bonus history, newest first.
func (s *PgLedgerStore) ListByBeneficiary(ctx context.Context, address string, limit, offset int) ([]domain.BonusLedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM bonus_ledger
		 WHERE beneficiary = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		address, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing bonuses for %s: %w", address, err)
	}
	defer rows.Close()

	var entries []domain.BonusLedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bonus entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bonus entries: %w", err)
	}
	return entries, nil
}

// ApplyEntryUpdate writes the reconciliation outcome for one entry and,
// when credit is positive, credits the beneficiary's withdrawable balance
// in the same transaction.
func (s *PgLedgerStore) ApplyEntryUpdate(ctx context.Context, entryID int64, beneficiary string, upd EntryUpdate, credit decimal.Decimal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning entry update: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE bonus_ledger
		 SET amount = $2, capped_amount = $3, releasable = $4, on_hold = $5
		 WHERE id = $1 AND releasable = FALSE`,
		entryID, upd.Amount, upd.CappedAmount, upd.Releasable, upd.OnHold)
	if err != nil {
		return fmt.Errorf("updating entry %d: %w", entryID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %d: %w", entryID, domain.ErrNotFound)
	}

	if credit.IsPositive() {
		tag, err := tx.Exec(ctx,
			`UPDATE accounts SET withdrawable_balance = withdrawable_balance + $2 WHERE address = $1`,
			beneficiary, credit)
		if err != nil {
			return fmt.Errorf("crediting %s: %w", beneficiary, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("beneficiary %s: %w", beneficiary, domain.ErrNotFound)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing entry update: %w", err)
	}
	return nil
}

// ReleasedSum returns the total released bonus amount for an account.
func (s *PgLedgerStore) ReleasedSum(ctx context.Context, address string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM bonus_ledger
		 WHERE beneficiary = $1 AND releasable = TRUE`, address).Scan(&sum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("summing released bonuses for %s: %w", address, err)
	}
	return sum, nil
}
