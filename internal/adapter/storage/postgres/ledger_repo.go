package postgres

import (
	"context"
	"errors"
	"fmt"

	"coin-wallet-core/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository. Entries are append-only;
// there is no update or delete statement in this file on purpose.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

const ledgerColumns = `id, user_id, kind, currency, delta, external_ref, created_at`

// Insert appends an entry within a database transaction. The table carries a
// UNIQUE (kind, external_ref) constraint; a duplicate append inserts nothing
// and returns false.
func (r *LedgerRepo) Insert(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) (bool, error) {
	query := `INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (kind, external_ref) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		e.ID, e.UserID, e.Kind, e.Currency, e.Delta, e.ExternalRef, e.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByKindAndRef fetches the original entry for an idempotency key.
func (r *LedgerRepo) GetByKindAndRef(ctx context.Context, kind domain.EntryKind, externalRef string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE kind = $1 AND external_ref = $2`

	e := &domain.LedgerEntry{}
	err := r.pool.QueryRow(ctx, query, kind, externalRef).Scan(
		&e.ID, &e.UserID, &e.Kind, &e.Currency, &e.Delta, &e.ExternalRef, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

// ListByUser returns a user's entries, newest first.
func (r *LedgerRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Currency, &e.Delta, &e.ExternalRef, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

// SumDeltas replays the log for one user/currency.
func (r *LedgerRepo) SumDeltas(ctx context.Context, userID int64, currency domain.Currency) (int64, error) {
	query := `SELECT COALESCE(SUM(delta), 0) FROM ledger_entries WHERE user_id = $1 AND currency = $2`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, userID, currency).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum ledger deltas: %w", err)
	}
	return sum, nil
}
