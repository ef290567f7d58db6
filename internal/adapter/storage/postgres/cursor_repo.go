package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CursorRepo implements ports.CursorRepository. One row per receiving
// address; the sequence only moves forward.
type CursorRepo struct {
	pool Pool
}

// NewCursorRepo creates a new CursorRepo.
func NewCursorRepo(pool Pool) *CursorRepo {
	return &CursorRepo{pool: pool}
}

// Get returns the highest reconciled sequence for the address, 0 when the
// address has never been reconciled.
func (r *CursorRepo) Get(ctx context.Context, address string) (uint64, error) {
	query := `SELECT sequence FROM reconciliation_cursors WHERE address = $1`

	var sequence uint64
	err := r.pool.QueryRow(ctx, query, address).Scan(&sequence)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get reconciliation cursor: %w", err)
	}
	return sequence, nil
}

// Advance moves the cursor to sequence. GREATEST keeps it monotonic even if
// two cycles race.
func (r *CursorRepo) Advance(ctx context.Context, address string, sequence uint64) error {
	query := `INSERT INTO reconciliation_cursors (address, sequence, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (address) DO UPDATE
		SET sequence = GREATEST(reconciliation_cursors.sequence, EXCLUDED.sequence), updated_at = NOW()`

	if _, err := r.pool.Exec(ctx, query, address, sequence); err != nil {
		return fmt.Errorf("advance reconciliation cursor: %w", err)
	}
	return nil
}
