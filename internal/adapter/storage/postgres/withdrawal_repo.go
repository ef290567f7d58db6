package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coin-wallet-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

const withdrawalColumns = `id, user_id, destination_address, amount_subunits, status, node_response_ref, submitted_at, updated_at`

// Create inserts a pending withdrawal within the same transaction as its
// ledger debit.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.PendingWithdrawal) error {
	query := `INSERT INTO pending_withdrawals (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.UserID, w.DestinationAddress, w.AmountSubunits,
		w.Status, w.NodeResponseRef, w.SubmittedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pending withdrawal: %w", err)
	}
	return nil
}

// GetByID fetches a withdrawal by id.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PendingWithdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM pending_withdrawals WHERE id = $1`

	w := &domain.PendingWithdrawal{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.UserID, &w.DestinationAddress, &w.AmountSubunits,
		&w.Status, &w.NodeResponseRef, &w.SubmittedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get withdrawal by id: %w", err)
	}
	return w, nil
}

// UpdateStatus transitions a withdrawal. Terminal states are never overwritten.
func (r *WithdrawalRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WithdrawalStatus, nodeResponseRef *string) error {
	query := `UPDATE pending_withdrawals
		SET status = $1, node_response_ref = COALESCE($2, node_response_ref), updated_at = NOW()
		WHERE id = $3 AND status = $4`

	tag, err := r.pool.Exec(ctx, query, status, nodeResponseRef, id, domain.WithdrawalStatusSubmitted)
	if err != nil {
		return fmt.Errorf("update withdrawal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal %s not in submitted state", id)
	}
	return nil
}

// ListSubmittedBefore returns withdrawals still awaiting confirmation that
// were submitted before the cutoff.
func (r *WithdrawalRepo) ListSubmittedBefore(ctx context.Context, cutoff time.Time) ([]domain.PendingWithdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM pending_withdrawals
		WHERE status = $1 AND submitted_at < $2 ORDER BY submitted_at ASC`

	rows, err := r.pool.Query(ctx, query, domain.WithdrawalStatusSubmitted, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list submitted withdrawals: %w", err)
	}
	defer rows.Close()

	var result []domain.PendingWithdrawal
	for rows.Next() {
		var w domain.PendingWithdrawal
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.DestinationAddress, &w.AmountSubunits,
			&w.Status, &w.NodeResponseRef, &w.SubmittedAt, &w.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawals: %w", err)
	}
	return result, nil
}
