package postgres

import (
	"context"
	"errors"
	"fmt"

	"coin-wallet-core/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `user_id, fiat_balance_cents, coin_balance_subunits, cashback_enabled, cashback_percent, deposit_memo, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(
		&a.UserID, &a.FiatBalanceCents, &a.CoinBalanceSubunits,
		&a.CashbackEnabled, &a.CashbackPercent, &a.DepositMemo,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// Create inserts a new account. Concurrent creation of the same user is
// tolerated: the existing row wins.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		a.UserID, a.FiatBalanceCents, a.CoinBalanceSubunits,
		a.CashbackEnabled, a.CashbackPercent, a.DepositMemo,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByUserID fetches an account without locking.
func (r *AccountRepo) GetByUserID(ctx context.Context, userID int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("get account by user id: %w", err)
	}
	return a, nil
}

// GetByUserIDForUpdate fetches an account with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 FOR UPDATE`

	a, err := scanAccount(tx.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("get account for update: %w", err)
	}
	return a, nil
}

// GetByDepositMemo resolves the owning account of an inbound transfer memo.
func (r *AccountRepo) GetByDepositMemo(ctx context.Context, memo string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE deposit_memo = $1`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, memo))
	if err != nil {
		return nil, fmt.Errorf("get account by deposit memo: %w", err)
	}
	return a, nil
}

// UpdateBalances sets the materialized balances within a transaction holding
// the account's row lock.
func (r *AccountRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, userID int64, fiatCents, coinSubunits int64) error {
	query := `UPDATE accounts SET fiat_balance_cents = $1, coin_balance_subunits = $2, updated_at = NOW() WHERE user_id = $3`

	tag, err := tx.Exec(ctx, query, fiatCents, coinSubunits, userID)
	if err != nil {
		return fmt.Errorf("update account balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %d", userID)
	}
	return nil
}

// AssignDepositMemo sets the account's memo once; it is immutable afterwards.
// Zero affected rows means a concurrent caller won the assignment, which is
// not an error: the caller re-reads and uses whichever memo stuck.
func (r *AccountRepo) AssignDepositMemo(ctx context.Context, userID int64, memo string) error {
	query := `UPDATE accounts SET deposit_memo = $1, updated_at = NOW() WHERE user_id = $2 AND deposit_memo IS NULL`

	_, err := r.pool.Exec(ctx, query, memo, userID)
	if err != nil {
		return fmt.Errorf("assign deposit memo: %w", err)
	}
	return nil
}
