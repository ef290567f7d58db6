package ports

import (
	"context"
	"time"

	"coin-wallet-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository defines persistence operations for user accounts.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic
// locking; all balance mutations go through a locked account row.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByUserID(ctx context.Context, userID int64) (*domain.Account, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Account, error)
	GetByDepositMemo(ctx context.Context, memo string) (*domain.Account, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, userID int64, fiatCents, coinSubunits int64) error
	AssignDepositMemo(ctx context.Context, userID int64, memo string) error
}

// LedgerRepository defines persistence for the append-only ledger entry log.
type LedgerRepository interface {
	// Insert appends an entry within a database transaction. The ledger is
	// idempotent on (kind, external_ref): a duplicate insert is a no-op and
	// Insert returns false without error.
	Insert(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) (bool, error)
	GetByKindAndRef(ctx context.Context, kind domain.EntryKind, externalRef string) (*domain.LedgerEntry, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.LedgerEntry, error)
	// SumDeltas derives a balance by replaying the log; used to verify the
	// materialized balance stays exactly consistent with the entries.
	SumDeltas(ctx context.Context, userID int64, currency domain.Currency) (int64, error)
}

// WithdrawalRepository defines persistence for pending withdrawals.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, withdrawal *domain.PendingWithdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PendingWithdrawal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WithdrawalStatus, nodeResponseRef *string) error
	// ListSubmittedBefore returns non-terminal withdrawals submitted before
	// the cutoff, for the reconciliation pass.
	ListSubmittedBefore(ctx context.Context, cutoff time.Time) ([]domain.PendingWithdrawal, error)
}

// CursorRepository persists the reconciliation cursor per receiving address.
// The cursor is advanced only after a deposit's ledger entry is committed
// (commit-then-advance).
type CursorRepository interface {
	// Get returns the highest reconciled sequence, 0 when none yet.
	Get(ctx context.Context, address string) (uint64, error)
	// Advance moves the cursor forward; it never moves backwards.
	Advance(ctx context.Context, address string, sequence uint64) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
