package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"coin-wallet-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Account Repo ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[int64]*domain.Account
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{accounts: make(map[int64]*domain.Account)}
}

func (r *inMemoryAccountRepo) Create(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[a.UserID]; ok {
		// ON CONFLICT DO NOTHING semantics
		return nil
	}
	cp := *a
	r.accounts[a.UserID] = &cp
	return nil
}

func (r *inMemoryAccountRepo) GetByUserID(ctx context.Context, userID int64) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[userID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAccountRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Account, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *inMemoryAccountRepo) GetByDepositMemo(ctx context.Context, memo string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.DepositMemo != nil && *a.DepositMemo == memo {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryAccountRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, userID int64, fiatCents, coinSubunits int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[userID]
	if !ok {
		return fmt.Errorf("account not found")
	}
	a.FiatBalanceCents = fiatCents
	a.CoinBalanceSubunits = coinSubunits
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryAccountRepo) AssignDepositMemo(ctx context.Context, userID int64, memo string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[userID]
	if !ok {
		return fmt.Errorf("account not found")
	}
	// memo-IS-NULL guard: first writer wins
	if a.DepositMemo == nil {
		a.DepositMemo = &memo
	}
	return nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries map[string]*domain.LedgerEntry // keyed by kind|external_ref
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{entries: make(map[string]*domain.LedgerEntry)}
}

func ledgerKey(kind domain.EntryKind, externalRef string) string {
	return string(kind) + "|" + externalRef
}

func (r *inMemoryLedgerRepo) Insert(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ledgerKey(entry.Kind, entry.ExternalRef)
	if _, ok := r.entries[key]; ok {
		return false, nil
	}
	cp := *entry
	r.entries[key] = &cp
	if lt, ok := tx.(*lockedTx); ok {
		lt.onRollback(func() {
			r.mu.Lock()
			delete(r.entries, key)
			r.mu.Unlock()
		})
	}
	return true, nil
}

func (r *inMemoryLedgerRepo) GetByKindAndRef(ctx context.Context, kind domain.EntryKind, externalRef string) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[ledgerKey(kind, externalRef)]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *inMemoryLedgerRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for _, e := range r.entries {
		if e.UserID == userID {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if offset >= len(result) {
		return []domain.LedgerEntry{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func (r *inMemoryLedgerRepo) SumDeltas(ctx context.Context, userID int64, currency domain.Currency) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, e := range r.entries {
		if e.UserID == userID && e.Currency == currency {
			sum += e.Delta
		}
	}
	return sum, nil
}

// --- In-Memory Withdrawal Repo ---

type inMemoryWithdrawalRepo struct {
	mu          sync.RWMutex
	withdrawals map[uuid.UUID]*domain.PendingWithdrawal
}

func newInMemoryWithdrawalRepo() *inMemoryWithdrawalRepo {
	return &inMemoryWithdrawalRepo{withdrawals: make(map[uuid.UUID]*domain.PendingWithdrawal)}
}

func (r *inMemoryWithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.PendingWithdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.withdrawals[w.ID] = &cp
	if lt, ok := tx.(*lockedTx); ok {
		id := w.ID
		lt.onRollback(func() {
			r.mu.Lock()
			delete(r.withdrawals, id)
			r.mu.Unlock()
		})
	}
	return nil
}

func (r *inMemoryWithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PendingWithdrawal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWithdrawalRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WithdrawalStatus, nodeResponseRef *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return fmt.Errorf("withdrawal not found")
	}
	w.Status = status
	if nodeResponseRef != nil {
		w.NodeResponseRef = nodeResponseRef
	}
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryWithdrawalRepo) ListSubmittedBefore(ctx context.Context, cutoff time.Time) ([]domain.PendingWithdrawal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.PendingWithdrawal
	for _, w := range r.withdrawals {
		if w.Status == domain.WithdrawalStatusSubmitted && w.SubmittedAt.Before(cutoff) {
			result = append(result, *w)
		}
	}
	return result, nil
}

// --- In-Memory Cursor Repo ---

type inMemoryCursorRepo struct {
	mu      sync.RWMutex
	cursors map[string]uint64
}

func newInMemoryCursorRepo() *inMemoryCursorRepo {
	return &inMemoryCursorRepo{cursors: make(map[string]uint64)}
}

func (r *inMemoryCursorRepo) Get(ctx context.Context, address string) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cursors[address], nil
}

func (r *inMemoryCursorRepo) Advance(ctx context.Context, address string, sequence uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sequence > r.cursors[address] {
		r.cursors[address] = sequence
	}
	return nil
}

// --- In-Memory Transactor ---

// lockingTransactor serializes transactions with a single mutex, standing in
// for the per-row lock a real database takes on GetByUserIDForUpdate. This
// keeps concurrency tests deterministic where fakes without locking would race.
type lockingTransactor struct {
	mu sync.Mutex
}

func newLockingTransactor() *lockingTransactor {
	return &lockingTransactor{}
}

func (t *lockingTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &lockedTx{release: &t.mu}, nil
}

// lockedTx is a pgx.Tx stub that holds the transactor lock until Commit or
// Rollback, whichever comes first. Repos register undo closures for writes
// made through the tx; Rollback replays them in reverse so a failed operation
// leaves no trace, matching what a real transaction would discard.
type lockedTx struct {
	release *sync.Mutex
	undo    []func()
	done    sync.Once
}

func (t *lockedTx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *lockedTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }

func (t *lockedTx) Commit(ctx context.Context) error {
	t.done.Do(func() {
		t.undo = nil
		t.release.Unlock()
	})
	return nil
}

func (t *lockedTx) Rollback(ctx context.Context) error {
	t.done.Do(func() {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		t.undo = nil
		t.release.Unlock()
	})
	return nil
}
func (t *lockedTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *lockedTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *lockedTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *lockedTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *lockedTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *lockedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *lockedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *lockedTx) Conn() *pgx.Conn { return nil }
