package postgres

import (
	"context"
	"testing"
	"time"

	"coin-wallet-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry(userID int64) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        domain.EntryKindDeposit,
		Currency:    domain.CurrencyCoin,
		Delta:       2500,
		ExternalRef: "txhash-001",
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func ledgerColumnNames() []string {
	return []string{"id", "user_id", "kind", "currency", "delta", "external_ref", "created_at"}
}

func ledgerRow(e *domain.LedgerEntry) *pgxmock.Rows {
	return pgxmock.NewRows(ledgerColumnNames()).AddRow(
		e.ID, e.UserID, e.Kind, e.Currency, e.Delta, e.ExternalRef, e.CreatedAt,
	)
}

func TestLedgerRepo_Insert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(42)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.UserID, e.Kind, e.Currency, e.Delta, e.ExternalRef, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	inserted, err := repo.Insert(context.Background(), tx, e)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Insert_DuplicateIsNoOp(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(42)

	mock.ExpectBegin()
	// ON CONFLICT DO NOTHING: zero rows affected on duplicate key.
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.UserID, e.Kind, e.Currency, e.Delta, e.ExternalRef, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	inserted, err := repo.Insert(context.Background(), tx, e)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByKindAndRef(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(42)

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE kind").
		WithArgs(e.Kind, e.ExternalRef).
		WillReturnRows(ledgerRow(e))

	result, err := repo.GetByKindAndRef(context.Background(), e.Kind, e.ExternalRef)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, e.ID, result.ID)
	assert.Equal(t, e.Delta, result.Delta)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByKindAndRef_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE kind").
		WithArgs(domain.EntryKindDeposit, "txhash-missing").
		WillReturnRows(pgxmock.NewRows(ledgerColumnNames()))

	result, err := repo.GetByKindAndRef(context.Background(), domain.EntryKindDeposit, "txhash-missing")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e1 := newTestEntry(42)
	e2 := newTestEntry(42)
	e2.Kind = domain.EntryKindPaymentDebit
	e2.Delta = -900
	e2.ExternalRef = "order-5"

	rows := pgxmock.NewRows(ledgerColumnNames()).
		AddRow(e1.ID, e1.UserID, e1.Kind, e1.Currency, e1.Delta, e1.ExternalRef, e1.CreatedAt).
		AddRow(e2.ID, e2.UserID, e2.Kind, e2.Currency, e2.Delta, e2.ExternalRef, e2.CreatedAt)

	mock.ExpectQuery("SELECT .+ FROM ledger_entries").
		WithArgs(int64(42), 50, 0).
		WillReturnRows(rows)

	result, err := repo.ListByUser(context.Background(), 42, 50, 0)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, e1.ExternalRef, result[0].ExternalRef)
	assert.Equal(t, e2.Delta, result[1].Delta)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_SumDeltas(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(int64(42), domain.CurrencyCoin).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(1600)))

	sum, err := repo.SumDeltas(context.Background(), 42, domain.CurrencyCoin)
	require.NoError(t, err)
	assert.Equal(t, int64(1600), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}
