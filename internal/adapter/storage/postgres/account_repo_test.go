package postgres

import (
	"context"
	"testing"
	"time"

	"coin-wallet-core/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newTestAccount(userID int64) *domain.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Account{
		UserID:              userID,
		FiatBalanceCents:    10000,
		CoinBalanceSubunits: 500,
		CashbackEnabled:     true,
		CashbackPercent:     10,
		DepositMemo:         strPtr("memo-abc123"),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func accountColumnNames() []string {
	return []string{"user_id", "fiat_balance_cents", "coin_balance_subunits",
		"cashback_enabled", "cashback_percent", "deposit_memo", "created_at", "updated_at"}
}

func accountRow(a *domain.Account) *pgxmock.Rows {
	return pgxmock.NewRows(accountColumnNames()).AddRow(
		a.UserID, a.FiatBalanceCents, a.CoinBalanceSubunits,
		a.CashbackEnabled, a.CashbackPercent, a.DepositMemo,
		a.CreatedAt, a.UpdatedAt,
	)
}

func TestAccountRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount(42)

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(a.UserID, a.FiatBalanceCents, a.CoinBalanceSubunits,
			a.CashbackEnabled, a.CashbackPercent, a.DepositMemo,
			a.CreatedAt, a.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), a)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByUserID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount(42)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE user_id").
		WithArgs(a.UserID).
		WillReturnRows(accountRow(a))

	result, err := repo.GetByUserID(context.Background(), a.UserID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.UserID, result.UserID)
	assert.Equal(t, a.FiatBalanceCents, result.FiatBalanceCents)
	assert.Equal(t, a.CoinBalanceSubunits, result.CoinBalanceSubunits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByUserID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE user_id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(accountColumnNames()))

	result, err := repo.GetByUserID(context.Background(), 99)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByUserIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount(42)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE user_id .+ FOR UPDATE").
		WithArgs(a.UserID).
		WillReturnRows(accountRow(a))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByUserIDForUpdate(context.Background(), tx, a.UserID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.UserID, result.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByDepositMemo(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount(42)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE deposit_memo").
		WithArgs("memo-abc123").
		WillReturnRows(accountRow(a))

	result, err := repo.GetByDepositMemo(context.Background(), "memo-abc123")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.UserID, result.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_UpdateBalances(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET fiat_balance_cents").
		WithArgs(int64(9000), int64(600), int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalances(context.Background(), tx, 42, 9000, 600)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_UpdateBalances_AccountMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET fiat_balance_cents").
		WithArgs(int64(9000), int64(600), int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalances(context.Background(), tx, 42, 9000, 600)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_AssignDepositMemo_OnlyOnce(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectExec("UPDATE accounts SET deposit_memo").
		WithArgs("memo-new", int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.AssignDepositMemo(context.Background(), 42, "memo-new"))

	// Second assignment hits the deposit_memo IS NULL guard and updates no
	// rows. Losing that race is not an error; the first memo stands.
	mock.ExpectExec("UPDATE accounts SET deposit_memo").
		WithArgs("memo-other", int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(t, repo.AssignDepositMemo(context.Background(), 42, "memo-other"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
