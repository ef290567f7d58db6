package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustQuote(t *testing.T, rate string) *PriceQuote {
	t.Helper()
	r, err := ParseRate(rate)
	require.NoError(t, err)
	return &PriceQuote{Rate: r, RateText: rate, FetchedAt: time.Now().UTC(), Source: "test"}
}

func TestPriceQuote_FiatCentsToCoinSubunits(t *testing.T) {
	// 1 coin = 0.01 fiat units: 10000 cents buy exactly 1,000,000 sub-units.
	q := mustQuote(t, "0.01")
	assert.Equal(t, int64(1_000_000), q.FiatCentsToCoinSubunits(10000))

	// Rounds down, never up.
	q = mustQuote(t, "0.03")
	assert.Equal(t, int64(3333), q.FiatCentsToCoinSubunits(100)) // 100/0.03 = 3333.33…
}

func TestPriceQuote_CoinSubunitsToFiatCents(t *testing.T) {
	q := mustQuote(t, "0.01")
	assert.Equal(t, int64(100), q.CoinSubunitsToFiatCents(10000))

	// 5000 * 0.0333 = 166.5 -> 166
	q = mustQuote(t, "0.0333")
	assert.Equal(t, int64(166), q.CoinSubunitsToFiatCents(5000))
}

func TestPriceQuote_RoundTripNeverGains(t *testing.T) {
	q := mustQuote(t, "0.0137")
	for _, cents := range []int64{1, 99, 100, 12345, 1000000} {
		sub := q.FiatCentsToCoinSubunits(cents)
		back := q.CoinSubunitsToFiatCents(sub)
		assert.LessOrEqual(t, back, cents, "round trip of %d cents manufactured value", cents)
	}
}

func TestPriceQuote_CashbackCents(t *testing.T) {
	// 5000 sub-units at rate 2.00 fiat/coin: fiat equivalent 10000 cents, 10% = 1000.
	q := mustQuote(t, "2.00")
	assert.Equal(t, int64(1000), q.CashbackCents(5000, 10))

	// Floors: fiat equiv 166 cents, 10% -> 16.
	q = mustQuote(t, "0.0333")
	assert.Equal(t, int64(16), q.CashbackCents(5000, 10))

	// Zero percent.
	assert.Equal(t, int64(0), q.CashbackCents(5000, 0))
}

func TestParseRate(t *testing.T) {
	_, err := ParseRate("abc")
	assert.Error(t, err)

	_, err = ParseRate("-0.5")
	assert.Error(t, err)

	_, err = ParseRate("0")
	assert.Error(t, err)

	r, err := ParseRate(" 0.0125 ")
	require.NoError(t, err)
	assert.Equal(t, "1/80", r.String())
}

func TestValidCoinAddress(t *testing.T) {
	valid := "4" + strings.Repeat("AdUndXHHZ9pfQj27iMAjAr4xTDXXjLWRh4P4Ym3X3Kx", 3)[:94]
	assert.True(t, ValidCoinAddress(valid))

	assert.False(t, ValidCoinAddress(""))
	assert.False(t, ValidCoinAddress("too-short"))
	// Contains base58-forbidden characters.
	assert.False(t, ValidCoinAddress(strings.Repeat("0Il", 32)))
	// Too long.
	assert.False(t, ValidCoinAddress(strings.Repeat("4", 120)))
}

func TestAccount_Balance(t *testing.T) {
	a := &Account{FiatBalanceCents: 1500, CoinBalanceSubunits: 42}
	assert.Equal(t, int64(1500), a.Balance(CurrencyFiat))
	assert.Equal(t, int64(42), a.Balance(CurrencyCoin))
}

func TestNewLedgerEntry(t *testing.T) {
	e := NewLedgerEntry(7, EntryKindDeposit, CurrencyCoin, 250, "txhash-1")
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", e.ID.String())
	assert.Equal(t, int64(7), e.UserID)
	assert.True(t, e.IsCredit())
	assert.False(t, e.CreatedAt.IsZero())

	debit := NewLedgerEntry(7, EntryKindPaymentDebit, CurrencyCoin, -250, "order-1")
	assert.False(t, debit.IsCredit())
}

func TestPendingWithdrawal_IsTerminal(t *testing.T) {
	w := &PendingWithdrawal{Status: WithdrawalStatusSubmitted}
	assert.False(t, w.IsTerminal())
	w.Status = WithdrawalStatusConfirmed
	assert.True(t, w.IsTerminal())
	w.Status = WithdrawalStatusFailed
	assert.True(t, w.IsTerminal())
}
