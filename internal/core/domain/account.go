package domain

import (
	"time"
)

// Currency identifies which of the two account balances an amount refers to.
type Currency string

const (
	CurrencyFiat Currency = "FIAT" // internal cash-equivalent, in cents
	CurrencyCoin Currency = "COIN" // ledger cryptocurrency, in sub-units
)

// Account is a user's two-currency balance record. Balances are materialized
// from the ledger entry log and must never be mutated outside a ledger append.
type Account struct {
	UserID              int64     `json:"user_id"`
	FiatBalanceCents    int64     `json:"fiat_balance_cents"`
	CoinBalanceSubunits int64     `json:"coin_balance_subunits"`
	CashbackEnabled     bool      `json:"cashback_enabled"`
	CashbackPercent     int64     `json:"cashback_percent"` // 0-100
	DepositMemo         *string   `json:"deposit_memo,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Balance returns the materialized balance for the given currency.
func (a *Account) Balance(currency Currency) int64 {
	if currency == CurrencyCoin {
		return a.CoinBalanceSubunits
	}
	return a.FiatBalanceCents
}
