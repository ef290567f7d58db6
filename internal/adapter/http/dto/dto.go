package dto

import (
	"time"

	"coin-wallet-core/internal/core/domain"
	"coin-wallet-core/internal/core/ports"
)

// SwapRequest is the request body for a balance swap.
type SwapRequest struct {
	Direction  string `json:"direction" binding:"required,oneof=FIAT_TO_COIN COIN_TO_FIAT"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	RequestRef string `json:"request_ref,omitempty" binding:"max=100"`
}

// PaymentRequest is the request body for paying an order with coin.
type PaymentRequest struct {
	OrderID        string `json:"order_id" binding:"required,max=100"`
	AmountSubunits int64  `json:"amount_subunits" binding:"required,gt=0"`
}

// WithdrawRequest is the request body for an outbound coin send.
type WithdrawRequest struct {
	DestinationAddress string `json:"destination_address" binding:"required"`
	AmountSubunits     int64  `json:"amount_subunits" binding:"required,gt=0"`
}

// AccountResponse reports an account with both balances.
type AccountResponse struct {
	UserID              int64   `json:"user_id"`
	FiatBalanceCents    int64   `json:"fiat_balance_cents"`
	CoinBalanceSubunits int64   `json:"coin_balance_subunits"`
	CashbackEnabled     bool    `json:"cashback_enabled"`
	CashbackPercent     int64   `json:"cashback_percent"`
	DepositMemo         *string `json:"deposit_memo,omitempty"`
}

// BalanceResponse reports one currency's balance.
type BalanceResponse struct {
	Currency string `json:"currency"`
	Balance  int64  `json:"balance"`
}

// DepositMemoResponse reports the user's deposit routing memo.
type DepositMemoResponse struct {
	Memo string `json:"memo"`
}

// SwapResponse reports an executed swap.
type SwapResponse struct {
	ExternalRef string          `json:"external_ref"`
	Debited     int64           `json:"debited"`
	Credited    int64           `json:"credited"`
	Rate        string          `json:"rate"`
	Duplicate   bool            `json:"duplicate"`
	Account     AccountResponse `json:"account"`
}

// PaymentResponse reports an executed coin payment.
type PaymentResponse struct {
	OrderID         string          `json:"order_id"`
	DebitedSubunits int64           `json:"debited_subunits"`
	CashbackCents   int64           `json:"cashback_cents"`
	Duplicate       bool            `json:"duplicate"`
	Account         AccountResponse `json:"account"`
}

// WithdrawalResponse reports a withdrawal's current state.
type WithdrawalResponse struct {
	ID                 string  `json:"id"`
	UserID             int64   `json:"user_id"`
	DestinationAddress string  `json:"destination_address"`
	AmountSubunits     int64   `json:"amount_subunits"`
	Status             string  `json:"status"`
	NodeResponseRef    *string `json:"node_response_ref,omitempty"`
	SubmittedAt        string  `json:"submitted_at"`
}

// LedgerEntryResponse is one row of a user's balance history.
type LedgerEntryResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Currency    string `json:"currency"`
	Delta       int64  `json:"delta"`
	ExternalRef string `json:"external_ref"`
	CreatedAt   string `json:"created_at"`
}

// HistoryResponse wraps a paginated ledger listing.
type HistoryResponse struct {
	Entries []LedgerEntryResponse `json:"entries"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// RateResponse reports the oracle's current quote.
type RateResponse struct {
	Pair      string `json:"pair"`
	Rate      string `json:"rate"`
	FetchedAt string `json:"fetched_at"`
}

// OperatorBalanceResponse reports the hot wallet's on-ledger balance.
type OperatorBalanceResponse struct {
	Address         string `json:"address"`
	BalanceSubunits int64  `json:"balance_subunits"`
}

// FromAccount maps a domain account to its response shape.
func FromAccount(a *domain.Account) AccountResponse {
	return AccountResponse{
		UserID:              a.UserID,
		FiatBalanceCents:    a.FiatBalanceCents,
		CoinBalanceSubunits: a.CoinBalanceSubunits,
		CashbackEnabled:     a.CashbackEnabled,
		CashbackPercent:     a.CashbackPercent,
		DepositMemo:         a.DepositMemo,
	}
}

// FromWithdrawal maps a pending withdrawal to its response shape.
func FromWithdrawal(w *domain.PendingWithdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:                 w.ID.String(),
		UserID:             w.UserID,
		DestinationAddress: w.DestinationAddress,
		AmountSubunits:     w.AmountSubunits,
		Status:             string(w.Status),
		NodeResponseRef:    w.NodeResponseRef,
		SubmittedAt:        w.SubmittedAt.UTC().Format(time.RFC3339),
	}
}

// FromSwapResult maps a swap outcome to its response shape.
func FromSwapResult(r *ports.SwapResult) SwapResponse {
	return SwapResponse{
		ExternalRef: r.ExternalRef,
		Debited:     r.Debited,
		Credited:    r.Credited,
		Rate:        r.Rate,
		Duplicate:   r.Duplicate,
		Account:     FromAccount(r.Account),
	}
}

// FromPaymentResult maps a payment outcome to its response shape.
func FromPaymentResult(r *ports.PaymentResult) PaymentResponse {
	return PaymentResponse{
		OrderID:         r.OrderID,
		DebitedSubunits: r.DebitedSubunits,
		CashbackCents:   r.CashbackCents,
		Duplicate:       r.Duplicate,
		Account:         FromAccount(r.Account),
	}
}
