package ports

import (
	"context"
	"time"

	"coin-wallet-core/internal/core/domain"
)

// EntryCache is the Redis-layer idempotency check in front of the ledger
// (fast path). Keys are kind + external_ref; values are the serialized
// original entry.
type EntryCache interface {
	Get(ctx context.Context, kind domain.EntryKind, externalRef string) ([]byte, error) // nil when absent
	Set(ctx context.Context, kind domain.EntryKind, externalRef string, value []byte, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// WalletService is the primary mutation path into account balances. Apply
// runs all entries of one logical operation in a single transaction under a
// per-account row lock.
type WalletService interface {
	EnsureAccount(ctx context.Context, userID int64) (*domain.Account, error)
	GetAccount(ctx context.Context, userID int64) (*domain.Account, error)
	GetBalance(ctx context.Context, userID int64, currency domain.Currency) (int64, error)
	// EnsureDepositMemo lazily assigns the account's unique deposit memo.
	EnsureDepositMemo(ctx context.Context, userID int64) (string, error)
	// Apply atomically appends the entries and updates materialized balances.
	// Already-appended entries (same kind+external_ref) are skipped; applied
	// is false when every entry was a duplicate. A would-be negative balance
	// rolls everything back with ErrInsufficientBalance.
	Apply(ctx context.Context, userID int64, entries []domain.LedgerEntry) (account *domain.Account, applied bool, err error)
	History(ctx context.Context, userID int64, limit, offset int) ([]domain.LedgerEntry, error)
}

// PriceOracle serves the cached exchange rate with staleness guarantees.
type PriceOracle interface {
	// CurrentRate returns a quote no older than the freshness window,
	// refreshing synchronously when needed. Beyond the hard staleness
	// ceiling it fails with ErrPriceUnavailable.
	CurrentRate(ctx context.Context) (*domain.PriceQuote, error)
}

// SwapDirection selects which balance is the swap source.
type SwapDirection string

const (
	SwapFiatToCoin SwapDirection = "FIAT_TO_COIN"
	SwapCoinToFiat SwapDirection = "COIN_TO_FIAT"
)

// SwapRequest holds validated input for a balance swap. Amount is in the
// source currency's sub-units. RequestRef keys the debit/credit pair for
// idempotent retries; left empty, a fresh ref is generated.
type SwapRequest struct {
	UserID     int64
	Direction  SwapDirection
	Amount     int64
	RequestRef string
}

// SwapResult reports the executed swap.
type SwapResult struct {
	ExternalRef string
	Debited     int64
	Credited    int64
	Rate        string
	Duplicate   bool
	Account     *domain.Account
}

// SwapService converts between the two balances at the oracle rate.
type SwapService interface {
	Swap(ctx context.Context, req SwapRequest) (*SwapResult, error)
}

// PaymentRequest holds validated input for a coin purchase.
type PaymentRequest struct {
	UserID         int64
	OrderID        string
	AmountSubunits int64
}

// PaymentResult reports the executed payment.
type PaymentResult struct {
	OrderID         string
	DebitedSubunits int64
	CashbackCents   int64
	Duplicate       bool
	Account         *domain.Account
}

// PaymentService debits coin for a purchase and credits cashback, idempotent
// on order id.
type PaymentService interface {
	PayWithCoin(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
}

// WithdrawalRequest holds validated input for an outbound coin send.
type WithdrawalRequest struct {
	UserID             int64
	DestinationAddress string
	AmountSubunits     int64
}

// WithdrawalService debits the coin balance and submits the send through the
// node failover client.
type WithdrawalService interface {
	Withdraw(ctx context.Context, req WithdrawalRequest) (*domain.PendingWithdrawal, error)
	GetWithdrawal(ctx context.Context, id string) (*domain.PendingWithdrawal, error)
}
