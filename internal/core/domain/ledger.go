package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind is the kind of balance-affecting event.
type EntryKind string

const (
	EntryKindDeposit                EntryKind = "DEPOSIT"
	EntryKindSwapIn                 EntryKind = "SWAP_IN"
	EntryKindSwapOut                EntryKind = "SWAP_OUT"
	EntryKindPaymentDebit           EntryKind = "PAYMENT_DEBIT"
	EntryKindCashbackCredit         EntryKind = "CASHBACK_CREDIT"
	EntryKindWithdrawalDebit        EntryKind = "WITHDRAWAL_DEBIT"
	EntryKindWithdrawalFailedRefund EntryKind = "WITHDRAWAL_FAILED_REFUND"
)

// LedgerEntry is an immutable append-only balance event. The pair
// (kind, external_ref) is unique: re-appending it is a no-op that returns
// the original entry.
type LedgerEntry struct {
	ID          uuid.UUID `json:"id"`
	UserID      int64     `json:"user_id"`
	Kind        EntryKind `json:"kind"`
	Currency    Currency  `json:"currency"`
	Delta       int64     `json:"delta"` // signed, sub-unit precision
	ExternalRef string    `json:"external_ref"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewLedgerEntry builds an entry with a fresh id and UTC timestamp.
func NewLedgerEntry(userID int64, kind EntryKind, currency Currency, delta int64, externalRef string) LedgerEntry {
	return LedgerEntry{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        kind,
		Currency:    currency,
		Delta:       delta,
		ExternalRef: externalRef,
		CreatedAt:   time.Now().UTC(),
	}
}

// IsCredit reports whether the entry increases the balance.
func (e *LedgerEntry) IsCredit() bool {
	return e.Delta > 0
}
