package domain

import (
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus is the lifecycle state of an outbound withdrawal.
type WithdrawalStatus string

const (
	WithdrawalStatusSubmitted WithdrawalStatus = "SUBMITTED"
	WithdrawalStatusConfirmed WithdrawalStatus = "CONFIRMED"
	WithdrawalStatusFailed    WithdrawalStatus = "FAILED"
)

// PendingWithdrawal tracks an outbound coin send from debit to node confirmation.
// A FAILED withdrawal has a compensating WITHDRAWAL_FAILED_REFUND ledger entry
// keyed by the same withdrawal id.
type PendingWithdrawal struct {
	ID                 uuid.UUID        `json:"id"`
	UserID             int64            `json:"user_id"`
	DestinationAddress string           `json:"destination_address"`
	AmountSubunits     int64            `json:"amount_subunits"`
	Status             WithdrawalStatus `json:"status"`
	NodeResponseRef    *string          `json:"node_response_ref,omitempty"` // tx hash reported by the node
	SubmittedAt        time.Time        `json:"submitted_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// IsTerminal returns true once the withdrawal reached a final state.
func (w *PendingWithdrawal) IsTerminal() bool {
	return w.Status == WithdrawalStatusConfirmed || w.Status == WithdrawalStatusFailed
}
