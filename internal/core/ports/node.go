package ports

import (
	"context"

	"coin-wallet-core/internal/core/domain"
)

// NodeClient talks to the operator's set of redundant ledger nodes.
// Reads (GetTransactions, GetBalance) are retried freely across nodes; a
// write (BroadcastSend) is never silently retried after an ambiguous outcome.
type NodeClient interface {
	// GetTransactions lists transfers touching address with sequence greater
	// than sinceSequence, in ascending sequence order.
	GetTransactions(ctx context.Context, address string, sinceSequence uint64) ([]domain.NodeTransaction, error)
	// GetBalance returns the on-ledger balance of address in coin sub-units.
	GetBalance(ctx context.Context, address string) (int64, error)
	// BroadcastSend submits an outbound transfer. The memo carries the
	// withdrawal id so an ambiguous submission can be reconciled later.
	BroadcastSend(ctx context.Context, from, to string, amountSubunits int64, memo string) (*domain.BroadcastResult, error)
}

// PriceSource fetches a fresh quote from the external ticker.
type PriceSource interface {
	FetchQuote(ctx context.Context) (*domain.PriceQuote, error)
}
