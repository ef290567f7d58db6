package domain

import "regexp"

// TransferDirection distinguishes inbound deposits from outbound sends in a
// node's transaction listing.
type TransferDirection string

const (
	TransferIn  TransferDirection = "IN"
	TransferOut TransferDirection = "OUT"
)

// NodeTransaction is one transfer touching the operator's address as reported
// by a ledger node. Sequence is the node-assigned monotonic position used as
// the reconciliation cursor.
type NodeTransaction struct {
	Hash           string            `json:"hash"`
	Sequence       uint64            `json:"sequence"`
	AmountSubunits int64             `json:"amount_subunits"`
	Memo           string            `json:"memo"`
	Direction      TransferDirection `json:"direction"`
}

// BroadcastResult is a node's acknowledgement of a submitted send.
type BroadcastResult struct {
	TxHash string `json:"tx_hash"`
}

// Coin addresses are base58 without the ambiguous characters 0, O, I, l,
// between 95 and 106 characters long.
var addressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{95,106}$`)

// ValidCoinAddress reports whether addr satisfies the coin's address grammar.
// Syntactic check only; no network round-trip.
func ValidCoinAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}
