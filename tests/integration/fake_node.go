package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coin-wallet-core/internal/core/domain"
	"coin-wallet-core/pkg/apperror"
)

// fakeNode is an in-memory ledger node. Seeded inbound transfers show up in
// GetTransactions, and every accepted BroadcastSend is appended as an
// outbound transfer so the withdrawal reconciliation pass can find it.
type fakeNode struct {
	mu        sync.Mutex
	transfers []domain.NodeTransaction
	nextSeq   uint64
	balance   int64

	// submitErr, when set, is returned by BroadcastSend instead of accepting.
	submitErr error
	// recordOnErr mimics an ambiguous outcome: the send lands on the ledger
	// even though the client sees submitErr.
	recordOnErr bool

	sends int
}

func newFakeNode() *fakeNode {
	return &fakeNode{nextSeq: 1}
}

func (n *fakeNode) seedDeposit(amountSubunits int64, memo string) domain.NodeTransaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	tx := domain.NodeTransaction{
		Hash:           fmt.Sprintf("dep-%d", n.nextSeq),
		Sequence:       n.nextSeq,
		AmountSubunits: amountSubunits,
		Memo:           memo,
		Direction:      domain.TransferIn,
	}
	n.nextSeq++
	n.transfers = append(n.transfers, tx)
	n.balance += amountSubunits
	return tx
}

func (n *fakeNode) failSubmissions(err error, recordAnyway bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitErr = err
	n.recordOnErr = recordAnyway
}

func (n *fakeNode) sendCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sends
}

func (n *fakeNode) GetTransactions(ctx context.Context, address string, sinceSequence uint64) ([]domain.NodeTransaction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var result []domain.NodeTransaction
	for _, tx := range n.transfers {
		if tx.Sequence > sinceSequence {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (n *fakeNode) GetBalance(ctx context.Context, address string) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.balance, nil
}

func (n *fakeNode) BroadcastSend(ctx context.Context, from, to string, amountSubunits int64, memo string) (*domain.BroadcastResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends++
	record := n.submitErr == nil || n.recordOnErr
	if record {
		n.transfers = append(n.transfers, domain.NodeTransaction{
			Hash:           fmt.Sprintf("send-%d", n.nextSeq),
			Sequence:       n.nextSeq,
			AmountSubunits: amountSubunits,
			Memo:           memo,
			Direction:      domain.TransferOut,
		})
		n.nextSeq++
		n.balance -= amountSubunits
	}
	if n.submitErr != nil {
		return nil, n.submitErr
	}
	return &domain.BroadcastResult{TxHash: fmt.Sprintf("send-%d", n.nextSeq-1)}, nil
}

// staticPriceSource serves a fixed quote, stamped fresh on every fetch.
type staticPriceSource struct {
	rateText string
}

func (s *staticPriceSource) FetchQuote(ctx context.Context) (*domain.PriceQuote, error) {
	rate, err := domain.ParseRate(s.rateText)
	if err != nil {
		return nil, apperror.ErrPriceUnavailable(err)
	}
	return &domain.PriceQuote{
		Rate:      rate,
		RateText:  s.rateText,
		FetchedAt: time.Now(),
		Source:    "static",
	}, nil
}
