package service

import (
	"context"
	"fmt"

	"coin-wallet-core/internal/core/domain"
	"coin-wallet-core/internal/core/ports"
	"coin-wallet-core/pkg/apperror"

	"github.com/rs/zerolog"
)

// PaymentServiceImpl implements ports.PaymentService. A payment is a coin
// debit plus an optional fiat cashback credit, both keyed by the order id so
// retried orders never double-charge or double-credit.
type PaymentServiceImpl struct {
	wallet     ports.WalletService
	ledgerRepo ports.LedgerRepository
	oracle     ports.PriceOracle
	log        zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	wallet ports.WalletService,
	ledgerRepo ports.LedgerRepository,
	oracle ports.PriceOracle,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		wallet:     wallet,
		ledgerRepo: ledgerRepo,
		oracle:     oracle,
		log:        log,
	}
}

// PayWithCoin debits the coin balance for an order and credits cashback.
func (s *PaymentServiceImpl) PayWithCoin(ctx context.Context, req ports.PaymentRequest) (*ports.PaymentResult, error) {
	if req.AmountSubunits <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.OrderID == "" {
		return nil, apperror.Validation("order_id is required")
	}

	account, err := s.wallet.GetAccount(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	entries := []domain.LedgerEntry{
		domain.NewLedgerEntry(req.UserID, domain.EntryKindPaymentDebit, domain.CurrencyCoin, -req.AmountSubunits, req.OrderID),
	}

	var cashbackCents int64
	if account.CashbackEnabled && account.CashbackPercent > 0 {
		// Cashback is part of the payment's atomic outcome: without a usable
		// rate the whole payment is refused rather than silently paid without
		// the credit.
		quote, err := s.oracle.CurrentRate(ctx)
		if err != nil {
			return nil, err
		}
		cashbackCents = quote.CashbackCents(req.AmountSubunits, account.CashbackPercent)
		if cashbackCents > 0 {
			entries = append(entries,
				domain.NewLedgerEntry(req.UserID, domain.EntryKindCashbackCredit, domain.CurrencyFiat, cashbackCents, req.OrderID))
		}
	}

	account, applied, err := s.wallet.Apply(ctx, req.UserID, entries)
	if err != nil {
		return nil, err
	}

	if !applied {
		return s.replayResult(ctx, req.OrderID, account)
	}

	s.log.Info().
		Int64("user_id", req.UserID).
		Str("order_id", req.OrderID).
		Int64("debited_subunits", req.AmountSubunits).
		Int64("cashback_cents", cashbackCents).
		Msg("payment processed")

	return &ports.PaymentResult{
		OrderID:         req.OrderID,
		DebitedSubunits: req.AmountSubunits,
		CashbackCents:   cashbackCents,
		Account:         account,
	}, nil
}

// replayResult reconstructs the original payment outcome from the ledger.
func (s *PaymentServiceImpl) replayResult(ctx context.Context, orderID string, account *domain.Account) (*ports.PaymentResult, error) {
	debit, err := s.ledgerRepo.GetByKindAndRef(ctx, domain.EntryKindPaymentDebit, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load original payment debit: %w", err))
	}
	if debit == nil {
		return nil, apperror.InternalError(fmt.Errorf("payment %s replayed but original debit missing", orderID))
	}

	result := &ports.PaymentResult{
		OrderID:         orderID,
		DebitedSubunits: -debit.Delta,
		Duplicate:       true,
		Account:         account,
	}

	cashback, err := s.ledgerRepo.GetByKindAndRef(ctx, domain.EntryKindCashbackCredit, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load original cashback credit: %w", err))
	}
	if cashback != nil {
		result.CashbackCents = cashback.Delta
	}
	return result, nil
}
