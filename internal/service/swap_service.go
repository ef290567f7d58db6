package service

import (
	"context"
	"fmt"

	"coin-wallet-core/config"
	"coin-wallet-core/internal/core/domain"
	"coin-wallet-core/internal/core/ports"
	"coin-wallet-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SwapServiceImpl implements ports.SwapService. A swap is a debit/credit
// entry pair sharing one external_ref, applied atomically at the oracle rate.
type SwapServiceImpl struct {
	wallet     ports.WalletService
	ledgerRepo ports.LedgerRepository
	oracle     ports.PriceOracle
	walletCfg  config.WalletConfig
	log        zerolog.Logger
}

// NewSwapService creates a new SwapServiceImpl.
func NewSwapService(
	wallet ports.WalletService,
	ledgerRepo ports.LedgerRepository,
	oracle ports.PriceOracle,
	walletCfg config.WalletConfig,
	log zerolog.Logger,
) *SwapServiceImpl {
	return &SwapServiceImpl{
		wallet:     wallet,
		ledgerRepo: ledgerRepo,
		oracle:     oracle,
		walletCfg:  walletCfg,
		log:        log,
	}
}

// Swap converts between the fiat and coin balances at the current rate.
// Retrying with the same RequestRef replays the original outcome.
func (s *SwapServiceImpl) Swap(ctx context.Context, req ports.SwapRequest) (*ports.SwapResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	ref := req.RequestRef
	if ref == "" {
		ref = uuid.NewString()
	}

	quote, err := s.oracle.CurrentRate(ctx)
	if err != nil {
		return nil, err
	}

	var debitCurrency, creditCurrency domain.Currency
	var credited int64

	switch req.Direction {
	case ports.SwapFiatToCoin:
		if req.Amount < s.walletCfg.MinSwapFiatCents {
			return nil, apperror.ErrSwapRejected(fmt.Sprintf("amount below minimum of %d cents", s.walletCfg.MinSwapFiatCents))
		}
		debitCurrency, creditCurrency = domain.CurrencyFiat, domain.CurrencyCoin
		credited = quote.FiatCentsToCoinSubunits(req.Amount)
	case ports.SwapCoinToFiat:
		if req.Amount < s.walletCfg.MinSwapCoinSubunits {
			return nil, apperror.ErrSwapRejected(fmt.Sprintf("amount below minimum of %d sub-units", s.walletCfg.MinSwapCoinSubunits))
		}
		debitCurrency, creditCurrency = domain.CurrencyCoin, domain.CurrencyFiat
		credited = quote.CoinSubunitsToFiatCents(req.Amount)
	default:
		return nil, apperror.Validation("direction must be FIAT_TO_COIN or COIN_TO_FIAT")
	}

	if credited <= 0 {
		return nil, apperror.ErrSwapRejected("amount rounds to zero at current rate")
	}

	entries := []domain.LedgerEntry{
		domain.NewLedgerEntry(req.UserID, domain.EntryKindSwapOut, debitCurrency, -req.Amount, ref),
		domain.NewLedgerEntry(req.UserID, domain.EntryKindSwapIn, creditCurrency, credited, ref),
	}

	account, applied, err := s.wallet.Apply(ctx, req.UserID, entries)
	if err != nil {
		return nil, err
	}

	if !applied {
		// Replay: report the originally executed amounts, not amounts at
		// whatever the rate is now.
		return s.replayResult(ctx, ref, quote.RateText, account)
	}

	s.log.Info().
		Int64("user_id", req.UserID).
		Str("direction", string(req.Direction)).
		Int64("debited", req.Amount).
		Int64("credited", credited).
		Str("rate", quote.RateText).
		Str("external_ref", ref).
		Msg("swap executed")

	return &ports.SwapResult{
		ExternalRef: ref,
		Debited:     req.Amount,
		Credited:    credited,
		Rate:        quote.RateText,
		Account:     account,
	}, nil
}

// replayResult reconstructs the original swap outcome from the ledger.
func (s *SwapServiceImpl) replayResult(ctx context.Context, ref, rateText string, account *domain.Account) (*ports.SwapResult, error) {
	out, err := s.ledgerRepo.GetByKindAndRef(ctx, domain.EntryKindSwapOut, ref)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load original swap debit: %w", err))
	}
	in, err := s.ledgerRepo.GetByKindAndRef(ctx, domain.EntryKindSwapIn, ref)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load original swap credit: %w", err))
	}
	if out == nil || in == nil {
		return nil, apperror.InternalError(fmt.Errorf("swap %s replayed but original entries missing", ref))
	}

	return &ports.SwapResult{
		ExternalRef: ref,
		Debited:     -out.Delta,
		Credited:    in.Delta,
		Rate:        rateText,
		Duplicate:   true,
		Account:     account,
	}, nil
}
