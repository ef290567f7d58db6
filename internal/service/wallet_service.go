package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coin-wallet-core/config"
	"coin-wallet-core/internal/core/domain"
	"coin-wallet-core/internal/core/ports"
	"coin-wallet-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const entryCacheTTL = 24 * time.Hour

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// WalletServiceImpl implements ports.WalletService. It is the only code path
// that mutates balances: every mutation is a ledger append plus a balance
// update inside one transaction under a per-account row lock.
type WalletServiceImpl struct {
	accountRepo ports.AccountRepository
	ledgerRepo  ports.LedgerRepository
	entryCache  ports.EntryCache
	transactor  ports.DBTransactor
	walletCfg   config.WalletConfig
	log         zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
	entryCache ports.EntryCache,
	transactor ports.DBTransactor,
	walletCfg config.WalletConfig,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		entryCache:  entryCache,
		transactor:  transactor,
		walletCfg:   walletCfg,
		log:         log,
	}
}

// EnsureAccount returns the user's account, creating it with zero balances and
// the configured cashback defaults on first touch.
func (s *WalletServiceImpl) EnsureAccount(ctx context.Context, userID int64) (*domain.Account, error) {
	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account != nil {
		return account, nil
	}

	now := time.Now().UTC()
	fresh := &domain.Account{
		UserID:          userID,
		CashbackEnabled: s.walletCfg.CashbackPercent > 0,
		CashbackPercent: s.walletCfg.CashbackPercent,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	// Create is a no-op when a concurrent request won the race; the re-read
	// below returns whichever row exists.
	if err := s.accountRepo.Create(ctx, fresh); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}

	account, err = s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reload account: %w", err))
	}
	if account == nil {
		return nil, apperror.InternalError(fmt.Errorf("account %d missing after create", userID))
	}

	s.log.Info().Int64("user_id", userID).Msg("account created")
	return account, nil
}

// GetAccount returns the account or a not-found error.
func (s *WalletServiceImpl) GetAccount(ctx context.Context, userID int64) (*domain.Account, error) {
	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}
	return account, nil
}

// GetBalance returns the materialized balance for one currency.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, userID int64, currency domain.Currency) (int64, error) {
	account, err := s.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.Balance(currency), nil
}

// EnsureDepositMemo lazily assigns the account's unique deposit memo. The
// memo-IS-NULL guard on the update makes concurrent assignment converge on a
// single value.
func (s *WalletServiceImpl) EnsureDepositMemo(ctx context.Context, userID int64) (string, error) {
	account, err := s.GetAccount(ctx, userID)
	if err != nil {
		return "", err
	}
	if account.DepositMemo != nil {
		return *account.DepositMemo, nil
	}

	memo := uuid.NewString()
	if err := s.accountRepo.AssignDepositMemo(ctx, userID, memo); err != nil {
		return "", apperror.InternalError(fmt.Errorf("assign deposit memo: %w", err))
	}

	account, err = s.GetAccount(ctx, userID)
	if err != nil {
		return "", err
	}
	if account.DepositMemo == nil {
		return "", apperror.InternalError(fmt.Errorf("deposit memo missing after assign for user %d", userID))
	}
	return *account.DepositMemo, nil
}

// Apply atomically appends the entries of one logical operation and updates
// the materialized balances. Entries already in the ledger (same kind and
// external_ref) are skipped; applied is false when every entry was a
// duplicate. A resulting negative balance rolls the whole batch back.
func (s *WalletServiceImpl) Apply(ctx context.Context, userID int64, entries []domain.LedgerEntry) (*domain.Account, bool, error) {
	if len(entries) == 0 {
		return nil, false, apperror.ErrInvalidAmount()
	}
	for i := range entries {
		if entries[i].Delta == 0 {
			return nil, false, apperror.ErrInvalidAmount()
		}
		if entries[i].UserID != userID {
			return nil, false, apperror.InternalError(fmt.Errorf("entry user %d does not match account %d", entries[i].UserID, userID))
		}
	}

	// Layer 1: Redis fast path. All entries of an operation share a ref, so
	// the first entry's key stands for the whole batch.
	cached, err := s.entryCache.Get(ctx, entries[0].Kind, entries[0].ExternalRef)
	if err != nil {
		s.log.Warn().Err(err).Msg("redis entry check failed, falling through to DB")
	}
	if cached != nil {
		account, err := s.GetAccount(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return account, false, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.accountRepo.GetByUserIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return nil, false, apperror.ErrNotFound("account")
	}

	fiat := account.FiatBalanceCents
	coin := account.CoinBalanceSubunits
	applied := false

	for i := range entries {
		inserted, err := s.ledgerRepo.Insert(ctx, dbTx, &entries[i])
		if err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("append ledger entry: %w", err))
		}
		if !inserted {
			// Layer 2: the (kind, external_ref) pair already exists.
			continue
		}
		applied = true
		switch entries[i].Currency {
		case domain.CurrencyCoin:
			coin += entries[i].Delta
		default:
			fiat += entries[i].Delta
		}
	}

	if !applied {
		// Whole batch was a replay; nothing to commit.
		return account, false, nil
	}

	if fiat < 0 || coin < 0 {
		return nil, false, apperror.ErrInsufficientBalance()
	}

	if err := s.accountRepo.UpdateBalances(ctx, dbTx, userID, fiat, coin); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// Post-commit: cache the applied entries (best-effort).
	for i := range entries {
		payload, err := json.Marshal(&entries[i])
		if err != nil {
			continue
		}
		if err := s.entryCache.Set(ctx, entries[i].Kind, entries[i].ExternalRef, payload, entryCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("external_ref", entries[i].ExternalRef).Msg("failed to cache ledger entry")
		}
	}

	account.FiatBalanceCents = fiat
	account.CoinBalanceSubunits = coin
	account.UpdatedAt = time.Now().UTC()

	s.log.Info().
		Int64("user_id", userID).
		Int("entries", len(entries)).
		Int64("fiat_balance", fiat).
		Int64("coin_balance", coin).
		Msg("ledger entries applied")

	return account, true, nil
}

// History lists the user's ledger entries, newest first.
func (s *WalletServiceImpl) History(ctx context.Context, userID int64, limit, offset int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	entries, err := s.ledgerRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list ledger entries: %w", err))
	}
	return entries, nil
}
