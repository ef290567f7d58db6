package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coin-wallet-core/config"
	"coin-wallet-core/internal/core/domain"
	"coin-wallet-core/internal/core/ports"
	"coin-wallet-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WithdrawalServiceImpl implements ports.WithdrawalService. The coin balance
// is debited and the pending row written in one transaction before anything
// touches the network, so a crash can never leave an unaccounted send.
type WithdrawalServiceImpl struct {
	accountRepo    ports.AccountRepository
	ledgerRepo     ports.LedgerRepository
	withdrawalRepo ports.WithdrawalRepository
	transactor     ports.DBTransactor
	wallet         ports.WalletService
	node           ports.NodeClient
	walletCfg      config.WalletConfig
	log            zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
	withdrawalRepo ports.WithdrawalRepository,
	transactor ports.DBTransactor,
	wallet ports.WalletService,
	node ports.NodeClient,
	walletCfg config.WalletConfig,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		accountRepo:    accountRepo,
		ledgerRepo:     ledgerRepo,
		withdrawalRepo: withdrawalRepo,
		transactor:     transactor,
		wallet:         wallet,
		node:           node,
		walletCfg:      walletCfg,
		log:            log,
	}
}

// Withdraw debits the coin balance, records the pending withdrawal, and
// submits the send through the failover client. The withdrawal id rides in
// the transfer memo so an ambiguous submission can be reconciled later.
func (s *WithdrawalServiceImpl) Withdraw(ctx context.Context, req ports.WithdrawalRequest) (*domain.PendingWithdrawal, error) {
	if req.AmountSubunits <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !domain.ValidCoinAddress(req.DestinationAddress) {
		return nil, apperror.ErrInvalidAddress()
	}

	withdrawal, err := s.debitAndRecord(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := s.node.BroadcastSend(ctx, s.walletCfg.OperatorAddress, req.DestinationAddress, req.AmountSubunits, withdrawal.ID.String())
	if err != nil {
		return s.handleSubmitFailure(ctx, withdrawal, err)
	}

	if err := s.withdrawalRepo.UpdateStatus(ctx, withdrawal.ID, domain.WithdrawalStatusConfirmed, &result.TxHash); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("confirm withdrawal: %w", err))
	}
	withdrawal.Status = domain.WithdrawalStatusConfirmed
	withdrawal.NodeResponseRef = &result.TxHash

	s.log.Info().
		Str("withdrawal_id", withdrawal.ID.String()).
		Int64("user_id", req.UserID).
		Int64("amount_subunits", req.AmountSubunits).
		Str("tx_hash", result.TxHash).
		Msg("withdrawal confirmed")

	return withdrawal, nil
}

// debitAndRecord runs the local half of a withdrawal: ledger debit, balance
// update, and the pending row, all in one transaction under the account lock.
func (s *WithdrawalServiceImpl) debitAndRecord(ctx context.Context, req ports.WithdrawalRequest) (*domain.PendingWithdrawal, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.accountRepo.GetByUserIDForUpdate(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}
	if account.CoinBalanceSubunits < req.AmountSubunits {
		return nil, apperror.ErrInsufficientBalance()
	}

	id := uuid.New()
	entry := domain.NewLedgerEntry(req.UserID, domain.EntryKindWithdrawalDebit, domain.CurrencyCoin, -req.AmountSubunits, id.String())
	inserted, err := s.ledgerRepo.Insert(ctx, dbTx, &entry)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append withdrawal debit: %w", err))
	}
	if !inserted {
		return nil, apperror.InternalError(fmt.Errorf("withdrawal ref %s already in ledger", id))
	}

	if err := s.accountRepo.UpdateBalances(ctx, dbTx, req.UserID, account.FiatBalanceCents, account.CoinBalanceSubunits-req.AmountSubunits); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}

	now := time.Now().UTC()
	withdrawal := &domain.PendingWithdrawal{
		ID:                 id,
		UserID:             req.UserID,
		DestinationAddress: req.DestinationAddress,
		AmountSubunits:     req.AmountSubunits,
		Status:             domain.WithdrawalStatusSubmitted,
		SubmittedAt:        now,
		UpdatedAt:          now,
	}
	if err := s.withdrawalRepo.Create(ctx, dbTx, withdrawal); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create pending withdrawal: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return withdrawal, nil
}

// handleSubmitFailure maps a submit error to the withdrawal outcome. Definite
// failures (rejection, nothing reachable) fail the withdrawal and refund; an
// ambiguous outcome leaves it SUBMITTED for the reconciler.
func (s *WithdrawalServiceImpl) handleSubmitFailure(ctx context.Context, withdrawal *domain.PendingWithdrawal, submitErr error) (*domain.PendingWithdrawal, error) {
	var appErr *apperror.AppError
	if errors.As(submitErr, &appErr) && appErr.Code == "NODE_002" {
		s.log.Warn().
			Str("withdrawal_id", withdrawal.ID.String()).
			Err(submitErr).
			Msg("ambiguous submission, leaving withdrawal for reconciliation")
		return withdrawal, nil
	}

	// Definite failure: the send never happened, refund the debit.
	if err := s.FailAndRefund(ctx, withdrawal); err != nil {
		return nil, err
	}

	s.log.Warn().
		Str("withdrawal_id", withdrawal.ID.String()).
		Err(submitErr).
		Msg("withdrawal failed and refunded")

	return nil, submitErr
}

// FailAndRefund marks the withdrawal FAILED and credits the compensating
// refund entry, keyed by the withdrawal id for idempotency. Also used by the
// reconciler for timed-out ambiguous submissions.
func (s *WithdrawalServiceImpl) FailAndRefund(ctx context.Context, withdrawal *domain.PendingWithdrawal) error {
	if err := s.withdrawalRepo.UpdateStatus(ctx, withdrawal.ID, domain.WithdrawalStatusFailed, nil); err != nil {
		return apperror.InternalError(fmt.Errorf("fail withdrawal: %w", err))
	}

	refund := domain.NewLedgerEntry(withdrawal.UserID, domain.EntryKindWithdrawalFailedRefund, domain.CurrencyCoin, withdrawal.AmountSubunits, withdrawal.ID.String())
	if _, _, err := s.wallet.Apply(ctx, withdrawal.UserID, []domain.LedgerEntry{refund}); err != nil {
		return err
	}

	withdrawal.Status = domain.WithdrawalStatusFailed
	return nil
}

// GetWithdrawal loads a withdrawal by its string id.
func (s *WithdrawalServiceImpl) GetWithdrawal(ctx context.Context, id string) (*domain.PendingWithdrawal, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("invalid withdrawal id")
	}
	withdrawal, err := s.withdrawalRepo.GetByID(ctx, parsed)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get withdrawal: %w", err))
	}
	if withdrawal == nil {
		return nil, apperror.ErrNotFound("withdrawal")
	}
	return withdrawal, nil
}
