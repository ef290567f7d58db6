package service

import (
	"context"
	"fmt"
	"time"

	"coin-wallet-core/config"
	"coin-wallet-core/internal/core/domain"
	"coin-wallet-core/internal/core/ports"

	"github.com/rs/zerolog"
)

// Reconciler drives the background loop that turns on-ledger facts into
// wallet state: inbound transfers to the operator address become deposit
// credits, and aged SUBMITTED withdrawals are confirmed or failed by looking
// for their memo among outbound transfers.
//
// Deposits follow commit-then-advance: the cursor moves past a transfer only
// after its ledger entry is committed, so a crash between the two replays the
// transfer and the idempotent ledger absorbs the duplicate.
type Reconciler struct {
	node           ports.NodeClient
	wallet         ports.WalletService
	accountRepo    ports.AccountRepository
	cursorRepo     ports.CursorRepository
	withdrawalRepo ports.WithdrawalRepository
	cfg            config.ReconcilerConfig
	operatorAddr   string
	log            zerolog.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(
	node ports.NodeClient,
	wallet ports.WalletService,
	accountRepo ports.AccountRepository,
	cursorRepo ports.CursorRepository,
	withdrawalRepo ports.WithdrawalRepository,
	cfg config.ReconcilerConfig,
	operatorAddr string,
	log zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		node:           node,
		wallet:         wallet,
		accountRepo:    accountRepo,
		cursorRepo:     cursorRepo,
		withdrawalRepo: withdrawalRepo,
		cfg:            cfg,
		operatorAddr:   operatorAddr,
		log:            log,
	}
}

// Run polls until ctx is cancelled. Cycles run on an uncancelled context so
// an in-flight cycle finishes its passes instead of failing mid-request on
// shutdown; Run returns only once that cycle completes.
func (r *Reconciler) Run(ctx context.Context) {
	interval := r.cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cycleCtx := context.WithoutCancel(ctx)

	r.RunCycle(cycleCtx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
			r.RunCycle(cycleCtx)
		}
	}
}

// RunCycle performs one deposit pass and one withdrawal pass. Failures are
// logged and retried on the next tick, never fatal.
func (r *Reconciler) RunCycle(ctx context.Context) {
	if err := r.reconcileDeposits(ctx); err != nil {
		r.log.Warn().Err(err).Msg("deposit reconciliation cycle aborted")
	}
	if err := r.reconcileWithdrawals(ctx); err != nil {
		r.log.Warn().Err(err).Msg("withdrawal reconciliation cycle aborted")
	}
}

func (r *Reconciler) reconcileDeposits(ctx context.Context) error {
	cursor, err := r.cursorRepo.Get(ctx, r.operatorAddr)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	transfers, err := r.node.GetTransactions(ctx, r.operatorAddr, cursor)
	if err != nil {
		return fmt.Errorf("fetch transfers since %d: %w", cursor, err)
	}

	for i := range transfers {
		tx := &transfers[i]
		if tx.Direction == domain.TransferIn {
			if err := r.creditDeposit(ctx, tx); err != nil {
				// Stop without advancing: this transfer is replayed next cycle.
				return fmt.Errorf("credit deposit %s: %w", tx.Hash, err)
			}
		}
		if err := r.cursorRepo.Advance(ctx, r.operatorAddr, tx.Sequence); err != nil {
			return fmt.Errorf("advance cursor to %d: %w", tx.Sequence, err)
		}
	}
	return nil
}

// creditDeposit maps an inbound transfer to a user via its memo and appends
// the deposit entry keyed by the transfer hash. An unmapped or empty memo is
// skipped: those funds stay on the operator address for manual handling.
func (r *Reconciler) creditDeposit(ctx context.Context, tx *domain.NodeTransaction) error {
	if tx.AmountSubunits <= 0 {
		return nil
	}
	if tx.Memo == "" {
		r.log.Warn().Str("hash", tx.Hash).Msg("inbound transfer without memo, skipping")
		return nil
	}

	account, err := r.accountRepo.GetByDepositMemo(ctx, tx.Memo)
	if err != nil {
		return fmt.Errorf("resolve memo: %w", err)
	}
	if account == nil {
		r.log.Warn().Str("hash", tx.Hash).Str("memo", tx.Memo).Msg("inbound transfer with unknown memo, skipping")
		return nil
	}

	entry := domain.NewLedgerEntry(account.UserID, domain.EntryKindDeposit, domain.CurrencyCoin, tx.AmountSubunits, tx.Hash)
	_, applied, err := r.wallet.Apply(ctx, account.UserID, []domain.LedgerEntry{entry})
	if err != nil {
		return err
	}
	if applied {
		r.log.Info().
			Int64("user_id", account.UserID).
			Str("hash", tx.Hash).
			Int64("amount_subunits", tx.AmountSubunits).
			Msg("deposit credited")
	}
	return nil
}

// reconcileWithdrawals resolves SUBMITTED withdrawals older than the confirm
// timeout: ones whose memo shows up among outbound transfers are confirmed,
// the rest are failed and refunded.
func (r *Reconciler) reconcileWithdrawals(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.cfg.ConfirmTimeout)
	pending, err := r.withdrawalRepo.ListSubmittedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list pending withdrawals: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	transfers, err := r.node.GetTransactions(ctx, r.operatorAddr, 0)
	if err != nil {
		return fmt.Errorf("fetch transfers: %w", err)
	}
	outboundByMemo := make(map[string]*domain.NodeTransaction, len(transfers))
	for i := range transfers {
		if transfers[i].Direction == domain.TransferOut && transfers[i].Memo != "" {
			outboundByMemo[transfers[i].Memo] = &transfers[i]
		}
	}

	for i := range pending {
		w := &pending[i]
		if tx, ok := outboundByMemo[w.ID.String()]; ok {
			if err := r.withdrawalRepo.UpdateStatus(ctx, w.ID, domain.WithdrawalStatusConfirmed, &tx.Hash); err != nil {
				return fmt.Errorf("confirm withdrawal %s: %w", w.ID, err)
			}
			r.log.Info().Str("withdrawal_id", w.ID.String()).Str("tx_hash", tx.Hash).Msg("ambiguous withdrawal confirmed on ledger")
			continue
		}

		if err := r.failAndRefund(ctx, w); err != nil {
			return fmt.Errorf("fail withdrawal %s: %w", w.ID, err)
		}
		r.log.Warn().Str("withdrawal_id", w.ID.String()).Msg("withdrawal never reached the ledger, failed and refunded")
	}
	return nil
}

func (r *Reconciler) failAndRefund(ctx context.Context, w *domain.PendingWithdrawal) error {
	if err := r.withdrawalRepo.UpdateStatus(ctx, w.ID, domain.WithdrawalStatusFailed, nil); err != nil {
		return err
	}
	refund := domain.NewLedgerEntry(w.UserID, domain.EntryKindWithdrawalFailedRefund, domain.CurrencyCoin, w.AmountSubunits, w.ID.String())
	_, _, err := r.wallet.Apply(ctx, w.UserID, []domain.LedgerEntry{refund})
	return err
}
