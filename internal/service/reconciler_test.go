package service

import (
	"context"
	"testing"
	"time"

	"coin-wallet-core/config"
	"coin-wallet-core/internal/core/domain"
	"coin-wallet-core/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type reconcilerTestDeps struct {
	rec            *Reconciler
	node           *mocks.MockNodeClient
	wallet         *mocks.MockWalletService
	accountRepo    *mocks.MockAccountRepository
	cursorRepo     *mocks.MockCursorRepository
	withdrawalRepo *mocks.MockWithdrawalRepository
	ctrl           *gomock.Controller
}

func setupReconciler(t *testing.T) *reconcilerTestDeps {
	ctrl := gomock.NewController(t)
	d := &reconcilerTestDeps{
		node:           mocks.NewMockNodeClient(ctrl),
		wallet:         mocks.NewMockWalletService(ctrl),
		accountRepo:    mocks.NewMockAccountRepository(ctrl),
		cursorRepo:     mocks.NewMockCursorRepository(ctrl),
		withdrawalRepo: mocks.NewMockWithdrawalRepository(ctrl),
		ctrl:           ctrl,
	}
	d.rec = NewReconciler(
		d.node, d.wallet, d.accountRepo, d.cursorRepo, d.withdrawalRepo,
		config.ReconcilerConfig{Interval: time.Minute, ConfirmTimeout: 15 * time.Minute},
		operatorAddr,
		zerolog.Nop(),
	)
	return d
}

func TestReconciler_DepositsCreditedAndCursorAdvanced(t *testing.T) {
	d := setupReconciler(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	memo := "memo-u9"

	d.cursorRepo.EXPECT().Get(ctx, operatorAddr).Return(uint64(5), nil)
	d.node.EXPECT().GetTransactions(ctx, operatorAddr, uint64(5)).Return([]domain.NodeTransaction{
		{Hash: "h6", Sequence: 6, AmountSubunits: 100, Memo: memo, Direction: domain.TransferIn},
		{Hash: "h7", Sequence: 7, AmountSubunits: 50, Memo: "other", Direction: domain.TransferOut},
	}, nil)
	d.accountRepo.EXPECT().GetByDepositMemo(ctx, memo).Return(testAccount(9, 0, 0), nil)

	gomock.InOrder(
		d.wallet.EXPECT().Apply(ctx, int64(9), gomock.Any()).DoAndReturn(
			func(_ context.Context, _ int64, entries []domain.LedgerEntry) (*domain.Account, bool, error) {
				require.Len(t, entries, 1)
				assert.Equal(t, domain.EntryKindDeposit, entries[0].Kind)
				assert.Equal(t, int64(100), entries[0].Delta)
				assert.Equal(t, "h6", entries[0].ExternalRef)
				return testAccount(9, 0, 100), true, nil
			}),
		// Cursor moves only after the credit committed.
		d.cursorRepo.EXPECT().Advance(ctx, operatorAddr, uint64(6)).Return(nil),
		d.cursorRepo.EXPECT().Advance(ctx, operatorAddr, uint64(7)).Return(nil),
	)

	require.NoError(t, d.rec.reconcileDeposits(ctx))
}

func TestReconciler_UnknownMemoSkippedButAdvanced(t *testing.T) {
	d := setupReconciler(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.cursorRepo.EXPECT().Get(ctx, operatorAddr).Return(uint64(0), nil)
	d.node.EXPECT().GetTransactions(ctx, operatorAddr, uint64(0)).Return([]domain.NodeTransaction{
		{Hash: "h1", Sequence: 1, AmountSubunits: 100, Memo: "nobody", Direction: domain.TransferIn},
		{Hash: "h2", Sequence: 2, AmountSubunits: 100, Memo: "", Direction: domain.TransferIn},
	}, nil)
	d.accountRepo.EXPECT().GetByDepositMemo(ctx, "nobody").Return(nil, nil)
	d.cursorRepo.EXPECT().Advance(ctx, operatorAddr, uint64(1)).Return(nil)
	d.cursorRepo.EXPECT().Advance(ctx, operatorAddr, uint64(2)).Return(nil)

	require.NoError(t, d.rec.reconcileDeposits(ctx))
}

func TestReconciler_CreditFailureStopsWithoutAdvancing(t *testing.T) {
	d := setupReconciler(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	memo := "memo-u9"
	d.cursorRepo.EXPECT().Get(ctx, operatorAddr).Return(uint64(0), nil)
	d.node.EXPECT().GetTransactions(ctx, operatorAddr, uint64(0)).Return([]domain.NodeTransaction{
		{Hash: "h1", Sequence: 1, AmountSubunits: 100, Memo: memo, Direction: domain.TransferIn},
		{Hash: "h2", Sequence: 2, AmountSubunits: 200, Memo: memo, Direction: domain.TransferIn},
	}, nil)
	d.accountRepo.EXPECT().GetByDepositMemo(ctx, memo).Return(testAccount(9, 0, 0), nil)
	d.wallet.EXPECT().Apply(ctx, int64(9), gomock.Any()).Return(nil, false, assert.AnError)
	// No Advance: h1 is replayed next cycle and the idempotent ledger absorbs it.

	assert.Error(t, d.rec.reconcileDeposits(ctx))
}

func TestReconciler_ReplayedDepositCreditsOnce(t *testing.T) {
	d := setupReconciler(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	memo := "memo-u9"
	d.cursorRepo.EXPECT().Get(ctx, operatorAddr).Return(uint64(0), nil)
	d.node.EXPECT().GetTransactions(ctx, operatorAddr, uint64(0)).Return([]domain.NodeTransaction{
		{Hash: "h1", Sequence: 1, AmountSubunits: 100, Memo: memo, Direction: domain.TransferIn},
	}, nil)
	d.accountRepo.EXPECT().GetByDepositMemo(ctx, memo).Return(testAccount(9, 0, 100), nil)
	// Apply reports a duplicate; the cycle still advances past it.
	d.wallet.EXPECT().Apply(ctx, int64(9), gomock.Any()).Return(testAccount(9, 0, 100), false, nil)
	d.cursorRepo.EXPECT().Advance(ctx, operatorAddr, uint64(1)).Return(nil)

	require.NoError(t, d.rec.reconcileDeposits(ctx))
}

func TestReconciler_AmbiguousWithdrawalConfirmed(t *testing.T) {
	d := setupReconciler(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	w := domain.PendingWithdrawal{
		ID:             uuid.New(),
		UserID:         7,
		AmountSubunits: 400,
		Status:         domain.WithdrawalStatusSubmitted,
	}

	d.withdrawalRepo.EXPECT().ListSubmittedBefore(ctx, gomock.Any()).Return([]domain.PendingWithdrawal{w}, nil)
	d.node.EXPECT().GetTransactions(ctx, operatorAddr, uint64(0)).Return([]domain.NodeTransaction{
		{Hash: "out-1", Sequence: 9, AmountSubunits: 400, Memo: w.ID.String(), Direction: domain.TransferOut},
	}, nil)
	d.withdrawalRepo.EXPECT().UpdateStatus(ctx, w.ID, domain.WithdrawalStatusConfirmed, gomock.Any()).Return(nil)

	require.NoError(t, d.rec.reconcileWithdrawals(ctx))
}

func TestReconciler_TimedOutWithdrawalFailedAndRefunded(t *testing.T) {
	d := setupReconciler(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	w := domain.PendingWithdrawal{
		ID:             uuid.New(),
		UserID:         7,
		AmountSubunits: 400,
		Status:         domain.WithdrawalStatusSubmitted,
	}

	d.withdrawalRepo.EXPECT().ListSubmittedBefore(ctx, gomock.Any()).Return([]domain.PendingWithdrawal{w}, nil)
	d.node.EXPECT().GetTransactions(ctx, operatorAddr, uint64(0)).Return(nil, nil)
	d.withdrawalRepo.EXPECT().UpdateStatus(ctx, w.ID, domain.WithdrawalStatusFailed, nil).Return(nil)
	d.wallet.EXPECT().Apply(ctx, int64(7), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ int64, entries []domain.LedgerEntry) (*domain.Account, bool, error) {
			require.Len(t, entries, 1)
			assert.Equal(t, domain.EntryKindWithdrawalFailedRefund, entries[0].Kind)
			assert.Equal(t, int64(400), entries[0].Delta)
			assert.Equal(t, w.ID.String(), entries[0].ExternalRef)
			return testAccount(7, 0, 1000), true, nil
		})

	require.NoError(t, d.rec.reconcileWithdrawals(ctx))
}

func TestReconciler_NoPendingWithdrawalsSkipsNodeCall(t *testing.T) {
	d := setupReconciler(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.withdrawalRepo.EXPECT().ListSubmittedBefore(ctx, gomock.Any()).Return(nil, nil)

	require.NoError(t, d.rec.reconcileWithdrawals(ctx))
}

func TestReconciler_RunCompletesInFlightCycleOnCancel(t *testing.T) {
	d := setupReconciler(t)
	defer d.ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	memo := "memo-u9"

	// Shutdown arrives while the transfer fetch is in flight. The whole
	// cycle still finishes: the credit is applied, the cursor advances and
	// the withdrawal pass runs before Run returns.
	var cycleCtxErr error
	d.cursorRepo.EXPECT().Get(gomock.Any(), operatorAddr).Return(uint64(0), nil)
	d.node.EXPECT().GetTransactions(gomock.Any(), operatorAddr, uint64(0)).DoAndReturn(
		func(callCtx context.Context, _ string, _ uint64) ([]domain.NodeTransaction, error) {
			cancel()
			cycleCtxErr = callCtx.Err()
			return []domain.NodeTransaction{
				{Hash: "h1", Sequence: 1, AmountSubunits: 100, Memo: memo, Direction: domain.TransferIn},
			}, nil
		})
	d.accountRepo.EXPECT().GetByDepositMemo(gomock.Any(), memo).Return(testAccount(9, 0, 0), nil)
	d.wallet.EXPECT().Apply(gomock.Any(), int64(9), gomock.Any()).Return(testAccount(9, 0, 100), true, nil)
	d.cursorRepo.EXPECT().Advance(gomock.Any(), operatorAddr, uint64(1)).Return(nil)
	d.withdrawalRepo.EXPECT().ListSubmittedBefore(gomock.Any(), gomock.Any()).Return(nil, nil)

	done := make(chan struct{})
	go func() {
		d.rec.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after cancel")
	}
	assert.NoError(t, cycleCtxErr)
}

func TestReconciler_RunStopsOnCancel(t *testing.T) {
	d := setupReconciler(t)
	defer d.ctrl.Finish()

	d.rec.cfg.Interval = 5 * time.Millisecond
	d.cursorRepo.EXPECT().Get(gomock.Any(), operatorAddr).Return(uint64(0), nil).MinTimes(1)
	d.node.EXPECT().GetTransactions(gomock.Any(), operatorAddr, uint64(0)).Return(nil, nil).MinTimes(1)
	d.withdrawalRepo.EXPECT().ListSubmittedBefore(gomock.Any(), gomock.Any()).Return(nil, nil).MinTimes(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.rec.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after cancel")
	}
}
