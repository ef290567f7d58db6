package handler

import (
	"strconv"
	"time"

	"coin-wallet-core/internal/adapter/http/dto"
	"coin-wallet-core/internal/core/domain"
	"coin-wallet-core/internal/core/ports"
	"coin-wallet-core/pkg/apperror"
	"coin-wallet-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles account, balance, memo, and history endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// userIDParam parses the :user_id path segment.
func userIDParam(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		response.Error(c, apperror.Validation("user_id must be a positive integer"))
		return 0, false
	}
	return userID, true
}

// EnsureAccount handles POST /api/v1/users/:user_id/account.
func (h *WalletHandler) EnsureAccount(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	account, err := h.walletSvc.EnsureAccount(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.FromAccount(account))
}

// GetAccount handles GET /api/v1/users/:user_id/account.
func (h *WalletHandler) GetAccount(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	account, err := h.walletSvc.GetAccount(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromAccount(account))
}

// GetBalance handles GET /api/v1/users/:user_id/balances/:currency.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	currency := domain.Currency(c.Param("currency"))
	if currency != domain.CurrencyFiat && currency != domain.CurrencyCoin {
		response.Error(c, apperror.Validation("currency must be FIAT or COIN"))
		return
	}

	balance, err := h.walletSvc.GetBalance(c.Request.Context(), userID, currency)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.BalanceResponse{Currency: string(currency), Balance: balance})
}

// EnsureDepositMemo handles POST /api/v1/users/:user_id/deposit-memo.
func (h *WalletHandler) EnsureDepositMemo(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	memo, err := h.walletSvc.EnsureDepositMemo(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.DepositMemoResponse{Memo: memo})
}

// History handles GET /api/v1/users/:user_id/history.
func (h *WalletHandler) History(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.walletSvc.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, dto.LedgerEntryResponse{
			ID:          entries[i].ID.String(),
			Kind:        string(entries[i].Kind),
			Currency:    string(entries[i].Currency),
			Delta:       entries[i].Delta,
			ExternalRef: entries[i].ExternalRef,
			CreatedAt:   entries[i].CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	response.OK(c, dto.HistoryResponse{Entries: out, Limit: limit, Offset: offset})
}
