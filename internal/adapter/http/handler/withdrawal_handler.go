package handler

import (
	"coin-wallet-core/internal/adapter/http/dto"
	"coin-wallet-core/internal/core/ports"
	"coin-wallet-core/pkg/apperror"
	"coin-wallet-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// WithdrawalHandler handles outbound withdrawal endpoints.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc}
}

// Withdraw handles POST /api/v1/users/:user_id/withdrawals.
func (h *WithdrawalHandler) Withdraw(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	withdrawal, err := h.withdrawalSvc.Withdraw(c.Request.Context(), ports.WithdrawalRequest{
		UserID:             userID,
		DestinationAddress: req.DestinationAddress,
		AmountSubunits:     req.AmountSubunits,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.FromWithdrawal(withdrawal))
}

// GetWithdrawal handles GET /api/v1/withdrawals/:id.
func (h *WithdrawalHandler) GetWithdrawal(c *gin.Context) {
	withdrawal, err := h.withdrawalSvc.GetWithdrawal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromWithdrawal(withdrawal))
}
