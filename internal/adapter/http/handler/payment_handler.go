package handler

import (
	"coin-wallet-core/internal/adapter/http/dto"
	"coin-wallet-core/internal/core/ports"
	"coin-wallet-core/pkg/apperror"
	"coin-wallet-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles swap and coin-payment endpoints.
type PaymentHandler struct {
	swapSvc    ports.SwapService
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(swapSvc ports.SwapService, paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{swapSvc: swapSvc, paymentSvc: paymentSvc}
}

// Swap handles POST /api/v1/users/:user_id/swaps.
func (h *PaymentHandler) Swap(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var req dto.SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.swapSvc.Swap(c.Request.Context(), ports.SwapRequest{
		UserID:     userID,
		Direction:  ports.SwapDirection(req.Direction),
		Amount:     req.Amount,
		RequestRef: req.RequestRef,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Duplicate {
		response.OK(c, dto.FromSwapResult(result))
		return
	}
	response.Created(c, dto.FromSwapResult(result))
}

// Pay handles POST /api/v1/users/:user_id/payments.
func (h *PaymentHandler) Pay(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var req dto.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.paymentSvc.PayWithCoin(c.Request.Context(), ports.PaymentRequest{
		UserID:         userID,
		OrderID:        req.OrderID,
		AmountSubunits: req.AmountSubunits,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Duplicate {
		response.OK(c, dto.FromPaymentResult(result))
		return
	}
	response.Created(c, dto.FromPaymentResult(result))
}
