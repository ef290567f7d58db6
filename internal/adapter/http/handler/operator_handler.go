package handler

import (
	"time"

	"coin-wallet-core/internal/adapter/http/dto"
	"coin-wallet-core/internal/core/ports"
	"coin-wallet-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// OperatorHandler exposes read-only operator views: the current exchange rate
// and the hot wallet's on-ledger balance.
type OperatorHandler struct {
	oracle       ports.PriceOracle
	node         ports.NodeClient
	pair         string
	operatorAddr string
}

// NewOperatorHandler creates a new OperatorHandler.
func NewOperatorHandler(oracle ports.PriceOracle, node ports.NodeClient, pair, operatorAddr string) *OperatorHandler {
	return &OperatorHandler{
		oracle:       oracle,
		node:         node,
		pair:         pair,
		operatorAddr: operatorAddr,
	}
}

// GetRate handles GET /api/v1/rate.
func (h *OperatorHandler) GetRate(c *gin.Context) {
	quote, err := h.oracle.CurrentRate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.RateResponse{
		Pair:      h.pair,
		Rate:      quote.RateText,
		FetchedAt: quote.FetchedAt.UTC().Format(time.RFC3339),
	})
}

// GetOperatorBalance handles GET /api/v1/operator/balance.
func (h *OperatorHandler) GetOperatorBalance(c *gin.Context) {
	balance, err := h.node.GetBalance(c.Request.Context(), h.operatorAddr)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.OperatorBalanceResponse{
		Address:         h.operatorAddr,
		BalanceSubunits: balance,
	})
}
