package handler

import (
	"coin-wallet-core/internal/adapter/http/middleware"
	"coin-wallet-core/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc       ports.WalletService
	SwapSvc         ports.SwapService
	PaymentSvc      ports.PaymentService
	WithdrawalSvc   ports.WithdrawalService
	Oracle          ports.PriceOracle
	Node            ports.NodeClient
	Pair            string
	OperatorAddress string
	HealthCheckers  []ports.HealthChecker
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// API v1 routes
	v1 := r.Group("/api/v1")

	walletHandler := NewWalletHandler(deps.WalletSvc)
	paymentHandler := NewPaymentHandler(deps.SwapSvc, deps.PaymentSvc)
	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc)
	operatorHandler := NewOperatorHandler(deps.Oracle, deps.Node, deps.Pair, deps.OperatorAddress)

	users := v1.Group("/users/:user_id")
	{
		users.POST("/account", walletHandler.EnsureAccount)
		users.GET("/account", walletHandler.GetAccount)
		users.GET("/balances/:currency", walletHandler.GetBalance)
		users.POST("/deposit-memo", walletHandler.EnsureDepositMemo)
		users.GET("/history", walletHandler.History)
		users.POST("/swaps", paymentHandler.Swap)
		users.POST("/payments", paymentHandler.Pay)
		users.POST("/withdrawals", withdrawalHandler.Withdraw)
	}

	v1.GET("/withdrawals/:id", withdrawalHandler.GetWithdrawal)
	v1.GET("/rate", operatorHandler.GetRate)
	v1.GET("/operator/balance", operatorHandler.GetOperatorBalance)

	return r
}
