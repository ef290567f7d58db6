package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"coin-wallet-core/config"
	httpHandler "coin-wallet-core/internal/adapter/http/handler"
	nodeClient "coin-wallet-core/internal/adapter/node"
	"coin-wallet-core/internal/adapter/price"
	pgStorage "coin-wallet-core/internal/adapter/storage/postgres"
	redisStorage "coin-wallet-core/internal/adapter/storage/redis"
	"coin-wallet-core/internal/core/ports"
	"coin-wallet-core/internal/service"
	"coin-wallet-core/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Coin Wallet Core")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	withdrawalRepo := pgStorage.NewWithdrawalRepo(pool)
	cursorRepo := pgStorage.NewCursorRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	entryCache := redisStorage.NewEntryCache(rdb)

	// Initialize outbound adapters
	node, err := nodeClient.New(cfg.Nodes, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize node client")
	}
	priceSource := price.NewHTTPSource(cfg.Price, log)

	// Initialize business services
	oracle := service.NewPriceOracle(priceSource, cfg.Price, log)
	walletSvc := service.NewWalletService(accountRepo, ledgerRepo, entryCache, transactor, cfg.Wallet, log)
	swapSvc := service.NewSwapService(walletSvc, ledgerRepo, oracle, cfg.Wallet, log)
	paymentSvc := service.NewPaymentService(walletSvc, ledgerRepo, oracle, log)
	withdrawalSvc := service.NewWithdrawalService(
		accountRepo,
		ledgerRepo,
		withdrawalRepo,
		transactor,
		walletSvc,
		node,
		cfg.Wallet,
		log,
	)
	reconciler := service.NewReconciler(
		node,
		walletSvc,
		accountRepo,
		cursorRepo,
		withdrawalRepo,
		cfg.Reconciler,
		cfg.Wallet.OperatorAddress,
		log,
	)

	// Background loops
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	var bg sync.WaitGroup
	bg.Add(2)
	go func() {
		defer bg.Done()
		oracle.Run(bgCtx)
	}()
	go func() {
		defer bg.Done()
		reconciler.Run(bgCtx)
	}()

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:       walletSvc,
		SwapSvc:         swapSvc,
		PaymentSvc:      paymentSvc,
		WithdrawalSvc:   withdrawalSvc,
		Oracle:          oracle,
		Node:            node,
		Pair:            cfg.Price.Pair,
		OperatorAddress: cfg.Wallet.OperatorAddress,
		HealthCheckers:  []ports.HealthChecker{pgHealth, redisHealth, node},
		Logger:          log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	bgCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Wait for the oracle and reconciler loops; an in-flight reconciliation
	// cycle runs to completion before we exit.
	bg.Wait()

	log.Info().Msg("Server exited")
}
