package service

import (
	"context"
	"sync"
	"time"

	"coin-wallet-core/config"
	"coin-wallet-core/internal/core/domain"
	"coin-wallet-core/internal/core/ports"
	"coin-wallet-core/pkg/apperror"

	"github.com/rs/zerolog"
)

// PriceOracleImpl implements ports.PriceOracle. It keeps the last good quote
// in memory: fresh quotes are served from cache, quotes past the freshness
// window trigger a synchronous refetch, and a quote past the hard staleness
// ceiling is never served. The cache is intentionally not persisted.
type PriceOracleImpl struct {
	source ports.PriceSource
	cfg    config.PriceConfig
	log    zerolog.Logger

	mu    sync.RWMutex
	quote *domain.PriceQuote
}

// NewPriceOracle creates a new PriceOracleImpl.
func NewPriceOracle(source ports.PriceSource, cfg config.PriceConfig, log zerolog.Logger) *PriceOracleImpl {
	return &PriceOracleImpl{
		source: source,
		cfg:    cfg,
		log:    log,
	}
}

// CurrentRate returns a usable quote or ErrPriceUnavailable.
func (o *PriceOracleImpl) CurrentRate(ctx context.Context) (*domain.PriceQuote, error) {
	now := time.Now()

	o.mu.RLock()
	cached := o.quote
	o.mu.RUnlock()

	if cached != nil && cached.Age(now) <= o.cfg.FreshFor {
		return cached, nil
	}

	fresh, err := o.refresh(ctx)
	if err == nil {
		return fresh, nil
	}

	// Refetch failed: a quote inside the staleness ceiling is still usable.
	if cached != nil && cached.Age(now) <= o.cfg.StaleCeiling {
		o.log.Warn().Err(err).Dur("age", cached.Age(now)).Msg("quote refresh failed, serving stale quote")
		return cached, nil
	}
	return nil, apperror.ErrPriceUnavailable(err)
}

// refresh fetches a quote and stores it on success.
func (o *PriceOracleImpl) refresh(ctx context.Context) (*domain.PriceQuote, error) {
	quote, err := o.source.FetchQuote(ctx)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.quote = quote
	o.mu.Unlock()

	o.log.Debug().Str("rate", quote.RateText).Msg("quote refreshed")
	return quote, nil
}

// Run refreshes the quote in the background until ctx is cancelled, keeping
// the cache warm so request paths rarely pay a synchronous fetch.
func (o *PriceOracleImpl) Run(ctx context.Context) {
	interval := o.cfg.RefreshInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	if _, err := o.refresh(ctx); err != nil {
		o.log.Warn().Err(err).Msg("initial quote fetch failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.log.Info().Msg("price oracle stopped")
			return
		case <-ticker.C:
			if _, err := o.refresh(ctx); err != nil {
				o.log.Warn().Err(err).Msg("background quote refresh failed")
			}
		}
	}
}
