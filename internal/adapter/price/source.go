package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"coin-wallet-core/config"
	"coin-wallet-core/internal/core/domain"

	"github.com/rs/zerolog"
)

// HTTPSource fetches spot quotes from an external price provider.
type HTTPSource struct {
	quoteURL   string
	pair       string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewHTTPSource(cfg config.PriceConfig, log zerolog.Logger) *HTTPSource {
	return &HTTPSource{
		quoteURL:   cfg.QuoteURL,
		pair:       cfg.Pair,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		log:        log,
	}
}

type quotePayload struct {
	Pair  string `json:"pair"`
	Price string `json:"price"`
}

// FetchQuote performs one synchronous quote fetch. The price is parsed as an
// exact rational; a quote that cannot be parsed is an error, never a zero rate.
func (s *HTTPSource) FetchQuote(ctx context.Context) (*domain.PriceQuote, error) {
	u := s.quoteURL + "?pair=" + url.QueryEscape(s.pair)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("price provider returned %d: %s", resp.StatusCode, body)
	}

	var payload quotePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed quote response: %w", err)
	}
	if payload.Pair != "" && payload.Pair != s.pair {
		return nil, fmt.Errorf("quote pair mismatch: want %s, got %s", s.pair, payload.Pair)
	}

	rate, err := domain.ParseRate(payload.Price)
	if err != nil {
		return nil, fmt.Errorf("parse quote price %q: %w", payload.Price, err)
	}

	return &domain.PriceQuote{
		Rate:      rate,
		RateText:  payload.Price,
		FetchedAt: time.Now(),
		Source:    s.quoteURL,
	}, nil
}
