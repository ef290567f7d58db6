package node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"coin-wallet-core/config"
	"coin-wallet-core/internal/core/domain"
	"coin-wallet-core/pkg/apperror"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client implements ports.NodeClient over N redundant ledger-node HTTP
// endpoints. Health state is shared by all callers: a failing node enters a
// cool-down window and rotation resumes from the last node that answered.
type Client struct {
	endpoints  []string
	httpClient *http.Client
	cooldown   time.Duration
	limiter    *rate.Limiter
	log        zerolog.Logger

	mu             sync.Mutex
	unhealthyUntil []time.Time
	lastHealthy    int
}

// New creates a failover client from the ordered endpoint list.
func New(cfg config.NodesConfig, log zerolog.Logger) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("no node endpoints configured")
	}
	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 10
	}
	return &Client{
		endpoints:      cfg.Endpoints,
		httpClient:     &http.Client{Timeout: cfg.RequestTimeout},
		cooldown:       cfg.Cooldown,
		limiter:        rate.NewLimiter(rate.Limit(rateLimit), 1),
		log:            log,
		unhealthyUntil: make([]time.Time, len(cfg.Endpoints)),
	}, nil
}

// candidates returns indexes of nodes currently outside their cool-down,
// rotated to start from the last known-healthy node.
func (c *Client) candidates() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	order := make([]int, 0, len(c.endpoints))
	for i := range c.endpoints {
		idx := (c.lastHealthy + i) % len(c.endpoints)
		if now.After(c.unhealthyUntil[idx]) {
			order = append(order, idx)
		}
	}
	return order
}

func (c *Client) markUnhealthy(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unhealthyUntil[idx] = time.Now().Add(c.cooldown)
	c.log.Warn().
		Str("endpoint", c.endpoints[idx]).
		Dur("cooldown", c.cooldown).
		Msg("node marked unhealthy")
}

func (c *Client) markHealthy(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastHealthy = idx
}

// query performs a side-effect-free read, failing over freely across nodes.
// Any network error, 5xx, or malformed body counts as a node failure.
func (c *Client) query(ctx context.Context, path string, params url.Values, out any) error {
	order := c.candidates()
	if len(order) == 0 {
		return apperror.ErrNodesUnavailable(fmt.Errorf("all %d nodes in cooldown", len(c.endpoints)))
	}

	var lastErr error
	for _, idx := range order {
		if err := c.limiter.Wait(ctx); err != nil {
			return apperror.ErrNodesUnavailable(err)
		}

		err := c.doQuery(ctx, c.endpoints[idx], path, params, out)
		if err == nil {
			c.markHealthy(idx)
			return nil
		}
		lastErr = err
		c.markUnhealthy(idx)
		c.log.Warn().Err(err).Str("endpoint", c.endpoints[idx]).Str("path", path).Msg("node query failed, trying next node")
	}
	return apperror.ErrNodesUnavailable(lastErr)
}

func (c *Client) doQuery(ctx context.Context, base, path string, params url.Values, out any) error {
	u := base + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed node response: %w", err)
	}
	return nil
}

// GetTransactions lists transfers touching address with sequence > sinceSequence.
func (c *Client) GetTransactions(ctx context.Context, address string, sinceSequence uint64) ([]domain.NodeTransaction, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("since", strconv.FormatUint(sinceSequence, 10))

	var body struct {
		Transfers []domain.NodeTransaction `json:"transfers"`
	}
	if err := c.query(ctx, "/v1/transfers", params, &body); err != nil {
		return nil, err
	}
	return body.Transfers, nil
}

// GetBalance returns the on-ledger balance of address in coin sub-units.
func (c *Client) GetBalance(ctx context.Context, address string) (int64, error) {
	params := url.Values{}
	params.Set("address", address)

	var body struct {
		BalanceSubunits int64 `json:"balance_subunits"`
	}
	if err := c.query(ctx, "/v1/balance", params, &body); err != nil {
		return 0, err
	}
	return body.BalanceSubunits, nil
}

// BroadcastSend submits an outbound transfer. Failover only happens on dial
// errors, where the request provably never reached a node. Once a request may
// have been received (timeout, 5xx, unparseable 2xx) the outcome is unknown
// and the caller gets AmbiguousSubmission: re-submitting could double-spend.
func (c *Client) BroadcastSend(ctx context.Context, from, to string, amountSubunits int64, memo string) (*domain.BroadcastResult, error) {
	payload, err := json.Marshal(map[string]any{
		"from":            from,
		"to":              to,
		"amount_subunits": amountSubunits,
		"memo":            memo,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal send request: %w", err))
	}

	order := c.candidates()
	if len(order) == 0 {
		return nil, apperror.ErrNodesUnavailable(fmt.Errorf("all %d nodes in cooldown", len(c.endpoints)))
	}

	var lastErr error
	for _, idx := range order {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apperror.ErrNodesUnavailable(err)
		}

		result, err := c.doSubmit(ctx, c.endpoints[idx], payload)
		if err == nil {
			c.markHealthy(idx)
			return result, nil
		}

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			// Definite rejection or ambiguous outcome: surface as-is,
			// never try another node. A 4xx rejection is an answer from a
			// live node, so only the ambiguous timeout/5xx cases cool down.
			if appErr.Code == "NODE_003" {
				c.markHealthy(idx)
			} else {
				c.markUnhealthy(idx)
			}
			return nil, err
		}

		// Dial failure: the request never left, safe to try the next node.
		lastErr = err
		c.markUnhealthy(idx)
		c.log.Warn().Err(err).Str("endpoint", c.endpoints[idx]).Msg("node unreachable for submit, trying next node")
	}
	return nil, apperror.ErrNodesUnavailable(lastErr)
}

// doSubmit returns a plain error only when the request provably never reached
// the node; anything past that point comes back as a typed AppError.
func (c *Client) doSubmit(ctx context.Context, base string, payload []byte) (*domain.BroadcastResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/send", bytes.NewReader(payload))
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isDialError(err) {
			return nil, err
		}
		return nil, apperror.ErrAmbiguousSubmission(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var body struct {
			TxHash string `json:"tx_hash"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, apperror.ErrAmbiguousSubmission(fmt.Errorf("malformed node response: %w", err))
		}
		return &domain.BroadcastResult{TxHash: body.TxHash}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperror.ErrNodeRejected(fmt.Errorf("node returned %d: %s", resp.StatusCode, body))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperror.ErrAmbiguousSubmission(fmt.Errorf("node returned %d: %s", resp.StatusCode, body))
	}
}

// isDialError reports whether the transport failed before sending anything.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// Ping implements ports.HealthChecker without a network round-trip: the
// client is degraded only while every node sits inside its cool-down window.
func (c *Client) Ping(ctx context.Context) error {
	if len(c.candidates()) == 0 {
		return fmt.Errorf("all %d nodes in cooldown", len(c.endpoints))
	}
	return nil
}

// Name implements ports.HealthChecker.
func (c *Client) Name() string {
	return "nodes"
}
