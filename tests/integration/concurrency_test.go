package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentPayments fires 10 concurrent payments that together exactly
// drain the coin balance. The transactor serializes balance mutations the way
// SELECT FOR UPDATE does against real PostgreSQL, so every payment must
// succeed and the final balance must be exactly zero.
func TestConcurrentPayments(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	app.createFundedUser(t, 1, 1_000_000)

	concurrency := 10
	paymentAmount := int64(100_000)

	var wg sync.WaitGroup
	var successCount atomic.Int64
	var failCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			body := fmt.Sprintf(`{"order_id":"CONCURRENT-PAY-%d","amount_subunits":%d}`, idx, paymentAmount)
			req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/users/1/payments", bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")

			r, err := http.DefaultClient.Do(req)
			if err != nil {
				failCount.Add(1)
				return
			}
			defer r.Body.Close()
			_, _ = io.ReadAll(r.Body)

			if r.StatusCode == http.StatusCreated {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	t.Logf("Concurrent payments: %d succeeded, %d failed (out of %d)", successCount.Load(), failCount.Load(), concurrency)
	assert.Equal(t, int64(concurrency), successCount.Load(), "total requested exactly equals the balance")

	code, body := app.get(t, "/api/v1/users/1/balances/COIN")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), data(t, body)["balance"], "coin balance must be exactly drained")

	// Each payment of 100,000 subunits at rate 0.01 is 1,000 cents with 10%
	// cashback, 100 cents per payment.
	code, body = app.get(t, "/api/v1/users/1/balances/FIAT")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(concurrency)*100, data(t, body)["balance"])
}

// TestConcurrentPayments_Overspend requests twice the available balance across
// concurrent payments. Exactly half must succeed and the balance must never
// go negative.
func TestConcurrentPayments_Overspend(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	app.createFundedUser(t, 1, 500_000)

	concurrency := 10
	paymentAmount := int64(100_000)

	var wg sync.WaitGroup
	var successCount atomic.Int64
	var insufficientCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			body := fmt.Sprintf(`{"order_id":"OVERSPEND-PAY-%d","amount_subunits":%d}`, idx, paymentAmount)
			req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/users/1/payments", bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")

			r, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			defer r.Body.Close()
			_, _ = io.ReadAll(r.Body)

			switch r.StatusCode {
			case http.StatusCreated:
				successCount.Add(1)
			case http.StatusPaymentRequired:
				insufficientCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	t.Logf("Overspend test: %d succeeded, %d rejected (out of %d)", successCount.Load(), insufficientCount.Load(), concurrency)
	assert.Equal(t, int64(5), successCount.Load())
	assert.Equal(t, int64(5), insufficientCount.Load())

	code, body := app.get(t, "/api/v1/users/1/balances/COIN")
	require.Equal(t, http.StatusOK, code)
	assert.GreaterOrEqual(t, data(t, body)["balance"].(float64), float64(0), "balance must never go negative")
	assert.Equal(t, float64(0), data(t, body)["balance"])
}

// TestConcurrentSwapIdempotency fires 20 concurrent swaps sharing one
// request_ref. Exactly one application must happen; every response reports
// the same executed amounts.
func TestConcurrentSwapIdempotency(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	app.createFundedUser(t, 1, 2_000_000)

	concurrency := 20
	body := `{"direction":"COIN_TO_FIAT","amount":1000000,"request_ref":"IDEMPOTENT-SWAP-001"}`

	var wg sync.WaitGroup
	var successCount atomic.Int64
	debits := make([]int64, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/users/1/swaps", bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")

			r, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			defer r.Body.Close()

			if r.StatusCode == http.StatusCreated || r.StatusCode == http.StatusOK {
				successCount.Add(1)
				var result struct {
					Data struct {
						Debited int64 `json:"debited"`
					} `json:"data"`
				}
				_ = json.NewDecoder(r.Body).Decode(&result)
				debits[idx] = result.Data.Debited
			}
		}(i)
	}

	wg.Wait()

	t.Logf("Idempotent swaps: %d succeeded (out of %d)", successCount.Load(), concurrency)
	assert.Equal(t, int64(concurrency), successCount.Load(), "every idempotent retry should report the swap outcome")

	for idx, debited := range debits {
		assert.Equal(t, int64(1_000_000), debited, "request %d reported a different executed amount", idx)
	}

	// The swap applied exactly once: 2,000,000 - 1,000,000 coin, +10,000 fiat
	code, respBody := app.get(t, "/api/v1/users/1/balances/COIN")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1_000_000), data(t, respBody)["balance"])

	code, respBody = app.get(t, "/api/v1/users/1/balances/FIAT")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(10_000), data(t, respBody)["balance"])
}

// TestConcurrentDepositReconciliation runs reconciliation cycles for the same
// transfer batch from several goroutines. The idempotent ledger must credit
// each deposit exactly once.
func TestConcurrentDepositReconciliation(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	code, _ := app.post(t, "/api/v1/users/1/account", "")
	require.Equal(t, http.StatusCreated, code)
	code, body := app.post(t, "/api/v1/users/1/deposit-memo", "")
	require.Equal(t, http.StatusOK, code)
	memo := data(t, body)["memo"].(string)

	deposits := 5
	for i := 0; i < deposits; i++ {
		app.node.seedDeposit(10_000, memo)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.reconciler.RunCycle(context.Background())
		}()
	}
	wg.Wait()

	code, body = app.get(t, "/api/v1/users/1/balances/COIN")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(deposits)*10_000, data(t, body)["balance"])
}
