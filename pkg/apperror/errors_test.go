package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("PAY_001", "Insufficient balance", http.StatusPaymentRequired),
			expected: "[PAY_001] Insufficient balance",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("PAY_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestNodeErrors(t *testing.T) {
	inner := fmt.Errorf("dial tcp: connection refused")
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"NodesUnavailable", ErrNodesUnavailable(inner), "NODE_001", 503},
		{"AmbiguousSubmission", ErrAmbiguousSubmission(inner), "NODE_002", 502},
		{"NodeRejected", ErrNodeRejected(inner), "NODE_003", 422},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.True(t, errors.Is(tt.err, inner))
		})
	}
}

func TestWalletErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InsufficientBalance", ErrInsufficientBalance(), "PAY_001", 402},
		{"InvalidAmount", ErrInvalidAmount(), "PAY_002", 400},
		{"SwapRejected", ErrSwapRejected("below minimum amount"), "PAY_003", 422},
		{"NotFound", ErrNotFound("Account"), "PAY_004", 404},
		{"InvalidAddress", ErrInvalidAddress(), "WDR_001", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSwapRejected_NamesGuard(t *testing.T) {
	err := ErrSwapRejected("rate too stale")
	assert.Contains(t, err.Message, "rate too stale")
}

func TestPriceUnavailable(t *testing.T) {
	inner := fmt.Errorf("quote fetched 12m ago")
	err := ErrPriceUnavailable(inner)
	assert.Equal(t, "PRICE_001", err.Code)
	assert.Equal(t, 503, err.HTTPStatus)
	assert.True(t, errors.Is(err, inner))
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("Account")
	assert.Contains(t, err.Message, "Account")
	assert.Equal(t, "PAY_004", err.Code)
}
