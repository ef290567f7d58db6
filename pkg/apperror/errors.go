package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger Node Access (NODE) ----

// ErrNodesUnavailable means every configured ledger node failed the call.
// Retryable by the caller after backoff.
func ErrNodesUnavailable(err error) *AppError {
	return Wrap("NODE_001", "All ledger nodes unavailable", http.StatusServiceUnavailable, err)
}

// ErrAmbiguousSubmission means a submit may or may not have been accepted.
// Never auto-retried; requires reconciliation through a subsequent read.
func ErrAmbiguousSubmission(err error) *AppError {
	return Wrap("NODE_002", "Submission outcome unknown, reconciliation required", http.StatusBadGateway, err)
}

// ErrNodeRejected means a node explicitly rejected the submission.
func ErrNodeRejected(err error) *AppError {
	return Wrap("NODE_003", "Ledger node rejected the submission", http.StatusUnprocessableEntity, err)
}

// ---- Price Oracle (PRICE) ----

func ErrPriceUnavailable(err error) *AppError {
	return Wrap("PRICE_001", "Exchange rate too stale or unavailable", http.StatusServiceUnavailable, err)
}

// ---- Wallet Business Logic (PAY) ----

func ErrInsufficientBalance() *AppError {
	return New("PAY_001", "Insufficient balance", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

func ErrSwapRejected(guard string) *AppError {
	return New("PAY_003", fmt.Sprintf("Swap rejected: %s", guard), http.StatusUnprocessableEntity)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Withdrawals (WDR) ----

func ErrInvalidAddress() *AppError {
	return New("WDR_001", "Invalid destination address", http.StatusBadRequest)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New("PAY_002", message, http.StatusBadRequest)
}
