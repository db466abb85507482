package model

import "time"

// Role separates the two API principals: chat platform adapters playing the
// game on behalf of players, and operators administering rooms.
type Role string

const (
	RoleAdapter Role = "adapter"
	RoleAdmin   Role = "admin"
)

// Error codes returned in the standard error envelope.
const (
	ErrCodeInvalidInput      = "invalid_input"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeForbidden         = "forbidden"
	ErrCodeNotFound          = "not_found"
	ErrCodeConflict          = "conflict"
	ErrCodeTooLate           = "too_late"
	ErrCodeOnCooldown        = "on_cooldown"
	ErrCodeQuotaExhausted    = "quota_exhausted"
	ErrCodeStockChanged      = "stock_changed"
	ErrCodeInsufficientFunds = "insufficient_funds"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeInternalError     = "internal_error"
)

// APIResponse is the standard success envelope.
type APIResponse struct {
	Data any          `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ErrorDetail carries the machine-readable code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta is attached to every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}
