package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrInsufficientFunds is returned when a balance adjustment would overdraw.
var ErrInsufficientFunds = errors.New("storage: insufficient funds")

// ErrConflict is returned when an insert collides with a uniqueness rule,
// such as a second outstanding trade proposal from the same player.
var ErrConflict = errors.New("storage: conflict")

// ErrQuotaExhausted is returned when a daily-limited action has no quota left.
var ErrQuotaExhausted = errors.New("storage: daily quota exhausted")

// ErrStockChanged is returned when a trade settlement finds that a party no
// longer holds the copy it committed to the trade.
var ErrStockChanged = errors.New("storage: stock changed")
