package claims

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidAddress      = errors.New("invalid wallet address")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrUpstream            = errors.New("balance lookup failed")
	ErrNotFound            = errors.New("claim code not found")
	ErrAlreadyUsed         = errors.New("claim code already used")
	ErrExpired             = errors.New("claim code expired")
)

// InsufficientBalanceError reports the balance observed during the check.
type InsufficientBalanceError struct {
	Balance decimal.Decimal
	Minimum decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: have %s, need %s", ErrInsufficientBalance, e.Balance, e.Minimum)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
