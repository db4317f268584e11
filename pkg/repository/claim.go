package repository

import (
	"context"
	"errors"
	"time"

	"github.com/medreza/agt-claim-service/pkg/models"
)

var (
	ErrClaimNotFound    = errors.New("claim code not found")
	ErrClaimAlreadyUsed = errors.New("claim code already used")
	ErrClaimExpired     = errors.New("claim code expired")
)

// ClaimStore persists claim records keyed by code.
//
// MarkUsed is a compare-and-set: it flips used to true only when the record
// exists, is unused and has not expired at now. When it fails the error is
// ErrClaimNotFound, ErrClaimAlreadyUsed or ErrClaimExpired, checked in that
// order.
type ClaimStore interface {
	Insert(ctx context.Context, record models.ClaimRecord) error
	Get(ctx context.Context, code string) (*models.ClaimRecord, error)
	MarkUsed(ctx context.Context, code string, now time.Time) (*models.ClaimRecord, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// classify returns the reason rec cannot be redeemed at now, or nil.
func classify(rec *models.ClaimRecord, now time.Time) error {
	if rec.Used {
		return ErrClaimAlreadyUsed
	}
	if !now.Before(rec.ExpiresAt) {
		return ErrClaimExpired
	}
	return nil
}
