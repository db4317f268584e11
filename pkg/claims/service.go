// Package claims issues balance-gated, single-use claim codes and redeems
// them.
package claims

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medreza/agt-claim-service/pkg/models"
	"github.com/medreza/agt-claim-service/pkg/oracle"
	"github.com/medreza/agt-claim-service/pkg/ratelimit"
	"github.com/medreza/agt-claim-service/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ClaimTTL is how long an issued code stays redeemable.
const ClaimTTL = time.Hour

type Service struct {
	store      repository.ClaimStore
	oracle     oracle.BalanceOracle
	limiter    ratelimit.Limiter
	codes      *CodeGenerator
	minBalance decimal.Decimal
	now        func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCodeGenerator replaces the crypto/rand backed generator.
func WithCodeGenerator(g *CodeGenerator) Option {
	return func(s *Service) { s.codes = g }
}

func NewService(
	store repository.ClaimStore,
	balances oracle.BalanceOracle,
	limiter ratelimit.Limiter,
	secret []byte,
	minBalance decimal.Decimal,
	opts ...Option,
) *Service {
	s := &Service{
		store:      store,
		oracle:     balances,
		limiter:    limiter,
		codes:      NewCodeGenerator(secret, rand.Reader),
		minBalance: minBalance,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestClaim checks that address holds at least the minimum balance and
// issues a claim code for it. clientID keys the rate limiter.
func (s *Service) RequestClaim(ctx context.Context, clientID, address string) (*models.IssuedClaim, error) {
	decision, err := s.limiter.Allow(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	if !decision.Allowed {
		return nil, &RateLimitedError{RetryAfter: decision.RetryAfter(s.now())}
	}

	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: missing address", ErrInvalidRequest)
	}

	balance, err := s.oracle.BalanceOf(ctx, address)
	if err != nil {
		if errors.Is(err, oracle.ErrInvalidAddress) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if balance.LessThan(s.minBalance) {
		return nil, &InsufficientBalanceError{Balance: balance, Minimum: s.minBalance}
	}

	now := s.now()
	code, err := s.codes.Generate(address, now)
	if err != nil {
		return nil, err
	}

	record := models.ClaimRecord{
		Code:      code,
		Address:   address,
		ExpiresAt: now.Add(ClaimTTL),
		CreatedAt: now,
	}
	if err := s.store.Insert(ctx, record); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"address": address,
		"balance": balance.String(),
		"expires": record.ExpiresAt,
	}).Info("RequestClaim: Issued claim code")

	return &models.IssuedClaim{Code: code, ExpiresAt: record.ExpiresAt}, nil
}

// Redeem marks code used and returns the address it was issued for. A code
// redeems successfully at most once.
func (s *Service) Redeem(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("%w: missing code", ErrInvalidRequest)
	}

	rec, err := s.store.MarkUsed(ctx, code, s.now())
	if err != nil {
		return "", translateStoreError(err)
	}
	return rec.Address, nil
}

// Lookup returns the stored record for code without changing it.
func (s *Service) Lookup(ctx context.Context, code string) (*models.ClaimRecord, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrInvalidRequest)
	}

	rec, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return rec, nil
}

// PurgeExpired drops records that expired more than retention ago.
func (s *Service) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.PurgeExpired(ctx, s.now().Add(-retention))
}

func translateStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrClaimNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrClaimAlreadyUsed):
		return ErrAlreadyUsed
	case errors.Is(err, repository.ErrClaimExpired):
		return ErrExpired
	default:
		return err
	}
}
