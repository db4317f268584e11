package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medreza/agt-claim-service/pkg/models"
)

type PostgresClaimStore struct {
	pool *pgxpool.Pool
}

func NewPostgresClaimStore(pool *pgxpool.Pool) *PostgresClaimStore {
	return &PostgresClaimStore{pool: pool}
}

func (r *PostgresClaimStore) Insert(ctx context.Context, record models.ClaimRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO claim_codes (code, address, expires_at, used, used_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (code) DO UPDATE SET
			address = EXCLUDED.address,
			expires_at = EXCLUDED.expires_at,
			used = EXCLUDED.used,
			used_at = EXCLUDED.used_at,
			created_at = EXCLUDED.created_at`,
		record.Code, record.Address, record.ExpiresAt, record.Used, record.UsedAt, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}
	return nil
}

func (r *PostgresClaimStore) Get(ctx context.Context, code string) (*models.ClaimRecord, error) {
	rec, err := scanClaim(r.pool.QueryRow(ctx,
		`SELECT code, address, expires_at, used, used_at, created_at FROM claim_codes WHERE code = $1`,
		code,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return rec, nil
}

func (r *PostgresClaimStore) MarkUsed(ctx context.Context, code string, now time.Time) (*models.ClaimRecord, error) {
	// the check and the update run in one transaction so a code is redeemed once
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// lock the row using 'FOR UPDATE' so concurrent redemptions queue up behind us
	rec, err := scanClaim(tx.QueryRow(ctx,
		`SELECT code, address, expires_at, used, used_at, created_at FROM claim_codes WHERE code = $1 FOR UPDATE`,
		code,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to lock claim: %w", err)
	}

	if err := classify(rec, now); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE claim_codes SET used = TRUE, used_at = $2 WHERE code = $1`,
		code, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark claim used: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	rec.Used = true
	rec.UsedAt = &now
	return rec, nil
}

func (r *PostgresClaimStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM claim_codes WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired claims: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanClaim(row pgx.Row) (*models.ClaimRecord, error) {
	var rec models.ClaimRecord
	if err := row.Scan(&rec.Code, &rec.Address, &rec.ExpiresAt, &rec.Used, &rec.UsedAt, &rec.CreatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
