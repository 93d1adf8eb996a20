package repository

import (
	"context"
	"errors"

	"github.com/TheScouser/chatbox-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository handles the per-organization AI credit counter.
type UsageRepository struct {
	db dbtx
}

func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: pool}
}

func NewUsageRepositoryWithTx(tx pgx.Tx) *UsageRepository {
	return &UsageRepository{db: tx}
}

func (r *UsageRepository) GetUsage(ctx context.Context, orgID string) (*domain.Usage, error) {
	var u domain.Usage
	err := r.db.QueryRow(ctx,
		`SELECT org_id, credits_used, credits_limit FROM ai_usage WHERE org_id = $1`,
		orgID,
	).Scan(&u.OrgID, &u.Used, &u.Limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUsageNotFound
		}
		return nil, err
	}
	return &u, nil
}

// IncrementUsage atomically adds to the consumed credit counter.
func (r *UsageRepository) IncrementUsage(ctx context.Context, orgID string, amount int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE ai_usage SET credits_used = credits_used + $1, updated_at = now() WHERE org_id = $2`,
		amount, orgID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUsageNotFound
	}
	return nil
}

// EnsureUsage creates the counter row for an organization if missing.
func (r *UsageRepository) EnsureUsage(ctx context.Context, orgID string, limit int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ai_usage (org_id, credits_used, credits_limit, updated_at)
		 VALUES ($1, 0, $2, now())
		 ON CONFLICT (org_id) DO NOTHING`,
		orgID, limit,
	)
	return err
}
