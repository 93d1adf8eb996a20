package service

import (
	"context"
	"fmt"

	"github.com/TheScouser/chatbox-sub000/internal/domain"
)

// TurnCreditCost is the number of AI credits one conversational turn consumes.
const TurnCreditCost = 1

// UsageRepository defines the repository interface for credit accounting
type UsageRepository interface {
	GetUsage(ctx context.Context, orgID string) (*domain.Usage, error)
	IncrementUsage(ctx context.Context, orgID string, amount int64) error
}

// CreditQuota enforces the per-organization AI credit allowance.
type CreditQuota struct {
	repo UsageRepository
}

// NewCreditQuota creates a new CreditQuota instance
func NewCreditQuota(repo UsageRepository) *CreditQuota {
	return &CreditQuota{repo: repo}
}

// Check returns a QuotaExceededError when the organization has no remaining
// allowance. It performs no writes.
func (q *CreditQuota) Check(ctx context.Context, orgID string) error {
	usage, err := q.repo.GetUsage(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to read usage for org %s: %w", orgID, err)
	}

	if usage.Exhausted() {
		return &domain.QuotaExceededError{Used: usage.Used, Limit: usage.Limit}
	}
	return nil
}

// Record charges the organization for a completed turn.
func (q *CreditQuota) Record(ctx context.Context, orgID string, amount int64) error {
	if err := q.repo.IncrementUsage(ctx, orgID, amount); err != nil {
		return fmt.Errorf("failed to record usage for org %s: %w", orgID, err)
	}
	return nil
}
