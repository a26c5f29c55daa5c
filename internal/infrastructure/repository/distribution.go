package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/totegamma/poapbot/internal/domain"
	"github.com/totegamma/poapbot/internal/infrastructure/database/models"
)

type DistributionRepository struct {
	db *gorm.DB
}

func NewDistributionRepository(db *gorm.DB) *DistributionRepository {
	return &DistributionRepository{db: db}
}

// CreatePending appends a pending record. A claim key already owned by
// another pending or claimed record yields domain.ErrDuplicateClaim.
func (r *DistributionRepository) CreatePending(ctx context.Context, rec domain.DistributionRecord) (domain.DistributionRecord, error) {
	model := models.DistributionRecord{
		UserID:        rec.UserID,
		CommunityID:   rec.CommunityID,
		EventID:       rec.EventID,
		ClaimToken:    rec.ClaimToken,
		Status:        string(domain.StatusPending),
		DistributedBy: rec.DistributedBy,
		RuleID:        rec.RuleID,
		ClaimKey:      rec.ClaimKey,
		CreatedAt:     rec.CreatedAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now()
	}

	err := r.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.DistributionRecord{}, domain.ErrDuplicateClaim
		}
		return domain.DistributionRecord{}, domain.StoreError{Op: "create distribution record", Cause: err}
	}

	return toDomainRecord(model), nil
}

func (r *DistributionRepository) MarkClaimed(ctx context.Context, id int64, at time.Time) error {
	return r.transition(ctx, "mark claimed", id, map[string]any{
		"status":     string(domain.StatusClaimed),
		"claimed_at": at,
	})
}

// MarkFailed also releases the claim key so the rule may be retried.
func (r *DistributionRepository) MarkFailed(ctx context.Context, id int64) error {
	return r.transition(ctx, "mark failed", id, map[string]any{
		"status":    string(domain.StatusFailed),
		"claim_key": gorm.Expr("NULL"),
	})
}

func (r *DistributionRepository) transition(ctx context.Context, op string, id int64, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.DistributionRecord{}).
		Where("id = ? AND status = ?", id, string(domain.StatusPending)).
		Updates(updates)
	if result.Error != nil {
		return domain.StoreError{Op: op, Cause: result.Error}
	}
	if result.RowsAffected == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (r *DistributionRepository) Get(ctx context.Context, id int64) (domain.DistributionRecord, error) {
	var model models.DistributionRecord
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DistributionRecord{}, domain.NotFoundError{Resource: "distribution record"}
		}
		return domain.DistributionRecord{}, domain.StoreError{Op: "get distribution record", Cause: err}
	}
	return toDomainRecord(model), nil
}

func toDomainRecord(m models.DistributionRecord) domain.DistributionRecord {
	return domain.DistributionRecord{
		ID:            m.ID,
		UserID:        m.UserID,
		CommunityID:   m.CommunityID,
		EventID:       m.EventID,
		ClaimToken:    m.ClaimToken,
		Status:        domain.DistributionStatus(m.Status),
		DistributedBy: m.DistributedBy,
		RuleID:        m.RuleID,
		ClaimKey:      m.ClaimKey,
		CreatedAt:     m.CreatedAt,
		ClaimedAt:     m.ClaimedAt,
	}
}
