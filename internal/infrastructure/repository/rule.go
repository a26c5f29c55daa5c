package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
	"github.com/totegamma/poapbot/internal/infrastructure/database/models"
)

type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) Create(ctx context.Context, rule domain.AutomationRule) (domain.AutomationRule, error) {
	model := models.AutomationRule{
		CommunityID: rule.CommunityID,
		TriggerType: string(rule.TriggerType),
		EventID:     rule.EventID,
		TriggerData: rule.TriggerData,
		SecretCode:  rule.SecretCode,
		Active:      rule.Active,
		CreatedBy:   rule.CreatedBy,
		CreatedAt:   rule.CreatedAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.AutomationRule{}, domain.StoreError{Op: "create rule", Cause: err}
	}
	return toDomainRule(model), nil
}

// Get returns the rule only if it belongs to the community.
func (r *RuleRepository) Get(ctx context.Context, communityID string, id int64) (domain.AutomationRule, error) {
	var model models.AutomationRule
	err := r.db.WithContext(ctx).First(&model, "id = ? AND community_id = ?", id, communityID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.AutomationRule{}, domain.NotFoundError{Resource: "rule"}
		}
		return domain.AutomationRule{}, domain.StoreError{Op: "get rule", Cause: err}
	}
	return toDomainRule(model), nil
}

func (r *RuleRepository) ListByCommunity(ctx context.Context, communityID string, limit int) ([]domain.AutomationRule, error) {
	q := r.db.WithContext(ctx).Where("community_id = ?", communityID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return r.find(q, "list rules")
}

func (r *RuleRepository) ListActive(ctx context.Context, communityID string, trigger poapbot.TriggerType) ([]domain.AutomationRule, error) {
	q := r.db.WithContext(ctx).
		Where("community_id = ? AND trigger_type = ? AND active = ?", communityID, string(trigger), true).
		Order("id ASC")
	return r.find(q, "list active rules")
}

// Toggle flips the active flag in one statement and returns the rule as stored.
func (r *RuleRepository) Toggle(ctx context.Context, communityID string, id int64) (domain.AutomationRule, error) {
	var model models.AutomationRule
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.AutomationRule{}).
			Where("id = ? AND community_id = ?", id, communityID).
			Update("active", gorm.Expr("NOT active"))
		if result.Error != nil {
			return domain.StoreError{Op: "toggle rule", Cause: result.Error}
		}
		if result.RowsAffected == 0 {
			return domain.NotFoundError{Resource: "rule"}
		}
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return domain.StoreError{Op: "get rule", Cause: err}
		}
		return nil
	})
	if err != nil {
		return domain.AutomationRule{}, err
	}
	return toDomainRule(model), nil
}

func (r *RuleRepository) find(q *gorm.DB, op string) ([]domain.AutomationRule, error) {
	var rows []models.AutomationRule
	if err := q.Find(&rows).Error; err != nil {
		return nil, domain.StoreError{Op: op, Cause: err}
	}
	out := make([]domain.AutomationRule, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainRule(row))
	}
	return out, nil
}

func toDomainRule(m models.AutomationRule) domain.AutomationRule {
	return domain.AutomationRule{
		ID:          m.ID,
		CommunityID: m.CommunityID,
		EventID:     m.EventID,
		TriggerType: poapbot.TriggerType(m.TriggerType),
		TriggerData: m.TriggerData,
		SecretCode:  m.SecretCode,
		Active:      m.Active,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
	}
}
