package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/totegamma/poapbot/internal/domain"
	"github.com/totegamma/poapbot/internal/infrastructure/database/models"
)

type GateRepository struct {
	db *gorm.DB
}

func NewGateRepository(db *gorm.DB) *GateRepository {
	return &GateRepository{db: db}
}

func (r *GateRepository) Create(ctx context.Context, gate domain.AccessGate) (domain.AccessGate, error) {
	if err := gate.Validate(); err != nil {
		return domain.AccessGate{}, err
	}

	model := models.AccessGate{
		CommunityID:      gate.CommunityID,
		GateType:         string(gate.GateType),
		RequiredEventIDs: datatypes.JSONSlice[int64](dedupe(gate.RequiredEventIDs)),
		CreatedBy:        gate.CreatedBy,
		CreatedAt:        gate.CreatedAt,
	}
	if gate.RoleID != "" {
		model.RoleID = &gate.RoleID
	}
	if gate.ChannelID != "" {
		model.ChannelID = &gate.ChannelID
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.AccessGate{}, domain.StoreError{Op: "create gate", Cause: err}
	}
	return toDomainGate(model), nil
}

func (r *GateRepository) ListByCommunity(ctx context.Context, communityID string, limit int) ([]domain.AccessGate, error) {
	var rows []models.AccessGate
	q := r.db.WithContext(ctx).Where("community_id = ?", communityID).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, domain.StoreError{Op: "list gates", Cause: err}
	}

	out := make([]domain.AccessGate, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainGate(row))
	}
	return out, nil
}

func (r *GateRepository) Delete(ctx context.Context, communityID string, id int64) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND community_id = ?", id, communityID).
		Delete(&models.AccessGate{})
	if result.Error != nil {
		return domain.StoreError{Op: "delete gate", Cause: result.Error}
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "gate"}
	}
	return nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func toDomainGate(m models.AccessGate) domain.AccessGate {
	gate := domain.AccessGate{
		ID:               m.ID,
		CommunityID:      m.CommunityID,
		GateType:         domain.GateType(m.GateType),
		RequiredEventIDs: []int64(m.RequiredEventIDs),
		CreatedBy:        m.CreatedBy,
		CreatedAt:        m.CreatedAt,
	}
	if m.RoleID != nil {
		gate.RoleID = *m.RoleID
	}
	if m.ChannelID != nil {
		gate.ChannelID = *m.ChannelID
	}
	return gate
}
