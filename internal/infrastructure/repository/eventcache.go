package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/poapbot/internal/domain"
	"github.com/totegamma/poapbot/internal/infrastructure/database/models"
)

type EventCacheRepository struct {
	db *gorm.DB
}

func NewEventCacheRepository(db *gorm.DB) *EventCacheRepository {
	return &EventCacheRepository{db: db}
}

func (r *EventCacheRepository) Get(ctx context.Context, eventID int64) (domain.CachedEvent, error) {
	var model models.EventCache
	err := r.db.WithContext(ctx).First(&model, "event_id = ?", eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.CachedEvent{}, domain.NotFoundError{Resource: "cached event"}
		}
		return domain.CachedEvent{}, domain.StoreError{Op: "get cached event", Cause: err}
	}

	var event domain.Event
	if err := json.Unmarshal(model.Payload, &event); err != nil {
		return domain.CachedEvent{}, domain.StoreError{Op: "decode cached event", Cause: err}
	}
	return domain.CachedEvent{Event: event, CachedAt: model.CachedAt}, nil
}

func (r *EventCacheRepository) Put(ctx context.Context, event domain.Event, at time.Time) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	model := models.EventCache{
		EventID:  event.ID,
		Payload:  datatypes.JSON(payload),
		CachedAt: at,
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "cached_at"}),
	}).Create(&model).Error
	if err != nil {
		return domain.StoreError{Op: "put cached event", Cause: err}
	}
	return nil
}
