package repository

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
	"github.com/totegamma/poapbot/internal/infrastructure/database/models"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Upsert replaces the link of the user. The address is stored lowercase.
func (r *WalletRepository) Upsert(ctx context.Context, link domain.WalletLink) error {
	address := strings.ToLower(link.Address)
	if !poapbot.IsCanonicalAddress(address) {
		return domain.InvalidInputError{Message: "Invalid wallet address: " + link.Address}
	}

	model := models.WalletLink{
		UserID:   link.UserID,
		Address:  address,
		Verified: link.Verified,
		LinkedAt: link.LinkedAt,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"address", "verified", "linked_at"}),
	}).Create(&model).Error
	if err != nil {
		return domain.StoreError{Op: "upsert wallet link", Cause: err}
	}
	return nil
}

func (r *WalletRepository) Get(ctx context.Context, userID string) (domain.WalletLink, error) {
	var model models.WalletLink
	err := r.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.WalletLink{}, domain.NotFoundError{Resource: "wallet link"}
		}
		return domain.WalletLink{}, domain.StoreError{Op: "get wallet link", Cause: err}
	}

	return domain.WalletLink{
		UserID:   model.UserID,
		Address:  model.Address,
		Verified: model.Verified,
		LinkedAt: model.LinkedAt,
	}, nil
}
