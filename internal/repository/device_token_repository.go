package repository

import (
	"college_orbit_backend/internal/model"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceTokenRepository struct {
	DB *gorm.DB
}

func NewDeviceTokenRepository(db *gorm.DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{DB: db}
}

// Upsert token 已存在时转移到当前用户
func (r *DeviceTokenRepository) Upsert(ctx context.Context, token *model.DeviceToken) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "updated_at"}),
		}).
		Create(token).Error
}

func (r *DeviceTokenRepository) FindByUserID(ctx context.Context, userID uint) ([]model.DeviceToken, error) {
	var tokens []model.DeviceToken
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&tokens).Error
	return tokens, err
}

func (r *DeviceTokenRepository) Delete(ctx context.Context, userID uint, token string) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&model.DeviceToken{})
	return res.RowsAffected, res.Error
}
