package repository

import (
	"college_orbit_backend/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
)

type RecurringPatternRepository struct {
	DB *gorm.DB
}

func NewRecurringPatternRepository(db *gorm.DB) *RecurringPatternRepository {
	return &RecurringPatternRepository{DB: db}
}

func (r *RecurringPatternRepository) WithTx(tx *gorm.DB) *RecurringPatternRepository {
	return &RecurringPatternRepository{DB: tx}
}

func (r *RecurringPatternRepository) Create(ctx context.Context, p *model.RecurringPattern) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *RecurringPatternRepository) Save(ctx context.Context, p *model.RecurringPattern) error {
	return r.DB.WithContext(ctx).Save(p).Error
}

// FindByID 只返回属于 userID 的规则
func (r *RecurringPatternRepository) FindByID(ctx context.Context, userID uint, id string) (*model.RecurringPattern, error) {
	var p model.RecurringPattern
	err := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&p).Error
	return &p, err
}

func (r *RecurringPatternRepository) FindByUserID(ctx context.Context, userID uint, itemType model.ItemType) ([]model.RecurringPattern, error) {
	var patterns []model.RecurringPattern
	q := r.DB.WithContext(ctx).Where("user_id = ?", userID)
	if itemType != "" {
		q = q.Where("item_type = ?", itemType)
	}
	err := q.Order("created_at DESC").Find(&patterns).Error
	return patterns, err
}

// FindStale 返回 lastGenerated 早于 cutoff（或从未生成）的启用规则
func (r *RecurringPatternRepository) FindStale(ctx context.Context, cutoff time.Time, limit int) ([]model.RecurringPattern, error) {
	var patterns []model.RecurringPattern
	err := r.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Where("last_generated IS NULL OR last_generated < ?", cutoff.UTC()).
		Order("user_id ASC").
		Limit(limit).
		Find(&patterns).Error
	return patterns, err
}

func (r *RecurringPatternRepository) UpdateGenerationStats(ctx context.Context, id string, at time.Time, instanceCount int) error {
	return r.DB.WithContext(ctx).Model(&model.RecurringPattern{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_generated": at.UTC(),
			"instance_count": instanceCount,
		}).Error
}

func (r *RecurringPatternRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&model.RecurringPattern{}).Error
}
