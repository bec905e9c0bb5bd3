package repository

import (
	"college_orbit_backend/internal/model"
	"context"

	"gorm.io/gorm"
)

type CollegeRepository struct {
	DB *gorm.DB
}

func NewCollegeRepository(db *gorm.DB) *CollegeRepository {
	return &CollegeRepository{DB: db}
}

func (r *CollegeRepository) Create(ctx context.Context, college *model.College) error {
	return r.DB.WithContext(ctx).Create(college).Error
}

func (r *CollegeRepository) FindByID(ctx context.Context, id uint) (*model.College, error) {
	var college model.College
	err := r.DB.WithContext(ctx).First(&college, id).Error
	return &college, err
}

func (r *CollegeRepository) List(ctx context.Context) ([]model.College, error) {
	var colleges []model.College
	err := r.DB.WithContext(ctx).Order("name ASC").Find(&colleges).Error
	return colleges, err
}

func (r *CollegeRepository) FindByIDs(ctx context.Context, ids []uint) (map[uint]model.College, error) {
	out := make(map[uint]model.College, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var colleges []model.College
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&colleges).Error; err != nil {
		return nil, err
	}
	for _, c := range colleges {
		out[c.ID] = c
	}
	return out, nil
}
