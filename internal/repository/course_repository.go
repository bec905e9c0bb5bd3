package repository

import (
	"college_orbit_backend/internal/model"
	"context"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Create(course).Error
}

func (r *CourseRepository) FindByID(ctx context.Context, userID uint, id string) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&course).Error
	return &course, err
}

func (r *CourseRepository) FindByUserID(ctx context.Context, userID uint) ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&courses).Error
	return courses, err
}
