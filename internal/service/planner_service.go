package service

import (
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/repository"
	"college_orbit_backend/internal/util"
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

type CourseRequest struct {
	Name  string `json:"name" validate:"required,max=150"`
	Code  string `json:"code" validate:"max=30"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

type WorkItemRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	CourseID    *string    `json:"courseId" validate:"omitempty,uuid"`
	DueAt       *time.Time `json:"dueAt"`
}

// PlannerService 课程、学院与手动作业条目
type PlannerService struct {
	CourseRepo   *repository.CourseRepository
	CollegeRepo  *repository.CollegeRepository
	InstanceRepo *repository.InstanceRepository
}

func NewPlannerService(
	courseRepo *repository.CourseRepository,
	collegeRepo *repository.CollegeRepository,
	instanceRepo *repository.InstanceRepository,
) *PlannerService {
	return &PlannerService{
		CourseRepo:   courseRepo,
		CollegeRepo:  collegeRepo,
		InstanceRepo: instanceRepo,
	}
}

func (s *PlannerService) CreateCourse(ctx context.Context, userID uint, req CourseRequest) (*model.Course, error) {
	if err := util.ValidateStruct(req); err != nil {
		return nil, err
	}
	course := &model.Course{
		UserID: userID,
		Name:   strings.TrimSpace(req.Name),
		Code:   strings.TrimSpace(req.Code),
		Color:  req.Color,
	}
	if err := s.CourseRepo.Create(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *PlannerService) ListCourses(ctx context.Context, userID uint) ([]model.Course, error) {
	return s.CourseRepo.FindByUserID(ctx, userID)
}

func (s *PlannerService) ListColleges(ctx context.Context) ([]model.College, error) {
	return s.CollegeRepo.List(ctx)
}

func (s *PlannerService) CreateWorkItem(ctx context.Context, userID uint, req WorkItemRequest) (*model.WorkItem, error) {
	if err := util.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.CourseID != nil {
		if _, err := s.CourseRepo.FindByID(ctx, userID, *req.CourseID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, util.Invalid("unknown course %s", *req.CourseID)
			}
			return nil, err
		}
	}

	item := &model.WorkItem{
		InstanceFields: model.InstanceFields{
			UserID:      userID,
			Title:       strings.TrimSpace(req.Title),
			Description: req.Description,
			CourseID:    req.CourseID,
			Status:      model.StatusOpen,
		},
	}
	if req.DueAt != nil {
		due := req.DueAt.UTC()
		item.DueAt = &due
	}
	if err := s.InstanceRepo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *PlannerService) ListWorkItems(ctx context.Context, userID uint) ([]model.WorkItem, error) {
	return s.InstanceRepo.FindWorkItems(ctx, userID)
}
