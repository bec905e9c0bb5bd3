package service

import (
	"college_orbit_backend/internal/config"
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/repository"
	"college_orbit_backend/internal/util"
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Name           string `json:"name" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email,max=100"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	CollegeID      *uint  `json:"collegeId"`
	TimezoneOffset int    `json:"timezoneOffset" validate:"min=-840,max=720"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type AuthService struct {
	UserRepo    *repository.UserRepository
	CollegeRepo *repository.CollegeRepository
	Cfg         *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, collegeRepo *repository.CollegeRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo:    userRepo,
		CollegeRepo: collegeRepo,
		Cfg:         cfg,
	}
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	if err := util.ValidateStruct(req); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	_, err := s.UserRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if req.CollegeID != nil {
		if _, err := s.CollegeRepo.FindByID(ctx, *req.CollegeID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, util.Invalid("unknown college %d", *req.CollegeID)
			}
			return nil, err
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:           strings.TrimSpace(req.Name),
		Email:          email,
		Password:       string(hashedPassword),
		CollegeID:      req.CollegeID,
		TimezoneOffset: req.TimezoneOffset,
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := util.ValidateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.UserRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}
	if user.Disabled {
		return nil, util.ErrUserDisabled
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.UserRepo.UpdateLastLogin(ctx, user.ID, now); err == nil {
		user.LastLogin = &now
	}
	return &LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) Profile(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUnauthorized
	}
	return user, err
}

// SetCollege 变更所属学院；nil 表示退出学院
func (s *AuthService) SetCollege(ctx context.Context, userID uint, collegeID *uint) (*model.User, error) {
	if collegeID != nil {
		if _, err := s.CollegeRepo.FindByID(ctx, *collegeID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, util.ErrNotFound
			}
			return nil, err
		}
	}
	if err := s.UserRepo.SetCollege(ctx, userID, collegeID); err != nil {
		return nil, err
	}
	return s.Profile(ctx, userID)
}

// SetTimezone 保存客户端上报的时区偏移
func (s *AuthService) SetTimezone(ctx context.Context, userID uint, offset int) error {
	if offset < util.MinTimezoneOffset || offset > util.MaxTimezoneOffset {
		return util.Invalid("timezone offset %d out of range", offset)
	}
	return s.UserRepo.UpdateTimezoneOffset(ctx, userID, offset)
}
