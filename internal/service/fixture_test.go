package service

import (
	"college_orbit_backend/internal/config"
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/repository"
	"college_orbit_backend/internal/testutil"
	"testing"
	"time"

	"gorm.io/gorm"
)

// 2026-03-10 是星期二
var fixedNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fixture struct {
	db           *gorm.DB
	cfg          *config.Config
	users        *repository.UserRepository
	colleges     *repository.CollegeRepository
	courses      *repository.CourseRepository
	patterns     *repository.RecurringPatternRepository
	instances    *repository.InstanceRepository
	gamRepo      *repository.GamificationRepository
	devices      *repository.DeviceTokenRepository
	gamification *GamificationService
	challenges   *DailyChallengeService
	recurring    *RecurringPatternService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	cfg := config.Default()

	f := &fixture{
		db:        db,
		cfg:       cfg,
		users:     repository.NewUserRepository(db),
		colleges:  repository.NewCollegeRepository(db),
		courses:   repository.NewCourseRepository(db),
		patterns:  repository.NewRecurringPatternRepository(db),
		instances: repository.NewInstanceRepository(db),
		gamRepo:   repository.NewGamificationRepository(db),
		devices:   repository.NewDeviceTokenRepository(db),
	}

	f.gamification = NewGamificationService(db, f.users, f.instances, f.gamRepo, &cfg.Gamification)
	f.gamification.Now = clock(fixedNow)
	f.challenges = NewDailyChallengeService(db, f.gamRepo, f.gamification, &cfg.Gamification)
	f.challenges.Now = clock(fixedNow)
	f.gamification.ChallengeSvc = f.challenges

	f.recurring = NewRecurringPatternService(db, f.patterns, f.instances, f.users, f.courses, &cfg.Recurrence)
	f.recurring.Now = clock(fixedNow)
	return f
}

func (f *fixture) user(t *testing.T, email string, collegeID *uint) *model.User {
	t.Helper()
	return testutil.User(t, f.db, email, collegeID)
}

func (f *fixture) reloadUser(t *testing.T, id uint) *model.User {
	t.Helper()
	var u model.User
	if err := f.db.First(&u, id).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return &u
}

func (f *fixture) tasksOf(t *testing.T, patternID string) []model.Task {
	t.Helper()
	var tasks []model.Task
	if err := f.db.Where("recurring_pattern_id = ?", patternID).Order("instance_date").Find(&tasks).Error; err != nil {
		t.Fatalf("load tasks: %v", err)
	}
	return tasks
}
