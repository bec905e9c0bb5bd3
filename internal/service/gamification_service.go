package service

import (
	"college_orbit_backend/internal/config"
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/repository"
	"college_orbit_backend/internal/util"
	"college_orbit_backend/pkg/logger"
	"college_orbit_backend/pkg/monitoring"
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GamificationService struct {
	DB           *gorm.DB
	UserRepo     *repository.UserRepository
	InstanceRepo *repository.InstanceRepository
	GamRepo      *repository.GamificationRepository
	ChallengeSvc *DailyChallengeService
	Config       *config.GamificationConfig
	Now          func() time.Time
}

func NewGamificationService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	instanceRepo *repository.InstanceRepository,
	gamRepo *repository.GamificationRepository,
	cfg *config.GamificationConfig,
) *GamificationService {
	return &GamificationService{
		DB:           db,
		UserRepo:     userRepo,
		InstanceRepo: instanceRepo,
		GamRepo:      gamRepo,
		Config:       cfg,
		Now:          time.Now,
	}
}

type LevelInfo struct {
	Level       int `json:"level"`
	NextLevelXP int `json:"nextLevelXp"`
}

type StreakInfo struct {
	Current          int     `json:"current"`
	Longest          int     `json:"longest"`
	LastActivityDate *string `json:"lastActivityDate,omitempty"`
	VacationMode     bool    `json:"vacationMode"`
}

// Summary 用户游戏化概览
type Summary struct {
	TotalXP    int                  `json:"totalXp"`
	Level      LevelInfo            `json:"level"`
	Streak     StreakInfo           `json:"streak"`
	Today      *model.DailyActivity `json:"today"`
	Month      string               `json:"month"`
	MonthXP    int                  `json:"monthXp"`
	Challenges *ChallengeProgress   `json:"challenges,omitempty"`
}

// CompletionResult 完成事件的处理结果
type CompletionResult struct {
	Credited  bool     `json:"credited"`
	XPAwarded int      `json:"xpAwarded"`
	Summary   *Summary `json:"summary"`
}

func (s *GamificationService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// XPFor 每种条目的完成经验
func (s *GamificationService) XPFor(itemType model.ItemType) int {
	switch itemType {
	case model.ItemTask:
		return s.Config.TaskXP
	case model.ItemDeadline:
		return s.Config.DeadlineXP
	case model.ItemWorkItem:
		return s.Config.WorkItemXP
	case model.ItemExam:
		return s.Config.ExamXP
	}
	return 0
}

func (s *GamificationService) calculateLevel(xp int) LevelInfo {
	per := s.Config.XPPerLevel
	if per <= 0 {
		per = 200
	}
	level := xp / per
	return LevelInfo{Level: level, NextLevelXP: (level + 1) * per}
}

// ProcessTaskCompletion 为已标记完成的条目记入经验；同一条目只计一次。
// 未完成的条目返回校验错误，客户端应改用 CompleteItem。
func (s *GamificationService) ProcessTaskCompletion(ctx context.Context, userID uint, tzOffset int, itemType model.ItemType, itemID string) (*CompletionResult, error) {
	if !itemType.Completable() {
		return nil, util.Invalid("item type %q does not earn XP", itemType)
	}
	item, err := s.InstanceRepo.FindOwned(ctx, userID, itemType, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if item.IsOpen() {
		return nil, util.Invalid("%s %s is not marked done", itemType, itemID)
	}

	now := s.now()
	var credited bool
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		credited, err = s.applyCompletion(ctx, tx, userID, tzOffset, itemType, itemID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.completionResult(ctx, userID, tzOffset, itemType, credited)
}

// CompleteItem 标记条目完成并记入经验，两步在同一事务内
func (s *GamificationService) CompleteItem(ctx context.Context, userID uint, tzOffset int, itemType model.ItemType, itemID string) (*CompletionResult, error) {
	if !itemType.Completable() {
		return nil, util.Invalid("item type %q cannot be completed", itemType)
	}

	now := s.now()
	var credited bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		instances := s.InstanceRepo.WithTx(tx)
		if _, err := instances.FindOwned(ctx, userID, itemType, itemID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrNotFound
			}
			return err
		}
		if _, err := instances.MarkDone(ctx, itemType, itemID, now); err != nil {
			return err
		}
		var err error
		credited, err = s.applyCompletion(ctx, tx, userID, tzOffset, itemType, itemID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.completionResult(ctx, userID, tzOffset, itemType, credited)
}

func (s *GamificationService) completionResult(ctx context.Context, userID uint, tzOffset int, itemType model.ItemType, credited bool) (*CompletionResult, error) {
	summary, err := s.GetSummary(ctx, userID, tzOffset)
	if err != nil {
		return nil, err
	}
	res := &CompletionResult{Credited: credited, Summary: summary}
	if credited {
		res.XPAwarded = s.XPFor(itemType)
	}
	return res, nil
}

func (s *GamificationService) applyCompletion(ctx context.Context, tx *gorm.DB, userID uint, tzOffset int, itemType model.ItemType, itemID string, now time.Time) (bool, error) {
	gam := s.GamRepo.WithTx(tx)
	xp := s.XPFor(itemType)

	inserted, err := gam.InsertCredit(ctx, &model.GamificationCredit{
		UserID:   userID,
		ItemType: itemType,
		ItemID:   itemID,
		XP:       xp,
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}

	today := util.LocalDay(now, tzOffset)
	delta := repository.ActivityDelta{XP: xp, Completions: 1}
	switch itemType {
	case model.ItemTask:
		delta.TasksCompleted = 1
	case model.ItemDeadline:
		delta.DeadlinesCompleted = 1
	case model.ItemExam:
		delta.ExamsCompleted = 1
	case model.ItemWorkItem:
		delta.WorkItemsCompleted = 1
	}
	if err := gam.AddDailyActivity(ctx, userID, util.DateKey(today), delta); err != nil {
		return false, err
	}

	streak, err := gam.GetStreakForUpdate(ctx, userID)
	if err != nil {
		return false, err
	}
	AdvanceStreak(streak, today)
	if err := gam.SaveStreak(ctx, streak); err != nil {
		return false, err
	}

	if err := s.awardXP(ctx, tx, userID, today, xp); err != nil {
		return false, err
	}
	if err := s.UserRepo.WithTx(tx).UpdateTimezoneOffset(ctx, userID, tzOffset); err != nil {
		return false, err
	}

	monitoring.XPAwarded.WithLabelValues("completion").Add(float64(xp))
	logger.Log.Debug("Completion credited",
		zap.Uint("userID", userID),
		zap.String("itemType", string(itemType)),
		zap.String("itemID", itemID),
		zap.Int("xp", xp),
	)
	return true, nil
}

// awardXP 累加用户总经验与月度汇总；未加入学院的用户 college_id 记为 0，排行榜读取时排除
func (s *GamificationService) awardXP(ctx context.Context, tx *gorm.DB, userID uint, localDay time.Time, xp int) error {
	if xp <= 0 {
		return nil
	}
	users := s.UserRepo.WithTx(tx)
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	var collegeID uint
	if user.CollegeID != nil {
		collegeID = *user.CollegeID
	}
	if err := s.GamRepo.WithTx(tx).AddMonthlyXP(ctx, userID, collegeID, util.MonthKey(localDay), xp); err != nil {
		return err
	}
	return users.UpdateXP(ctx, userID, xp)
}

// AdvanceStreak 根据今天的活动更新连续天数。
// 同一天不变；昨天活跃则 +1；中断则重置为 1，休假模式下保留原值。
func AdvanceStreak(s *model.UserStreak, today time.Time) {
	today = util.DateOnly(today)
	switch {
	case s.LastActivityDate == nil:
		s.CurrentStreak = 1
	case util.DateOnly(*s.LastActivityDate).Equal(today):
		if s.CurrentStreak < 1 {
			s.CurrentStreak = 1
		}
	case util.DateOnly(*s.LastActivityDate).AddDate(0, 0, 1).Equal(today):
		s.CurrentStreak++
	case util.DateOnly(*s.LastActivityDate).After(today):
		// 客户端时区回拨导致"今天"早于上次活动日，保持不变
		if s.CurrentStreak < 1 {
			s.CurrentStreak = 1
		}
		return
	default:
		if !s.VacationMode || s.CurrentStreak < 1 {
			s.CurrentStreak = 1
		}
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastActivityDate = &today
}

// EffectiveStreak 展示用的连续天数：中断且未休假时为 0
func EffectiveStreak(s *model.UserStreak, today time.Time) int {
	if s.LastActivityDate == nil {
		return 0
	}
	if s.VacationMode {
		return s.CurrentStreak
	}
	last := util.DateOnly(*s.LastActivityDate)
	today = util.DateOnly(today)
	if last.Equal(today) || last.AddDate(0, 0, 1).Equal(today) || last.After(today) {
		return s.CurrentStreak
	}
	return 0
}

// ToggleVacationMode 开启或关闭休假模式，不修改 lastActivityDate
func (s *GamificationService) ToggleVacationMode(ctx context.Context, userID uint, enabled bool) (*model.UserStreak, error) {
	var streak *model.UserStreak
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		gam := s.GamRepo.WithTx(tx)
		var err error
		streak, err = gam.GetStreakForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if streak.VacationMode == enabled {
			return nil
		}
		streak.VacationMode = enabled
		if enabled {
			now := s.now()
			streak.VacationStartedAt = &now
		} else {
			streak.VacationStartedAt = nil
		}
		return gam.SaveStreak(ctx, streak)
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Vacation mode toggled", zap.Uint("userID", userID), zap.Bool("enabled", enabled))
	return streak, nil
}

// GetSummary 汇总经验、等级、连续天数、今日活动与今日挑战进度
func (s *GamificationService) GetSummary(ctx context.Context, userID uint, tzOffset int) (*Summary, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}

	today := util.LocalDay(s.now(), tzOffset)
	dateKey := util.DateKey(today)

	streak, err := s.GamRepo.GetStreak(ctx, userID)
	if err != nil {
		return nil, err
	}
	activity, err := s.GamRepo.GetDailyActivity(ctx, userID, dateKey)
	if err != nil {
		return nil, err
	}
	monthKey := util.MonthKey(today)
	monthXP, err := s.GamRepo.GetMonthlyXP(ctx, userID, monthKey)
	if err != nil {
		return nil, err
	}

	info := StreakInfo{
		Current:      EffectiveStreak(streak, today),
		Longest:      streak.LongestStreak,
		VacationMode: streak.VacationMode,
	}
	if streak.LastActivityDate != nil {
		k := util.DateKey(*streak.LastActivityDate)
		info.LastActivityDate = &k
	}

	summary := &Summary{
		TotalXP: user.XP,
		Level:   s.calculateLevel(user.XP),
		Streak:  info,
		Today:   activity,
		Month:   monthKey,
		MonthXP: monthXP,
	}

	if s.ChallengeSvc != nil {
		progress, err := s.ChallengeSvc.progressFor(ctx, userID, dateKey, activity)
		if err != nil {
			return nil, err
		}
		summary.Challenges = progress
	}
	return summary, nil
}

// DefaultOffset 请求未携带时区时使用用户保存的偏移
func (s *GamificationService) DefaultOffset(ctx context.Context, userID uint) int {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		return 0
	}
	return user.TimezoneOffset
}
