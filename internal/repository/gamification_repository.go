package repository

import (
	"college_orbit_backend/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActivityDelta 一次完成或领取对当日统计的增量
type ActivityDelta struct {
	XP                 int
	BonusXP            int
	Completions        int
	TasksCompleted     int
	DeadlinesCompleted int
	ExamsCompleted     int
	WorkItemsCompleted int
}

type GamificationRepository struct {
	DB *gorm.DB
}

func NewGamificationRepository(db *gorm.DB) *GamificationRepository {
	return &GamificationRepository{DB: db}
}

func (r *GamificationRepository) WithTx(tx *gorm.DB) *GamificationRepository {
	return &GamificationRepository{DB: tx}
}

// InsertCredit 唯一键冲突时不插入，返回是否新增
func (r *GamificationRepository) InsertCredit(ctx context.Context, credit *model.GamificationCredit) (bool, error) {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(credit)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GamificationRepository) HasCredit(ctx context.Context, userID uint, itemType model.ItemType, itemID string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.GamificationCredit{}).
		Where("user_id = ? AND item_type = ? AND item_id = ?", userID, itemType, itemID).
		Count(&n).Error
	return n > 0, err
}

// AddDailyActivity 按 (user, date) upsert 并累加
func (r *GamificationRepository) AddDailyActivity(ctx context.Context, userID uint, dateKey string, d ActivityDelta) error {
	row := model.DailyActivity{
		UserID:             userID,
		ActivityDate:       dateKey,
		XPEarned:           d.XP,
		BonusXP:            d.BonusXP,
		CompletionCount:    d.Completions,
		TasksCompleted:     d.TasksCompleted,
		DeadlinesCompleted: d.DeadlinesCompleted,
		ExamsCompleted:     d.ExamsCompleted,
		WorkItemsCompleted: d.WorkItemsCompleted,
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "activity_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"xp_earned":            gorm.Expr("daily_activities.xp_earned + ?", d.XP),
			"bonus_xp":             gorm.Expr("daily_activities.bonus_xp + ?", d.BonusXP),
			"completion_count":     gorm.Expr("daily_activities.completion_count + ?", d.Completions),
			"tasks_completed":      gorm.Expr("daily_activities.tasks_completed + ?", d.TasksCompleted),
			"deadlines_completed":  gorm.Expr("daily_activities.deadlines_completed + ?", d.DeadlinesCompleted),
			"exams_completed":      gorm.Expr("daily_activities.exams_completed + ?", d.ExamsCompleted),
			"work_items_completed": gorm.Expr("daily_activities.work_items_completed + ?", d.WorkItemsCompleted),
			"updated_at":           time.Now().UTC(),
		}),
	}).Create(&row).Error
}

// GetDailyActivity 不存在时返回零值行
func (r *GamificationRepository) GetDailyActivity(ctx context.Context, userID uint, dateKey string) (*model.DailyActivity, error) {
	var a model.DailyActivity
	err := r.DB.WithContext(ctx).Where("user_id = ? AND activity_date = ?", userID, dateKey).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.DailyActivity{UserID: userID, ActivityDate: dateKey}, nil
	}
	return &a, err
}

func (r *GamificationRepository) ListDailyActivity(ctx context.Context, userID uint, fromKey, toKey string) ([]model.DailyActivity, error) {
	var rows []model.DailyActivity
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND activity_date >= ? AND activity_date <= ?", userID, fromKey, toKey).
		Order("activity_date ASC").
		Find(&rows).Error
	return rows, err
}

// GetStreak 不存在时返回未保存的零值
func (r *GamificationRepository) GetStreak(ctx context.Context, userID uint) (*model.UserStreak, error) {
	var s model.UserStreak
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.UserStreak{UserID: userID}, nil
	}
	return &s, err
}

// GetStreakForUpdate 先确保行存在，再在事务中加行锁读取（sqlite 忽略 FOR UPDATE）。
// 同一用户并发的首次完成不会各自插入新行。
func (r *GamificationRepository) GetStreakForUpdate(ctx context.Context, userID uint) (*model.UserStreak, error) {
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&model.UserStreak{UserID: userID}).Error
	if err != nil {
		return nil, err
	}

	db := r.DB.WithContext(ctx)
	if db.Dialector.Name() != "sqlite" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var s model.UserStreak
	if err := db.Where("user_id = ?", userID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GamificationRepository) SaveStreak(ctx context.Context, s *model.UserStreak) error {
	return r.DB.WithContext(ctx).Save(s).Error
}

// AddMonthlyXP 按 (user, month) upsert 累加
func (r *GamificationRepository) AddMonthlyXP(ctx context.Context, userID, collegeID uint, monthKey string, xp int) error {
	row := model.MonthlyXpTotal{
		UserID:    userID,
		MonthKey:  monthKey,
		CollegeID: collegeID,
		XP:        xp,
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "month_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"xp":         gorm.Expr("monthly_xp_totals.xp + ?", xp),
			"college_id": collegeID,
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&row).Error
}

func (r *GamificationRepository) GetMonthlyXP(ctx context.Context, userID uint, monthKey string) (int, error) {
	var row model.MonthlyXpTotal
	err := r.DB.WithContext(ctx).Where("user_id = ? AND month_key = ?", userID, monthKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return row.XP, err
}

type CollegeTotal struct {
	CollegeID uint  `json:"collegeId"`
	XP        int64 `json:"xp"`
	Members   int64 `json:"members"`
}

// CollegeTotals 按学院汇总月度经验，未加入学院的用户不参与
func (r *GamificationRepository) CollegeTotals(ctx context.Context, monthKey string, limit int) ([]CollegeTotal, error) {
	var rows []CollegeTotal
	err := r.DB.WithContext(ctx).Model(&model.MonthlyXpTotal{}).
		Select("college_id, SUM(xp) AS xp, COUNT(DISTINCT user_id) AS members").
		Where("month_key = ? AND college_id > 0", monthKey).
		Group("college_id").
		Order("xp DESC, college_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

type UserTotal struct {
	UserID uint  `json:"userId"`
	XP     int64 `json:"xp"`
}

func (r *GamificationRepository) CollegeUserTotals(ctx context.Context, collegeID uint, monthKey string, limit int) ([]UserTotal, error) {
	var rows []UserTotal
	err := r.DB.WithContext(ctx).Model(&model.MonthlyXpTotal{}).
		Select("user_id, xp").
		Where("month_key = ? AND college_id = ?", monthKey, collegeID).
		Order("xp DESC, user_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// InsertReward 唯一键 (user, challenge, date) 保证只领取一次
func (r *GamificationRepository) InsertReward(ctx context.Context, reward *model.DailyChallengeReward) (bool, error) {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(reward)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GamificationRepository) ListRewards(ctx context.Context, userID uint, dateKey string) ([]model.DailyChallengeReward, error) {
	var rows []model.DailyChallengeReward
	err := r.DB.WithContext(ctx).Where("user_id = ? AND date_key = ?", userID, dateKey).Find(&rows).Error
	return rows, err
}
