package model

import "time"

// GamificationCredit 每个 (user, itemType, itemId) 只记一次经验
type GamificationCredit struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_credit_item,priority:1" json:"userId"`
	ItemType  ItemType  `gorm:"size:20;not null;uniqueIndex:idx_credit_item,priority:2" json:"itemType"`
	ItemID    string    `gorm:"size:36;not null;uniqueIndex:idx_credit_item,priority:3" json:"itemId"`
	XP        int       `gorm:"not null" json:"xp"`
	CreatedAt time.Time `json:"createdAt"`
}

func (GamificationCredit) TableName() string {
	return "gamification_credits"
}

// DailyActivity 用户本地日期维度的活动统计
type DailyActivity struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID             uint      `gorm:"not null;uniqueIndex:idx_user_activity_date,priority:1" json:"userId"`
	ActivityDate       string    `gorm:"size:10;not null;uniqueIndex:idx_user_activity_date,priority:2" json:"activityDate"`
	XPEarned           int       `gorm:"not null;default:0" json:"xpEarned"`
	BonusXP            int       `gorm:"not null;default:0" json:"bonusXp"`
	CompletionCount    int       `gorm:"not null;default:0" json:"completionCount"`
	TasksCompleted     int       `gorm:"not null;default:0" json:"tasksCompleted"`
	DeadlinesCompleted int       `gorm:"not null;default:0" json:"deadlinesCompleted"`
	ExamsCompleted     int       `gorm:"not null;default:0" json:"examsCompleted"`
	WorkItemsCompleted int       `gorm:"not null;default:0" json:"workItemsCompleted"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (DailyActivity) TableName() string {
	return "daily_activities"
}

// TotalXP 当天完成经验与挑战奖励之和
func (a DailyActivity) TotalXP() int {
	return a.XPEarned + a.BonusXP
}

type UserStreak struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID            uint       `gorm:"not null;uniqueIndex" json:"userId"`
	CurrentStreak     int        `gorm:"not null;default:0" json:"currentStreak"`
	LongestStreak     int        `gorm:"not null;default:0" json:"longestStreak"`
	LastActivityDate  *time.Time `json:"lastActivityDate,omitempty"`
	VacationMode      bool       `json:"vacationMode"`
	VacationStartedAt *time.Time `json:"vacationStartedAt,omitempty"`
	CreatedAt         time.Time  `json:"-"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (UserStreak) TableName() string {
	return "user_streaks"
}

// MonthlyXpTotal 按月汇总，排行榜按 college_id 聚合
type MonthlyXpTotal struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_month,priority:1" json:"userId"`
	MonthKey  string    `gorm:"size:7;not null;uniqueIndex:idx_user_month,priority:2;index" json:"month"`
	CollegeID uint      `gorm:"not null;index" json:"collegeId"`
	XP        int       `gorm:"not null;default:0" json:"xp"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (MonthlyXpTotal) TableName() string {
	return "monthly_xp_totals"
}

// DailyChallengeReward 唯一键防止重复领取
type DailyChallengeReward struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_challenge_reward,priority:1" json:"userId"`
	ChallengeID string    `gorm:"size:50;not null;uniqueIndex:idx_challenge_reward,priority:2" json:"challengeId"`
	DateKey     string    `gorm:"size:10;not null;uniqueIndex:idx_challenge_reward,priority:3" json:"dateKey"`
	XP          int       `gorm:"not null" json:"xp"`
	CreatedAt   time.Time `json:"claimedAt"`
}

func (DailyChallengeReward) TableName() string {
	return "daily_challenge_rewards"
}

// DeviceToken 推送通知目标
type DeviceToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"userId"`
	Token     string    `gorm:"size:255;not null;uniqueIndex" json:"token"`
	Platform  string    `gorm:"size:20" json:"platform"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (DeviceToken) TableName() string {
	return "device_tokens"
}
