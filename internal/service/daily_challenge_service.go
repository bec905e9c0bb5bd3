package service

import (
	"college_orbit_backend/internal/config"
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/repository"
	"college_orbit_backend/internal/util"
	"college_orbit_backend/pkg/logger"
	"college_orbit_backend/pkg/monitoring"
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ChallengeMetric string

const (
	MetricTasks       ChallengeMetric = "tasks"
	MetricDeadlines   ChallengeMetric = "deadlines"
	MetricExams       ChallengeMetric = "exams"
	MetricCompletions ChallengeMetric = "completions"
	MetricXP          ChallengeMetric = "xp"
)

// SweepChallengeID 全部领取后的额外奖励记录
const SweepChallengeID = "sweep"

type ChallengeDefinition struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Metric      ChallengeMetric `json:"metric"`
	Target      int             `json:"target"`
	XP          int             `json:"xp"`
}

var challengeCatalog = []ChallengeDefinition{
	{ID: "warm_up", Title: "Warm Up", Description: "Complete any item", Metric: MetricCompletions, Target: 1, XP: 10},
	{ID: "momentum", Title: "Momentum", Description: "Complete 4 items", Metric: MetricCompletions, Target: 4, XP: 20},
	{ID: "unstoppable", Title: "Unstoppable", Description: "Complete 8 items", Metric: MetricCompletions, Target: 8, XP: 40},
	{ID: "task_tackler", Title: "Task Tackler", Description: "Complete 3 tasks", Metric: MetricTasks, Target: 3, XP: 15},
	{ID: "task_crusher", Title: "Task Crusher", Description: "Complete 5 tasks", Metric: MetricTasks, Target: 5, XP: 25},
	{ID: "deadline_defender", Title: "Deadline Defender", Description: "Finish a deadline", Metric: MetricDeadlines, Target: 1, XP: 15},
	{ID: "deadline_double", Title: "Double Down", Description: "Finish 2 deadlines", Metric: MetricDeadlines, Target: 2, XP: 25},
	{ID: "exam_ready", Title: "Exam Ready", Description: "Mark an exam as done", Metric: MetricExams, Target: 1, XP: 20},
	{ID: "xp_hunter", Title: "XP Hunter", Description: "Earn 50 XP from completions", Metric: MetricXP, Target: 50, XP: 20},
	{ID: "xp_collector", Title: "XP Collector", Description: "Earn 100 XP from completions", Metric: MetricXP, Target: 100, XP: 35},
}

// Catalog 返回挑战定义的副本
func Catalog() []ChallengeDefinition {
	out := make([]ChallengeDefinition, len(challengeCatalog))
	copy(out, challengeCatalog)
	return out
}

type Challenge struct {
	ChallengeDefinition
	Progress  int  `json:"progress"`
	Completed bool `json:"completed"`
	Claimed   bool `json:"claimed"`
}

type ChallengeProgress struct {
	Date         string      `json:"date"`
	Challenges   []Challenge `json:"challenges"`
	AllCompleted bool        `json:"allCompleted"`
	AllClaimed   bool        `json:"allClaimed"`
	SweepBonusXP int         `json:"sweepBonusXp"`
	SweepClaimed bool        `json:"sweepClaimed"`
}

type ClaimResult struct {
	Claimed      []string           `json:"claimed"`
	XPAwarded    int                `json:"xpAwarded"`
	SweepAwarded bool               `json:"sweepAwarded"`
	Progress     *ChallengeProgress `json:"progress"`
}

type DailyChallengeService struct {
	DB           *gorm.DB
	GamRepo      *repository.GamificationRepository
	Gamification *GamificationService
	Config       *config.GamificationConfig
	Now          func() time.Time
}

func NewDailyChallengeService(
	db *gorm.DB,
	gamRepo *repository.GamificationRepository,
	gamification *GamificationService,
	cfg *config.GamificationConfig,
) *DailyChallengeService {
	return &DailyChallengeService{
		DB:           db,
		GamRepo:      gamRepo,
		Gamification: gamification,
		Config:       cfg,
		Now:          time.Now,
	}
}

func (s *DailyChallengeService) perDay() int {
	n := s.Config.ChallengesPerDay
	if n <= 0 {
		n = 3
	}
	if n > len(challengeCatalog) {
		n = len(challengeCatalog)
	}
	return n
}

// SelectChallenges 以 FNV-64a(userID:dateKey) 为种子从目录中抽取 n 个，同一用户同一天结果稳定
func SelectChallenges(userID uint, dateKey string, n int) []ChallengeDefinition {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s", userID, dateKey)
	r := rand.New(rand.NewSource(int64(h.Sum64())))

	perm := r.Perm(len(challengeCatalog))
	if n > len(perm) {
		n = len(perm)
	}
	out := make([]ChallengeDefinition, 0, n)
	for _, i := range perm[:n] {
		out = append(out, challengeCatalog[i])
	}
	return out
}

func metricValue(a *model.DailyActivity, m ChallengeMetric) int {
	switch m {
	case MetricTasks:
		return a.TasksCompleted
	case MetricDeadlines:
		return a.DeadlinesCompleted
	case MetricExams:
		return a.ExamsCompleted
	case MetricCompletions:
		return a.CompletionCount
	case MetricXP:
		return a.XPEarned
	}
	return 0
}

func (s *DailyChallengeService) resolveDate(dateKey string, tzOffset int) (string, time.Time, error) {
	if dateKey == "" {
		today := util.LocalDay(s.now(), tzOffset)
		return util.DateKey(today), today, nil
	}
	d, err := util.ParseDateKey(dateKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return util.DateKey(d), d, nil
}

func (s *DailyChallengeService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// ComputeChallengeProgress 计算某天的挑战进度，不发放经验。dateKey 为空时取用户本地今天
func (s *DailyChallengeService) ComputeChallengeProgress(ctx context.Context, userID uint, dateKey string, tzOffset int) (*ChallengeProgress, error) {
	key, _, err := s.resolveDate(dateKey, tzOffset)
	if err != nil {
		return nil, err
	}
	activity, err := s.GamRepo.GetDailyActivity(ctx, userID, key)
	if err != nil {
		return nil, err
	}
	return s.progressFor(ctx, userID, key, activity)
}

func (s *DailyChallengeService) progressFor(ctx context.Context, userID uint, dateKey string, activity *model.DailyActivity) (*ChallengeProgress, error) {
	rewards, err := s.GamRepo.ListRewards(ctx, userID, dateKey)
	if err != nil {
		return nil, err
	}
	return s.buildProgress(userID, dateKey, activity, rewards), nil
}

func (s *DailyChallengeService) buildProgress(userID uint, dateKey string, activity *model.DailyActivity, rewards []model.DailyChallengeReward) *ChallengeProgress {
	claimed := make(map[string]bool, len(rewards))
	for _, r := range rewards {
		claimed[r.ChallengeID] = true
	}

	defs := SelectChallenges(userID, dateKey, s.perDay())
	p := &ChallengeProgress{
		Date:         dateKey,
		Challenges:   make([]Challenge, 0, len(defs)),
		AllCompleted: true,
		AllClaimed:   true,
		SweepBonusXP: s.Config.SweepBonusXP,
		SweepClaimed: claimed[SweepChallengeID],
	}
	for _, def := range defs {
		progress := metricValue(activity, def.Metric)
		c := Challenge{
			ChallengeDefinition: def,
			Progress:            progress,
			Completed:           progress >= def.Target,
			Claimed:             claimed[def.ID],
		}
		if c.Progress > def.Target {
			c.Progress = def.Target
		}
		p.AllCompleted = p.AllCompleted && c.Completed
		p.AllClaimed = p.AllClaimed && c.Claimed
		p.Challenges = append(p.Challenges, c)
	}
	return p
}

// ClaimCompletedChallenges 领取已完成且未领取的挑战。
// 当天全部挑战都已领取时发放一次 sweep 奖励，无论是在哪一次调用中达成。
func (s *DailyChallengeService) ClaimCompletedChallenges(ctx context.Context, userID uint, dateKey string, tzOffset int) (*ClaimResult, error) {
	key, day, err := s.resolveDate(dateKey, tzOffset)
	if err != nil {
		return nil, err
	}

	result := &ClaimResult{Claimed: []string{}}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		gam := s.GamRepo.WithTx(tx)

		activity, err := gam.GetDailyActivity(ctx, userID, key)
		if err != nil {
			return err
		}

		defs := SelectChallenges(userID, key, s.perDay())
		total := 0
		for _, def := range defs {
			if metricValue(activity, def.Metric) < def.Target {
				continue
			}
			inserted, err := gam.InsertReward(ctx, &model.DailyChallengeReward{
				UserID:      userID,
				ChallengeID: def.ID,
				DateKey:     key,
				XP:          def.XP,
			})
			if err != nil {
				return err
			}
			if inserted {
				total += def.XP
				result.Claimed = append(result.Claimed, def.ID)
			}
		}

		rewards, err := gam.ListRewards(ctx, userID, key)
		if err != nil {
			return err
		}
		progress := s.buildProgress(userID, key, activity, rewards)
		if progress.AllClaimed && !progress.SweepClaimed && s.Config.SweepBonusXP > 0 {
			inserted, err := gam.InsertReward(ctx, &model.DailyChallengeReward{
				UserID:      userID,
				ChallengeID: SweepChallengeID,
				DateKey:     key,
				XP:          s.Config.SweepBonusXP,
			})
			if err != nil {
				return err
			}
			if inserted {
				total += s.Config.SweepBonusXP
				result.SweepAwarded = true
				progress.SweepClaimed = true
			}
		}

		if total > 0 {
			if err := gam.AddDailyActivity(ctx, userID, key, repository.ActivityDelta{BonusXP: total}); err != nil {
				return err
			}
			if err := s.Gamification.awardXP(ctx, tx, userID, day, total); err != nil {
				return err
			}
		}

		result.XPAwarded = total
		result.Progress = progress
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.XPAwarded > 0 {
		monitoring.ChallengesClaimed.Add(float64(len(result.Claimed)))
		monitoring.XPAwarded.WithLabelValues("challenge").Add(float64(result.XPAwarded))
		logger.Log.Info("Daily challenges claimed",
			zap.Uint("userID", userID),
			zap.String("date", key),
			zap.Strings("challenges", result.Claimed),
			zap.Int("xp", result.XPAwarded),
			zap.Bool("sweep", result.SweepAwarded),
		)
	}
	return result, nil
}
