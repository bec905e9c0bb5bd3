package service

import (
	"college_orbit_backend/internal/config"
	"college_orbit_backend/internal/repository"
	"college_orbit_backend/internal/util"
	"context"
	"fmt"
	"time"
)

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
)

type CollegeRank struct {
	Rank        int    `json:"rank"`
	CollegeID   uint   `json:"collegeId"`
	CollegeName string `json:"collegeName"`
	XP          int64  `json:"xp"`
	Members     int64  `json:"members"`
}

type UserRank struct {
	Rank   int    `json:"rank"`
	UserID uint   `json:"userId"`
	Name   string `json:"name"`
	XP     int64  `json:"xp"`
}

type CollegeLeaderboard struct {
	Month   string        `json:"month"`
	Entries []CollegeRank `json:"entries"`
}

type CollegeUserLeaderboard struct {
	Month     string     `json:"month"`
	CollegeID uint       `json:"collegeId"`
	Entries   []UserRank `json:"entries"`
}

type LeaderboardService struct {
	GamRepo     *repository.GamificationRepository
	CollegeRepo *repository.CollegeRepository
	UserRepo    *repository.UserRepository
	Cache       Cache
	Config      *config.GamificationConfig
	Now         func() time.Time
}

func NewLeaderboardService(
	gamRepo *repository.GamificationRepository,
	collegeRepo *repository.CollegeRepository,
	userRepo *repository.UserRepository,
	cache Cache,
	cfg *config.GamificationConfig,
) *LeaderboardService {
	return &LeaderboardService{
		GamRepo:     gamRepo,
		CollegeRepo: collegeRepo,
		UserRepo:    userRepo,
		Cache:       cache,
		Config:      cfg,
		Now:         time.Now,
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		return maxLeaderboardLimit
	}
	return limit
}

// resolveMonth 空值取当前 UTC 月份
func (s *LeaderboardService) resolveMonth(month string) (string, error) {
	if month == "" {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		return util.MonthKey(now().UTC()), nil
	}
	return util.ParseMonthKey(month)
}

// CollegeLeaderboard 按学院汇总的月度排行榜
func (s *LeaderboardService) CollegeLeaderboard(ctx context.Context, month string, limit int) (*CollegeLeaderboard, error) {
	monthKey, err := s.resolveMonth(month)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	key := fmt.Sprintf("leaderboard:colleges:%s:%d", monthKey, limit)
	return cached(ctx, s.Cache, key, s.Config.LeaderboardTTL(), func() (*CollegeLeaderboard, error) {
		totals, err := s.GamRepo.CollegeTotals(ctx, monthKey, limit)
		if err != nil {
			return nil, err
		}
		ids := make([]uint, len(totals))
		for i, t := range totals {
			ids[i] = t.CollegeID
		}
		colleges, err := s.CollegeRepo.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}

		board := &CollegeLeaderboard{Month: monthKey, Entries: make([]CollegeRank, 0, len(totals))}
		for i, t := range totals {
			board.Entries = append(board.Entries, CollegeRank{
				Rank:        i + 1,
				CollegeID:   t.CollegeID,
				CollegeName: colleges[t.CollegeID].Name,
				XP:          t.XP,
				Members:     t.Members,
			})
		}
		return board, nil
	})
}

// CollegeUserLeaderboard 学院内的用户月度排行
func (s *LeaderboardService) CollegeUserLeaderboard(ctx context.Context, collegeID uint, month string, limit int) (*CollegeUserLeaderboard, error) {
	if collegeID == 0 {
		return nil, util.ErrNoCollege
	}
	monthKey, err := s.resolveMonth(month)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	key := fmt.Sprintf("leaderboard:college:%d:%s:%d", collegeID, monthKey, limit)
	return cached(ctx, s.Cache, key, s.Config.LeaderboardTTL(), func() (*CollegeUserLeaderboard, error) {
		totals, err := s.GamRepo.CollegeUserTotals(ctx, collegeID, monthKey, limit)
		if err != nil {
			return nil, err
		}
		ids := make([]uint, len(totals))
		for i, t := range totals {
			ids[i] = t.UserID
		}
		users, err := s.UserRepo.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		names := make(map[uint]string, len(users))
		for _, u := range users {
			names[u.ID] = u.Name
		}

		board := &CollegeUserLeaderboard{Month: monthKey, CollegeID: collegeID, Entries: make([]UserRank, 0, len(totals))}
		for i, t := range totals {
			board.Entries = append(board.Entries, UserRank{
				Rank:   i + 1,
				UserID: t.UserID,
				Name:   names[t.UserID],
				XP:     t.XP,
			})
		}
		return board, nil
	})
}
