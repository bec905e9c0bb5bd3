package service

import (
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/repository"
	"college_orbit_backend/internal/util"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// busyDay 满足目录中所有挑战的活动量
var busyDay = repository.ActivityDelta{
	XP:                 200,
	Completions:        10,
	TasksCompleted:     6,
	DeadlinesCompleted: 2,
	ExamsCompleted:     2,
}

func TestSelectChallengesIsDeterministic(t *testing.T) {
	a := SelectChallenges(7, "2026-03-10", 3)
	b := SelectChallenges(7, "2026-03-10", 3)
	assert.Equal(t, a, b)
	require.Len(t, a, 3)

	seen := map[string]bool{}
	for _, c := range a {
		assert.False(t, seen[c.ID], "duplicate challenge %s", c.ID)
		seen[c.ID] = true
	}

	assert.Len(t, SelectChallenges(7, "2026-03-10", 100), len(Catalog()))
}

func TestSelectChallengesVariesAcrossDays(t *testing.T) {
	first := SelectChallenges(7, "2026-03-01", 3)
	differs := false
	for day := 2; day <= 28 && !differs; day++ {
		key := mustDate("2026-03-01").AddDate(0, 0, day-1).Format(util.DateFormat)
		differs = !assert.ObjectsAreEqual(first, SelectChallenges(7, key, 3))
	}
	assert.True(t, differs, "selection never changed over a month")
}

func TestComputeChallengeProgressDoesNotAward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "ada@example.edu", nil)
	require.NoError(t, f.gamRepo.AddDailyActivity(ctx, u.ID, "2026-03-10", busyDay))

	p, err := f.challenges.ComputeChallengeProgress(ctx, u.ID, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", p.Date)
	assert.True(t, p.AllCompleted)
	assert.False(t, p.AllClaimed)
	for _, c := range p.Challenges {
		assert.True(t, c.Completed)
		assert.LessOrEqual(t, c.Progress, c.Target)
	}
	assert.Zero(t, f.reloadUser(t, u.ID).XP)

	_, err = f.challenges.ComputeChallengeProgress(ctx, u.ID, "10/03/2026", 0)
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestClaimCompletedChallengesOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "ada@example.edu", nil)
	require.NoError(t, f.gamRepo.AddDailyActivity(ctx, u.ID, "2026-03-10", busyDay))

	want := f.cfg.Gamification.SweepBonusXP
	for _, def := range SelectChallenges(u.ID, "2026-03-10", 3) {
		want += def.XP
	}

	res, err := f.challenges.ClaimCompletedChallenges(ctx, u.ID, "2026-03-10", 0)
	require.NoError(t, err)
	assert.Len(t, res.Claimed, 3)
	assert.True(t, res.SweepAwarded)
	assert.Equal(t, want, res.XPAwarded)
	assert.True(t, res.Progress.AllClaimed)
	assert.True(t, res.Progress.SweepClaimed)

	again, err := f.challenges.ClaimCompletedChallenges(ctx, u.ID, "2026-03-10", 0)
	require.NoError(t, err)
	assert.Empty(t, again.Claimed)
	assert.False(t, again.SweepAwarded)
	assert.Zero(t, again.XPAwarded)

	assert.Equal(t, want, f.reloadUser(t, u.ID).XP)

	activity, err := f.gamRepo.GetDailyActivity(ctx, u.ID, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, want, activity.BonusXP)
	assert.Equal(t, 200, activity.XPEarned)
}

func TestClaimWithNothingCompleted(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ada@example.edu", nil)

	res, err := f.challenges.ClaimCompletedChallenges(context.Background(), u.ID, "", 0)
	require.NoError(t, err)
	assert.NotNil(t, res.Claimed)
	assert.Empty(t, res.Claimed)
	assert.Zero(t, res.XPAwarded)
	assert.False(t, res.Progress.AllCompleted)
}

func TestSweepAwardedWhenSetCompletesOnLaterClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "ada@example.edu", nil)
	defs := SelectChallenges(u.ID, "2026-03-10", 3)

	// 前两个挑战已在之前的请求中领取
	for _, def := range defs[:2] {
		ok, err := f.gamRepo.InsertReward(ctx, &model.DailyChallengeReward{
			UserID: u.ID, ChallengeID: def.ID, DateKey: "2026-03-10", XP: def.XP,
		})
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, f.gamRepo.AddDailyActivity(ctx, u.ID, "2026-03-10", busyDay))

	res, err := f.challenges.ClaimCompletedChallenges(ctx, u.ID, "2026-03-10", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{defs[2].ID}, res.Claimed)
	assert.True(t, res.SweepAwarded)
	assert.Equal(t, defs[2].XP+f.cfg.Gamification.SweepBonusXP, res.XPAwarded)
}

func TestChallengeBonusCountsTowardMonthlyTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "ada@example.edu", nil)
	require.NoError(t, f.gamRepo.AddDailyActivity(ctx, u.ID, "2026-03-10", busyDay))

	res, err := f.challenges.ClaimCompletedChallenges(ctx, u.ID, "", 0)
	require.NoError(t, err)

	xp, err := f.gamRepo.GetMonthlyXP(ctx, u.ID, "2026-03")
	require.NoError(t, err)
	assert.Equal(t, res.XPAwarded, xp)
}
