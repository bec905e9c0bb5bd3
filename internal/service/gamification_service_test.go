package service

import (
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/testutil"
	"college_orbit_backend/internal/util"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessTaskCompletionCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "ada@example.edu", nil)
	id := testutil.DoneItem(t, f.db, u.ID, model.ItemTask, "Problem set 3")

	first, err := f.gamification.ProcessTaskCompletion(ctx, u.ID, 0, model.ItemTask, id)
	require.NoError(t, err)
	assert.True(t, first.Credited)
	assert.Equal(t, 10, first.XPAwarded)
	assert.Equal(t, 10, first.Summary.TotalXP)

	second, err := f.gamification.ProcessTaskCompletion(ctx, u.ID, 0, model.ItemTask, id)
	require.NoError(t, err)
	assert.False(t, second.Credited)
	assert.Zero(t, second.XPAwarded)
	assert.Equal(t, 10, second.Summary.TotalXP)
	assert.Equal(t, 1, second.Summary.Today.CompletionCount)
	assert.Equal(t, 1, second.Summary.Today.TasksCompleted)

	assert.Equal(t, 10, f.reloadUser(t, u.ID).XP)
}

func TestProcessTaskCompletionRejectsUnknownItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "ada@example.edu", nil)
	other := f.user(t, "bob@example.edu", nil)
	id := testutil.DoneItem(t, f.db, other.ID, model.ItemDeadline, "Not yours")

	_, err := f.gamification.ProcessTaskCompletion(ctx, u.ID, 0, model.ItemDeadline, id)
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, err = f.gamification.ProcessTaskCompletion(ctx, u.ID, 0, model.ItemCalendarEvent, id)
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestProcessTaskCompletionRequiresDoneItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "ada@example.edu", nil)
	id := testutil.Item(t, f.db, u.ID, model.ItemTask, "Still open")

	_, err := f.gamification.ProcessTaskCompletion(ctx, u.ID, 0, model.ItemTask, id)
	assert.ErrorIs(t, err, util.ErrValidation)
	assert.Zero(t, f.reloadUser(t, u.ID).XP)

	ok, err := f.instances.MarkDone(ctx, model.ItemTask, id, fixedNow)
	require.NoError(t, err)
	require.True(t, ok)
	res, err := f.gamification.ProcessTaskCompletion(ctx, u.ID, 0, model.ItemTask, id)
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assert.Equal(t, 10, res.XPAwarded)
}

func TestXPPerItemType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "ada@example.edu", nil)

	total := 0
	for _, tc := range []struct {
		itemType model.ItemType
		xp       int
	}{
		{model.ItemTask, 10},
		{model.ItemDeadline, 20},
		{model.ItemWorkItem, 15},
		{model.ItemExam, 30},
	} {
		id := testutil.DoneItem(t, f.db, u.ID, tc.itemType, string(tc.itemType))
		res, err := f.gamification.ProcessTaskCompletion(ctx, u.ID, 0, tc.itemType, id)
		require.NoError(t, err)
		assert.Equal(t, tc.xp, res.XPAwarded, tc.itemType)
		total += tc.xp
	}

	summary, err := f.gamification.GetSummary(ctx, u.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, total, summary.TotalXP)
	assert.Equal(t, total, summary.MonthXP)
	assert.Equal(t, "2026-03", summary.Month)
	assert.Equal(t, LevelInfo{Level: 0, NextLevelXP: 200}, summary.Level)
	assert.Equal(t, 4, summary.Today.CompletionCount)
	assert.Equal(t, 1, summary.Today.ExamsCompleted)
	assert.Equal(t, 1, summary.Today.WorkItemsCompleted)
}

func TestStreakAcrossDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "ada@example.edu", nil)

	complete := func(at time.Time) *CompletionResult {
		f.gamification.Now = clock(at)
		id := testutil.DoneItem(t, f.db, u.ID, model.ItemTask, "t")
		res, err := f.gamification.ProcessTaskCompletion(ctx, u.ID, 0, model.ItemTask, id)
		require.NoError(t, err)
		return res
	}

	assert.Equal(t, 1, complete(fixedNow).Summary.Streak.Current)
	assert.Equal(t, 1, complete(fixedNow.Add(time.Hour)).Summary.Streak.Current)
	assert.Equal(t, 2, complete(fixedNow.AddDate(0, 0, 1)).Summary.Streak.Current)

	res := complete(fixedNow.AddDate(0, 0, 4))
	assert.Equal(t, 1, res.Summary.Streak.Current)
	assert.Equal(t, 2, res.Summary.Streak.Longest)
	require.NotNil(t, res.Summary.Streak.LastActivityDate)
	assert.Equal(t, "2026-03-14", *res.Summary.Streak.LastActivityDate)
}

func TestCompletionUsesLocalDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "ada@example.edu", nil)

	// 03:00 UTC 在 UTC-5 仍是前一天
	f.gamification.Now = clock(time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC))
	id := testutil.DoneItem(t, f.db, u.ID, model.ItemTask, "late night")
	_, err := f.gamification.ProcessTaskCompletion(ctx, u.ID, 300, model.ItemTask, id)
	require.NoError(t, err)

	activity, err := f.gamRepo.GetDailyActivity(ctx, u.ID, "2026-03-09")
	require.NoError(t, err)
	assert.Equal(t, 1, activity.CompletionCount)
	assert.Equal(t, 300, f.reloadUser(t, u.ID).TimezoneOffset)
}

func TestVacationModePreservesStreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "ada@example.edu", nil)

	for day := 0; day < 3; day++ {
		f.gamification.Now = clock(fixedNow.AddDate(0, 0, day))
		id := testutil.DoneItem(t, f.db, u.ID, model.ItemTask, "t")
		_, err := f.gamification.ProcessTaskCompletion(ctx, u.ID, 0, model.ItemTask, id)
		require.NoError(t, err)
	}

	streak, err := f.gamification.ToggleVacationMode(ctx, u.ID, true)
	require.NoError(t, err)
	assert.True(t, streak.VacationMode)
	assert.NotNil(t, streak.VacationStartedAt)

	f.gamification.Now = clock(fixedNow.AddDate(0, 0, 10))
	summary, err := f.gamification.GetSummary(ctx, u.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Streak.Current)
	assert.True(t, summary.Streak.VacationMode)

	id := testutil.DoneItem(t, f.db, u.ID, model.ItemTask, "back")
	res, err := f.gamification.ProcessTaskCompletion(ctx, u.ID, 0, model.ItemTask, id)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Summary.Streak.Current)

	streak, err = f.gamification.ToggleVacationMode(ctx, u.ID, false)
	require.NoError(t, err)
	assert.False(t, streak.VacationMode)
	assert.Nil(t, streak.VacationStartedAt)
}

func TestAdvanceStreak(t *testing.T) {
	day := func(s string) time.Time { return mustDate(s) }
	ptr := func(s string) *time.Time {
		d := day(s)
		return &d
	}

	tests := []struct {
		name    string
		streak  model.UserStreak
		today   string
		current int
		longest int
	}{
		{"first activity", model.UserStreak{}, "2026-03-10", 1, 1},
		{"same day", model.UserStreak{CurrentStreak: 4, LongestStreak: 4, LastActivityDate: ptr("2026-03-10")}, "2026-03-10", 4, 4},
		{"consecutive", model.UserStreak{CurrentStreak: 4, LongestStreak: 6, LastActivityDate: ptr("2026-03-09")}, "2026-03-10", 5, 6},
		{"new longest", model.UserStreak{CurrentStreak: 6, LongestStreak: 6, LastActivityDate: ptr("2026-03-09")}, "2026-03-10", 7, 7},
		{"gap resets", model.UserStreak{CurrentStreak: 4, LongestStreak: 6, LastActivityDate: ptr("2026-03-07")}, "2026-03-10", 1, 6},
		{"gap on vacation", model.UserStreak{CurrentStreak: 4, LongestStreak: 6, LastActivityDate: ptr("2026-03-01"), VacationMode: true}, "2026-03-10", 4, 6},
		{"clock moved back", model.UserStreak{CurrentStreak: 2, LongestStreak: 2, LastActivityDate: ptr("2026-03-11")}, "2026-03-10", 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.streak
			AdvanceStreak(&s, day(tt.today))
			assert.Equal(t, tt.current, s.CurrentStreak)
			assert.Equal(t, tt.longest, s.LongestStreak)
		})
	}
}

func TestEffectiveStreak(t *testing.T) {
	last := mustDate("2026-03-08")
	s := &model.UserStreak{CurrentStreak: 5, LastActivityDate: &last}

	assert.Equal(t, 5, EffectiveStreak(s, mustDate("2026-03-09")))
	assert.Equal(t, 0, EffectiveStreak(s, mustDate("2026-03-10")))

	s.VacationMode = true
	assert.Equal(t, 5, EffectiveStreak(s, mustDate("2026-03-20")))

	assert.Equal(t, 0, EffectiveStreak(&model.UserStreak{}, mustDate("2026-03-10")))
}

func TestMonthlyTotalsByCollege(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	college := testutil.College(t, f.db, "orbit")
	member := f.user(t, "ada@example.edu", &college.ID)
	loner := f.user(t, "bob@example.edu", nil)

	for _, u := range []*model.User{member, loner} {
		id := testutil.DoneItem(t, f.db, u.ID, model.ItemDeadline, "essay")
		_, err := f.gamification.ProcessTaskCompletion(ctx, u.ID, 0, model.ItemDeadline, id)
		require.NoError(t, err)
	}

	totals, err := f.gamRepo.CollegeTotals(ctx, "2026-03", 10)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, college.ID, totals[0].CollegeID)
	assert.EqualValues(t, 20, totals[0].XP)
	assert.EqualValues(t, 1, totals[0].Members)

	xp, err := f.gamRepo.GetMonthlyXP(ctx, loner.ID, "2026-03")
	require.NoError(t, err)
	assert.Equal(t, 20, xp)
}

func TestCompleteItemMarksDoneAndCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "ada@example.edu", nil)
	id := testutil.Item(t, f.db, u.ID, model.ItemExam, "Midterm")

	res, err := f.gamification.CompleteItem(ctx, u.ID, 0, model.ItemExam, id)
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assert.Equal(t, 30, res.XPAwarded)

	var exam model.Exam
	require.NoError(t, f.db.First(&exam, "id = ?", id).Error)
	assert.Equal(t, model.StatusDone, exam.Status)
	require.NotNil(t, exam.CompletedAt)
	assert.True(t, exam.CompletedAt.Equal(fixedNow))

	again, err := f.gamification.CompleteItem(ctx, u.ID, 0, model.ItemExam, id)
	require.NoError(t, err)
	assert.False(t, again.Credited)
	assert.Equal(t, 30, again.Summary.TotalXP)

	_, err = f.gamification.CompleteItem(ctx, u.ID, 0, model.ItemExam, model.NewID())
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestSummaryIncludesTodaysChallenges(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ada@example.edu", nil)

	summary, err := f.gamification.GetSummary(context.Background(), u.ID, 0)
	require.NoError(t, err)
	require.NotNil(t, summary.Challenges)
	assert.Equal(t, "2026-03-10", summary.Challenges.Date)
	assert.Len(t, summary.Challenges.Challenges, 3)
	assert.Zero(t, summary.Streak.Current)
	assert.Nil(t, summary.Streak.LastActivityDate)
}

func TestDefaultOffset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "ada@example.edu", nil)
	require.NoError(t, f.users.UpdateTimezoneOffset(ctx, u.ID, -330))

	assert.Equal(t, -330, f.gamification.DefaultOffset(ctx, u.ID))
	assert.Equal(t, 0, f.gamification.DefaultOffset(ctx, 9999))
}
