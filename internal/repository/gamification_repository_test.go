package repository

import (
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/testutil"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstStreakReadsShareOneRow(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	u := testutil.User(t, db, "ada@example.edu", nil)
	repo := NewGamificationRepository(db)

	// 两次首次完成交错执行：都先读再写
	first, err := repo.GetStreakForUpdate(ctx, u.ID)
	require.NoError(t, err)
	second, err := repo.GetStreakForUpdate(ctx, u.ID)
	require.NoError(t, err)
	require.NotZero(t, first.ID)
	assert.Equal(t, first.ID, second.ID)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	first.CurrentStreak, first.LongestStreak, first.LastActivityDate = 1, 1, &day
	require.NoError(t, repo.SaveStreak(ctx, first))
	second.CurrentStreak, second.LongestStreak, second.LastActivityDate = 1, 1, &day
	require.NoError(t, repo.SaveStreak(ctx, second))

	var count int64
	require.NoError(t, db.Model(&model.UserStreak{}).Where("user_id = ?", u.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetStreakForUpdateKeepsExistingRow(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	u := testutil.User(t, db, "ada@example.edu", nil)
	repo := NewGamificationRepository(db)

	require.NoError(t, db.Create(&model.UserStreak{UserID: u.ID, CurrentStreak: 4, LongestStreak: 9}).Error)

	s, err := repo.GetStreakForUpdate(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, s.CurrentStreak)
	assert.Equal(t, 9, s.LongestStreak)
}
