package service

import (
	"college_orbit_backend/internal/testutil"
	"college_orbit_backend/internal/util"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuth(f *fixture) *AuthService {
	return NewAuthService(f.users, f.colleges, f.cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	college := testutil.College(t, f.db, "orbit")
	auth := newAuth(f)

	user, err := auth.Register(ctx, RegisterRequest{
		Name:           " Ada ",
		Email:          "Ada@Example.EDU",
		Password:       "correct-horse",
		CollegeID:      &college.ID,
		TimezoneOffset: -60,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, "ada@example.edu", user.Email)
	assert.NotEqual(t, "correct-horse", user.Password)
	assert.Equal(t, -60, user.TimezoneOffset)

	_, err = auth.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.edu", Password: "another-pass"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	res, err := auth.Login(ctx, LoginRequest{Email: "ADA@example.edu", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotNil(t, res.User.LastLogin)

	claims, err := util.ParseJWT(res.Token, f.cfg.JWT.Secret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, err = auth.Login(ctx, LoginRequest{Email: "ada@example.edu", Password: "wrong-password"})
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, err = auth.Login(ctx, LoginRequest{Email: "nobody@example.edu", Password: "whatever"})
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth := newAuth(f)
	missing := uint(42)

	_, err := auth.Register(ctx, RegisterRequest{Name: "Ada", Email: "not-an-email", Password: "correct-horse"})
	assert.ErrorIs(t, err, util.ErrValidation)
	_, err = auth.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.edu", Password: "short"})
	assert.ErrorIs(t, err, util.ErrValidation)
	_, err = auth.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.edu", Password: "correct-horse", CollegeID: &missing})
	assert.ErrorIs(t, err, util.ErrValidation)
	_, err = auth.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.edu", Password: "correct-horse", TimezoneOffset: 2000})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestDisabledUserCannotLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth := newAuth(f)
	user, err := auth.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.edu", Password: "correct-horse"})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(user).Update("disabled", true).Error)

	_, err = auth.Login(ctx, LoginRequest{Email: "ada@example.edu", Password: "correct-horse"})
	assert.ErrorIs(t, err, util.ErrUserDisabled)
}

func TestSetCollegeAndTimezone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth := newAuth(f)
	college := testutil.College(t, f.db, "orbit")
	u := f.user(t, "ada@example.edu", nil)

	updated, err := auth.SetCollege(ctx, u.ID, &college.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.CollegeID)
	assert.Equal(t, college.ID, *updated.CollegeID)

	missing := uint(999)
	_, err = auth.SetCollege(ctx, u.ID, &missing)
	assert.ErrorIs(t, err, util.ErrNotFound)

	left, err := auth.SetCollege(ctx, u.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, left.CollegeID)

	require.NoError(t, auth.SetTimezone(ctx, u.ID, 480))
	assert.Equal(t, 480, f.reloadUser(t, u.ID).TimezoneOffset)
	assert.ErrorIs(t, auth.SetTimezone(ctx, u.ID, -900), util.ErrValidation)

	_, err = auth.Profile(ctx, 12345)
	assert.ErrorIs(t, err, util.ErrUnauthorized)
}
