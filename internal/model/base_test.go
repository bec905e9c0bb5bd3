package model_test

import (
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/testutil"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDBaseAssignsIDs(t *testing.T) {
	db := testutil.DB(t)
	u := testutil.User(t, db, "ada@example.edu", nil)

	batch := []model.Task{
		{InstanceFields: model.InstanceFields{UserID: u.ID, Title: "a", Status: model.StatusOpen}},
		{InstanceFields: model.InstanceFields{UserID: u.ID, Title: "b", Status: model.StatusOpen}},
	}
	require.NoError(t, db.Create(&batch).Error)
	for _, task := range batch {
		_, err := uuid.Parse(task.ID)
		assert.NoError(t, err)
	}
	assert.NotEqual(t, batch[0].ID, batch[1].ID)

	preset := model.NewID()
	task := model.Task{UUIDBase: model.UUIDBase{ID: preset}, InstanceFields: model.InstanceFields{UserID: u.ID, Title: "c", Status: model.StatusOpen}}
	require.NoError(t, db.Create(&task).Error)
	assert.Equal(t, preset, task.ID)
}
