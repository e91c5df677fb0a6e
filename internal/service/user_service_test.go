package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner-reminders/internal/repository"
)

func TestIdentifyRegistersAndReuses(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(repository.NewUserRepository(db))
	ctx := context.Background()

	first, err := users.Identify(ctx, 42, "Ivan", "Petrov", "ivanp")
	require.NoError(t, err)
	assert.Equal(t, "UTC", first.Timezone, "new users default to UTC")

	second, err := users.Identify(ctx, 42, "Ivan", "Petrov", "ivanp")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestSetTimezone(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(repository.NewUserRepository(db))
	ctx := context.Background()

	user, err := users.Identify(ctx, 42, "Ivan", "", "")
	require.NoError(t, err)

	require.NoError(t, users.SetTimezone(ctx, user, "Europe/Moscow"))
	assert.Equal(t, "Europe/Moscow", user.Timezone)

	reloaded, err := users.Identify(ctx, 42, "Ivan", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", reloaded.Timezone)
}

func TestSetTimezoneRejectsUnknownZone(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(repository.NewUserRepository(db))
	ctx := context.Background()

	user, err := users.Identify(ctx, 42, "Ivan", "", "")
	require.NoError(t, err)

	err = users.SetTimezone(ctx, user, "Mars/Olympus_Mons")
	assert.Error(t, err)
	assert.Equal(t, "UTC", user.Timezone, "a rejected zone leaves the user unchanged")
}
