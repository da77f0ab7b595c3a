// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/testutil"
)

func TestCreateSettings_KeepsExisting(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "ada@example.com")
	testutil.NewTestSettings(t, repo, user.ID, 14, 3, testutil.Epoch)

	s, err := repo.CreateSettings(ctx, &models.VerificationSettings{
		UserID:               user.ID,
		CheckInFrequencyDays: 30,
		GracePeriodDays:      7,
		CheckInEnabled:       true,
		NotificationChannels: models.ChannelEmail,
		UnlockMode:           models.UnlockModePin,
	})

	require.NoError(t, err)
	assert.Equal(t, 14, s.CheckInFrequencyDays)
	assert.Equal(t, 3, s.GracePeriodDays)
}

func TestUpdateSettings(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "ada@example.com")
	s := testutil.NewTestSettings(t, repo, user.ID, 30, 7, testutil.Epoch)

	s.CheckInFrequencyDays = 10
	s.NotificationChannels = "email,sms"
	s.CheckInEnabled = false
	require.NoError(t, repo.UpdateSettings(ctx, s))

	got, err := repo.GetSettings(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.CheckInFrequencyDays)
	assert.Equal(t, []string{"email", "sms"}, got.Channels())
	assert.False(t, got.CheckInEnabled)
}

func TestUpdateSettings_Missing(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.UpdateSettings(context.Background(), &models.VerificationSettings{
		UserID: 42, CheckInFrequencyDays: 1,
	})

	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestUpdateSettings_RejectsInvalidFrequency(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "ada@example.com")
	s := testutil.NewTestSettings(t, repo, user.ID, 30, 7, testutil.Epoch)

	s.CheckInFrequencyDays = 0

	assert.Error(t, repo.UpdateSettings(context.Background(), s))
}

func TestListEnabledSettings(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	on := testutil.NewTestUser(t, repo, "on@example.com")
	off := testutil.NewTestUser(t, repo, "off@example.com")
	testutil.NewTestSettings(t, repo, on.ID, 30, 7, testutil.Epoch)
	s := testutil.NewTestSettings(t, repo, off.ID, 30, 7, testutil.Epoch)
	s.CheckInEnabled = false
	require.NoError(t, repo.UpdateSettings(ctx, s))

	list, err := repo.ListEnabledSettings(ctx)

	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, on.ID, list[0].UserID)
}
