// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/testutil"
)

func TestPins(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "ada@example.com")
	bob := testutil.NewTestContact(t, repo, user.ID, "bob", models.ContactBeneficiary)
	carol := testutil.NewTestContact(t, repo, user.ID, "carol", models.ContactExecutor)
	req := newRequest(user.ID, models.StatusPending)
	_, err := repo.CreateVerificationRequest(ctx, req)
	require.NoError(t, err)

	for i, c := range []*models.Contact{bob, carol} {
		p := &models.VerificationPin{
			VerificationRequestID: req.ID,
			ContactID:             c.ID,
			ContactType:           c.Type,
			ContactName:           c.Name,
			ContactEmail:          c.Email,
			PinCode:               []string{"111111", "222222"}[i],
			ExpiresAt:             req.ExpiresAt,
			CreatedAt:             testutil.Epoch,
		}
		require.NoError(t, repo.CreatePin(ctx, p))
		assert.NotZero(t, p.ID)
	}

	pins, err := repo.ListPins(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, pins, 2)
	assert.Equal(t, "111111", pins[0].PinCode)
	assert.Equal(t, "222222", pins[1].PinCode)
	assert.Nil(t, pins[0].SentAt)

	sent := testutil.Epoch.Add(time.Minute)
	require.NoError(t, repo.MarkPinSent(ctx, pins[0].ID, sent))
	require.NoError(t, repo.MarkPinsUsed(ctx, req.ID))

	p, err := repo.GetPinForContact(ctx, req.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, pins[0].ID, p.ID)
	require.NotNil(t, p.SentAt)
	assert.True(t, sent.Equal(*p.SentAt))
	assert.True(t, p.Used)

	_, err = repo.GetPinForContact(ctx, req.ID, 9999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPins_UniqueWithinRequest(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "ada@example.com")
	bob := testutil.NewTestContact(t, repo, user.ID, "bob", models.ContactBeneficiary)
	carol := testutil.NewTestContact(t, repo, user.ID, "carol", models.ContactTrusted)
	req := newRequest(user.ID, models.StatusPending)
	_, err := repo.CreateVerificationRequest(ctx, req)
	require.NoError(t, err)

	pin := func(c *models.Contact) *models.VerificationPin {
		return &models.VerificationPin{
			VerificationRequestID: req.ID, ContactID: c.ID, ContactType: c.Type,
			ContactName: c.Name, ContactEmail: c.Email, PinCode: "123456",
			ExpiresAt: req.ExpiresAt, CreatedAt: testutil.Epoch,
		}
	}
	require.NoError(t, repo.CreatePin(ctx, pin(bob)))

	assert.Error(t, repo.CreatePin(ctx, pin(carol)))
}
