// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/testutil"
)

func TestNew(t *testing.T) {
	db, repo := testutil.NewTestDB(t)

	assert.NotNil(t, repo)
	assert.Same(t, db, repo.DB())
}

func TestWithTx_Commit(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "owner@example.com")

	err := repo.WithTx(ctx, func(tx *repository.Repository) error {
		return tx.CreateAuditLog(ctx, user.ID, models.AuditPinsSent, "", testutil.Epoch)
	})
	require.NoError(t, err)

	logs, err := repo.ListAuditLogs(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestWithTx_Rollback(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "owner@example.com")
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateAuditLog(ctx, user.ID, models.AuditPinsSent, "", testutil.Epoch); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	logs, err := repo.ListAuditLogs(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestWithTx_Panic(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "owner@example.com")

	assert.Panics(t, func() {
		_ = repo.WithTx(ctx, func(tx *repository.Repository) error {
			_ = tx.CreateAuditLog(ctx, user.ID, models.AuditPinsSent, "", testutil.Epoch)
			panic("kaboom")
		})
	})

	logs, err := repo.ListAuditLogs(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestWithTx_Nested(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "owner@example.com")

	err := repo.WithTx(ctx, func(tx *repository.Repository) error {
		return tx.WithTx(ctx, func(inner *repository.Repository) error {
			return inner.CreateAuditLog(ctx, user.ID, models.AuditPinsSent, "", testutil.Epoch)
		})
	})
	require.NoError(t, err)

	logs, err := repo.ListAuditLogs(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
