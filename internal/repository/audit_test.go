// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/testutil"
)

func TestAuditLogs_Ordered(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "ada@example.com")

	require.NoError(t, repo.CreateAuditLog(ctx, user.ID, models.AuditVerified, "first", testutil.Epoch))
	require.NoError(t, repo.CreateAuditLog(ctx, user.ID, models.AuditWillUnlocked, "second", testutil.Epoch))

	logs, err := repo.ListAuditLogs(ctx, user.ID)

	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditVerified, logs[0].Action)
	assert.Equal(t, models.AuditWillUnlocked, logs[1].Action)
}
