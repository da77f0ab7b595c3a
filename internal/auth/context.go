// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth carries the signed-in account owner through a request.
package auth

import (
	"context"

	"codeberg.org/willtank/willtank/internal/ctxkeys"
	"codeberg.org/willtank/willtank/internal/models"
)

// WithUser returns a copy of ctx that carries user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ctxkeys.User{}, user)
}

// GetUser returns the authenticated user from the context, or nil if not authenticated.
func GetUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(ctxkeys.User{}).(*models.User); ok {
		return user
	}
	return nil
}

// IsAuthenticated returns true if the context has an authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	return GetUser(ctx) != nil
}
