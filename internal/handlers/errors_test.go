// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/services/access"
	authsvc "codeberg.org/willtank/willtank/internal/services/auth"
	"codeberg.org/willtank/willtank/internal/services/checkin"
	"codeberg.org/willtank/willtank/internal/services/harness"
	"codeberg.org/willtank/willtank/internal/services/verification"
	"codeberg.org/willtank/willtank/internal/storage"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{authsvc.ErrInvalidCredentials, http.StatusUnauthorized},
		{access.ErrAccessDenied, http.StatusForbidden},
		{harness.ErrNotTestUser, http.StatusForbidden},
		{verification.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", repository.ErrNotFound), http.StatusNotFound},
		{storage.ErrNotFound, http.StatusNotFound},
		{verification.ErrExpired, http.StatusGone},
		{access.ErrAccessExpired, http.StatusGone},
		{storage.ErrInvalidLink, http.StatusGone},
		{verification.ErrInvalidState, http.StatusConflict},
		{authsvc.ErrUserExists, http.StatusConflict},
		{fmt.Errorf("%w: id", errBadRequest), http.StatusBadRequest},
		{&authsvc.PasswordError{Reasons: []string{"too short"}}, http.StatusBadRequest},
		{verification.ErrPinCount, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: frequency", checkin.ErrInvalidSettings), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: smtp down", verification.ErrDelivery), http.StatusBadGateway},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, statusFor(tt.err))
		})
	}
}
