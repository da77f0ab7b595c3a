// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth registers and authenticates account owners.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/repository"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email format")
)

// dummyHash keeps failed logins for unknown emails as slow as real ones
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Provisioner sets up the per-user records a new account needs. It runs in
// the registration transaction.
type Provisioner interface {
	Provision(ctx context.Context, tx *repository.Repository, userID int64) error
}

type Service struct {
	repo        *repository.Repository
	provisioner Provisioner
	passwords   *PasswordValidator
}

func NewService(repo *repository.Repository, p Provisioner) *Service {
	return &Service{
		repo:        repo,
		provisioner: p,
		passwords:   DefaultPasswordValidator(),
	}
}

// RegisterParams holds the parameters for user registration
type RegisterParams struct {
	Email    string
	Name     string
	Password string
}

// Register creates a new account together with its verification settings
// and initial check-in.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	if _, err := mail.ParseAddress(params.Email); err != nil {
		return nil, ErrInvalidEmail
	}

	if err := s.passwords.Validate(params.Password, params.Email, params.Name); err != nil {
		return nil, err
	}

	exists, err := s.repo.EmailExists(ctx, params.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var user *models.User
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		user, err = tx.CreateUser(ctx, params.Email, strings.TrimSpace(params.Name), string(passwordHash))
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		if s.provisioner != nil {
			return s.provisioner.Provision(ctx, tx, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("register_success", "user_id", user.ID)
	return user, nil
}

// Login authenticates a user and returns the user if successful
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "user_id", user.ID, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	slog.Info("login_success", "user_id", user.ID)
	return user, nil
}
