// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email renders and delivers the notification emails of the
// verification workflow.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/willtank/willtank/internal/config"
	"codeberg.org/willtank/willtank/internal/i18n"
)

// Sender delivers a single plain-text message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Service composes translated messages and hands them to a Sender.
type Service struct {
	sender  Sender
	baseURL string
}

// NewService creates a new email service.
func NewService(sender Sender, baseURL string) *Service {
	return &Service{
		sender:  sender,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// NewFromConfig uses SMTP when it is configured and logs messages otherwise.
func NewFromConfig(cfg *config.SMTPConfig, baseURL string) (*Service, error) {
	if !cfg.MailEnabled() {
		slog.Warn("SMTP not configured, emails are only logged")
		return NewService(LogSender{}, baseURL), nil
	}
	smtp, err := NewSMTPSender(cfg)
	if err != nil {
		return nil, err
	}
	return NewService(smtp, baseURL), nil
}

// PortalURL is the executor's unlock page for a verification request.
func (s *Service) PortalURL(verificationID string) string {
	return fmt.Sprintf("%s/verify/%s", s.baseURL, verificationID)
}

// PinEmail is a verification PIN for one contact.
type PinEmail struct {
	To          string
	ContactName string
	ContactType string
	UserName    string
	Pin         string
	ExpiresAt   time.Time
}

// SendPin delivers a contact's verification PIN.
func (s *Service) SendPin(ctx context.Context, m PinEmail) error {
	data := map[string]any{
		"ContactName": m.ContactName,
		"ContactType": m.ContactType,
		"UserName":    m.UserName,
		"Pin":         m.Pin,
		"ExpiresAt":   i18n.FormatTime(ctx, m.ExpiresAt),
	}
	return s.sender.Send(ctx, m.To,
		i18n.TData(ctx, "email_pin_subject", data),
		i18n.TData(ctx, "email_pin_body", data))
}

// ExecutorEmail tells the executor where to enter the PINs.
type ExecutorEmail struct {
	To             string
	ContactName    string
	UserName       string
	VerificationID string
	ExpiresAt      time.Time
}

// SendExecutorNotice delivers the unlock portal link to the executor.
func (s *Service) SendExecutorNotice(ctx context.Context, m ExecutorEmail) error {
	data := map[string]any{
		"ContactName": m.ContactName,
		"UserName":    m.UserName,
		"PortalURL":   s.PortalURL(m.VerificationID),
		"ExpiresAt":   i18n.FormatTime(ctx, m.ExpiresAt),
	}
	return s.sender.Send(ctx, m.To,
		i18n.TData(ctx, "email_executor_subject", data),
		i18n.TData(ctx, "email_executor_body", data))
}

// ReminderEmail asks an owner to check in before the grace period ends.
type ReminderEmail struct {
	To         string
	UserName   string
	DueAt      time.Time
	DeadlineAt time.Time
}

// SendCheckinReminder delivers a check-in reminder to the owner.
func (s *Service) SendCheckinReminder(ctx context.Context, m ReminderEmail) error {
	data := map[string]any{
		"UserName":   m.UserName,
		"DueAt":      i18n.FormatTime(ctx, m.DueAt),
		"DeadlineAt": i18n.FormatTime(ctx, m.DeadlineAt),
		"CheckinURL": s.baseURL + "/",
	}
	return s.sender.Send(ctx, m.To,
		i18n.TData(ctx, "email_reminder_subject", data),
		i18n.TData(ctx, "email_reminder_body", data))
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct{}

// Send logs the message.
func (LogSender) Send(_ context.Context, to, subject, body string) error {
	slog.Info("email not sent, SMTP disabled", "to", to, "subject", subject, "body", body)
	return nil
}
