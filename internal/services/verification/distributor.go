// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"golang.org/x/sync/errgroup"

	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/services/email"
)

// PinLength is the number of digits in a verification PIN.
const PinLength = 6

var pinSpace = big.NewInt(1_000_000)

// GeneratePin returns a random zero-padded numeric PIN.
func GeneratePin() (string, error) {
	n, err := rand.Int(rand.Reader, pinSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate PIN: %w", err)
	}
	return fmt.Sprintf("%0*d", PinLength, n.Int64()), nil
}

// Distribution reports how many PINs were issued and delivered.
type Distribution struct {
	Issued int `json:"issued"`
	Sent   int `json:"sent"`
}

// Distribute issues one PIN per contact of the owner, emails them and moves
// the request to pins_sent. A failed email is logged and does not undo the
// PINs that were delivered. Without contacts the request fails for good.
//
// A pending request that already has PINs was interrupted after issuing
// them; Distribute then resends the PINs not marked sent and finishes the
// transition.
func (s *Service) Distribute(ctx context.Context, id string) (*Distribution, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, req.Status)
	}
	user, err := s.repo.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	pins, resumed, err := s.issuePins(ctx, req)
	if err != nil {
		return nil, err
	}

	dist := &Distribution{Issued: len(pins)}
	var unsent []int
	for i := range pins {
		if pins[i].SentAt != nil {
			dist.Sent++
			continue
		}
		unsent = append(unsent, i)
	}
	if resumed {
		slog.Info("resuming PIN distribution", "verification_id", id, "unsent", len(unsent))
	}
	sent := s.sendPins(ctx, user, pins, unsent)

	// the PINs may already be in inboxes, so a cancelled caller must not
	// leave the request pending
	ctx = context.WithoutCancel(ctx)
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		for _, i := range sent {
			if err := tx.MarkPinSent(ctx, pins[i].ID, s.now()); err != nil {
				return err
			}
			dist.Sent++
		}
		if err := tx.TransitionVerificationRequest(ctx, id, models.StatusPending, models.StatusPinsSent, "", s.now()); err != nil {
			return err
		}
		return tx.CreateAuditLog(ctx, req.UserID, models.AuditPinsSent,
			fmt.Sprintf("verification %s: %d of %d PINs sent", id, dist.Sent, dist.Issued), s.now())
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("record PIN delivery: %w", err)
	}
	req.Status = models.StatusPinsSent
	slog.Info("PINs distributed", "verification_id", id, "user_id", req.UserID,
		"issued", dist.Issued, "sent", dist.Sent)

	s.noticeExecutor(ctx, req, user)
	s.notify(req)
	return dist, nil
}

// issuePins creates the PIN rows of a pending request, or returns the rows
// of an earlier interrupted run with resumed set.
func (s *Service) issuePins(
	ctx context.Context, req *models.VerificationRequest,
) (pins []models.VerificationPin, resumed bool, err error) {
	existing, err := s.repo.ListPins(ctx, req.ID)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return existing, true, nil
	}
	contacts, err := s.repo.ListContacts(ctx, req.UserID)
	if err != nil {
		return nil, false, err
	}
	if len(contacts) == 0 {
		return nil, false, s.fail(ctx, req, ErrNoContacts)
	}

	now := s.now()
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		existing, err := tx.ListPins(ctx, req.ID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			// a concurrent run issued them first
			pins, resumed = existing, true
			return nil
		}
		seen := make(map[string]bool, len(contacts))
		for _, c := range contacts {
			code, err := uniquePin(seen)
			if err != nil {
				return err
			}
			p := models.VerificationPin{
				VerificationRequestID: req.ID,
				ContactID:             c.ID,
				ContactType:           c.Type,
				ContactName:           c.Name,
				ContactEmail:          c.Email,
				PinCode:               code,
				ExpiresAt:             req.ExpiresAt,
				CreatedAt:             now,
			}
			if err := tx.CreatePin(ctx, &p); err != nil {
				return fmt.Errorf("create PIN for contact %d: %w", c.ID, err)
			}
			pins = append(pins, p)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return pins, resumed, nil
}

func uniquePin(seen map[string]bool) (string, error) {
	for {
		code, err := GeneratePin()
		if err != nil {
			return "", err
		}
		if !seen[code] {
			seen[code] = true
			return code, nil
		}
	}
}

// sendPins emails the PINs at the given indices concurrently and returns
// the indices that were delivered.
func (s *Service) sendPins(ctx context.Context, user *models.User, pins []models.VerificationPin, idx []int) []int {
	ok := make([]bool, len(idx))
	var g errgroup.Group
	g.SetLimit(s.sendLimit)
	for n, i := range idx {
		p := pins[i]
		g.Go(func() error {
			err := s.mailer.SendPin(ctx, email.PinEmail{
				To:          p.ContactEmail,
				ContactName: p.ContactName,
				ContactType: string(p.ContactType),
				UserName:    user.DisplayName(),
				Pin:         p.PinCode,
				ExpiresAt:   p.ExpiresAt,
			})
			if err != nil {
				slog.Error("failed to send PIN", "verification_id", p.VerificationRequestID,
					"contact_id", p.ContactID, "error", err)
				return nil
			}
			ok[n] = true
			return nil
		})
	}
	_ = g.Wait()

	var sent []int
	for n, i := range idx {
		if ok[n] {
			sent = append(sent, i)
		}
	}
	return sent
}

func (s *Service) noticeExecutor(ctx context.Context, req *models.VerificationRequest, user *models.User) {
	executor, err := s.repo.GetPrimaryExecutor(ctx, req.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Warn("no executor to notify", "verification_id", req.ID, "user_id", req.UserID)
		return
	}
	if err != nil {
		slog.Error("failed to load executor", "verification_id", req.ID, "error", err)
		return
	}
	err = s.mailer.SendExecutorNotice(ctx, email.ExecutorEmail{
		To:             executor.Email,
		ContactName:    executor.Name,
		UserName:       user.DisplayName(),
		VerificationID: req.ID,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		slog.Error("failed to notify executor", "verification_id", req.ID, "contact_id", executor.ID, "error", err)
	}
}

// fail ends a pending request that cannot proceed and returns cause.
func (s *Service) fail(ctx context.Context, req *models.VerificationRequest, cause error) error {
	now := s.now()
	result := cause.Error()
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.TransitionVerificationRequest(ctx, req.ID, req.Status, models.StatusFailed, result, now); err != nil {
			return err
		}
		return tx.CreateAuditLog(ctx, req.UserID, models.AuditVerificationFailed,
			fmt.Sprintf("verification %s failed: %s", req.ID, result), now)
	})
	if errors.Is(err, repository.ErrConflict) {
		return ErrInvalidState
	}
	if err != nil {
		return err
	}
	req.Status = models.StatusFailed
	req.VerificationResult = result
	slog.Warn("verification failed", "verification_id", req.ID, "user_id", req.UserID, "reason", result)
	s.notify(req)
	return cause
}

// ResendPin emails the PIN of one contact again.
func (s *Service) ResendPin(ctx context.Context, id string, contactID int64) error {
	req, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.Status == models.StatusExpired {
		return ErrExpired
	}
	if req.Status != models.StatusPinsSent {
		return fmt.Errorf("%w: %s", ErrInvalidState, req.Status)
	}
	pin, err := s.repo.GetPinForContact(ctx, id, contactID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPinNotFound
	}
	if err != nil {
		return err
	}
	user, err := s.repo.GetUserByID(ctx, req.UserID)
	if err != nil {
		return err
	}
	err = s.mailer.SendPin(ctx, email.PinEmail{
		To:          pin.ContactEmail,
		ContactName: pin.ContactName,
		ContactType: string(pin.ContactType),
		UserName:    user.DisplayName(),
		Pin:         pin.PinCode,
		ExpiresAt:   pin.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	if err := s.repo.MarkPinSent(ctx, pin.ID, s.now()); err != nil {
		return err
	}
	slog.Info("PIN resent", "verification_id", id, "contact_id", contactID)
	s.notify(req)
	return nil
}
