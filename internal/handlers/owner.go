// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/services/checkin"
	"codeberg.org/willtank/willtank/internal/storage"
)

type settingsResponse struct {
	*models.VerificationSettings
	NotificationChannels []string              `json:"notificationChannels"`
	LatestCheckin        *models.CheckinRecord `json:"latestCheckin,omitempty"`
}

func (h *Handlers) settingsResponse(c echo.Context, s *models.VerificationSettings) error {
	latest, err := h.Checkins.Latest(c.Request().Context(), s.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apiError(c, err)
	}
	channels := s.Channels()
	if channels == nil {
		channels = []string{}
	}
	return c.JSON(http.StatusOK, settingsResponse{
		VerificationSettings: s,
		NotificationChannels: channels,
		LatestCheckin:        latest,
	})
}

// GetSettings returns the owner's verification settings.
func (h *Handlers) GetSettings(c echo.Context) error {
	s, err := h.Checkins.Settings(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return apiError(c, err)
	}
	return h.settingsResponse(c, s)
}

// UpdateSettings changes the owner's verification settings.
func (h *Handlers) UpdateSettings(c echo.Context) error {
	var upd checkin.SettingsUpdate
	if err := bind(c, &upd); err != nil {
		return apiError(c, err)
	}
	s, err := h.Checkins.UpdateSettings(c.Request().Context(), currentUser(c).ID, upd)
	if err != nil {
		return apiError(c, err)
	}
	return h.settingsResponse(c, s)
}

// CheckIn records that the owner is alive.
func (h *Handlers) CheckIn(c echo.Context) error {
	rec, err := h.Checkins.CheckIn(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

// CheckinHistory lists recent check-ins, newest first.
func (h *Handlers) CheckinHistory(c echo.Context) error {
	var limit int
	_ = echo.QueryParamsBinder(c).Int("limit", &limit).BindError()
	list, err := h.Checkins.History(c.Request().Context(), currentUser(c).ID, limit)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

type contactRequest struct {
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	ContactType models.ContactType `json:"contact_type"`
}

func (r *contactRequest) validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", errBadRequest)
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return fmt.Errorf("%w: invalid email address", errBadRequest)
	}
	if !r.ContactType.Valid() {
		return fmt.Errorf("%w: contact type must be beneficiary, executor or trusted", errBadRequest)
	}
	return nil
}

// ListContacts returns the owner's contacts.
func (h *Handlers) ListContacts(c echo.Context) error {
	list, err := h.Repo.ListContacts(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return apiError(c, err)
	}
	if list == nil {
		list = []models.Contact{}
	}
	return c.JSON(http.StatusOK, list)
}

// CreateContact adds a contact. Contacts added while a verification is
// running do not receive a PIN for it.
func (h *Handlers) CreateContact(c echo.Context) error {
	var req contactRequest
	if err := bind(c, &req); err != nil {
		return apiError(c, err)
	}
	if err := req.validate(); err != nil {
		return apiError(c, err)
	}
	contact := &models.Contact{
		UserID: currentUser(c).ID,
		Name:   req.Name,
		Email:  req.Email,
		Type:   req.ContactType,
	}
	if err := h.Repo.CreateContact(c.Request().Context(), contact); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusCreated, contact)
}

// GetContact returns one of the owner's contacts.
func (h *Handlers) GetContact(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return apiError(c, err)
	}
	contact, err := h.Repo.GetContact(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, contact)
}

// DeleteContact removes one of the owner's contacts.
func (h *Handlers) DeleteContact(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return apiError(c, err)
	}
	err = h.Repo.DeleteContact(c.Request().Context(), currentUser(c).ID, id)
	if errors.Is(err, repository.ErrConflict) {
		err = repository.ErrNotFound
	}
	if err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetWill returns the owner's will.
func (h *Handlers) GetWill(c echo.Context) error {
	w, err := h.Repo.GetWill(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, w)
}

// PutWill stores the owner's will.
func (h *Handlers) PutWill(c echo.Context) error {
	var w models.Will
	if err := bind(c, &w); err != nil {
		return apiError(c, err)
	}
	w.UserID = currentUser(c).ID
	w.UpdatedAt = time.Now().UTC()
	if strings.TrimSpace(w.Content) == "" {
		return apiError(c, fmt.Errorf("%w: content is required", errBadRequest))
	}
	if err := h.Repo.UpsertWill(c.Request().Context(), &w); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, &w)
}

// ListDocuments returns the owner's documents.
func (h *Handlers) ListDocuments(c echo.Context) error {
	list, err := h.Repo.ListDocuments(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return apiError(c, err)
	}
	if list == nil {
		list = []models.Document{}
	}
	return c.JSON(http.StatusOK, list)
}

// UploadDocument stores the multipart field "file" in the blob store.
func (h *Handlers) UploadDocument(c echo.Context) error {
	ctx := c.Request().Context()
	user := currentUser(c)

	fh, err := c.FormFile("file")
	if err != nil {
		return apiError(c, fmt.Errorf("%w: file is required", errBadRequest))
	}
	if fh.Size > h.MaxUpload {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return apiError(c, err)
	}
	defer f.Close()

	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := storage.NewKey(user.ID, time.Now().UTC())
	if err := h.Store.Put(ctx, key, f, fh.Size, contentType); err != nil {
		return apiError(c, fmt.Errorf("store document: %w", err))
	}
	doc := &models.Document{
		UserID:      user.ID,
		Name:        filepath.Base(fh.Filename),
		ContentType: contentType,
		Size:        fh.Size,
		StorageKey:  key,
	}
	if err := h.Repo.CreateDocument(ctx, doc); err != nil {
		if delErr := h.Store.Delete(ctx, key); delErr != nil {
			slog.Error("failed to remove orphaned blob", "key", key, "error", delErr)
		}
		return apiError(c, err)
	}
	slog.Info("document uploaded", "user_id", user.ID, "document_id", doc.ID, "size", doc.Size)
	return c.JSON(http.StatusCreated, doc)
}

// DeleteDocument removes a document and its blob.
func (h *Handlers) DeleteDocument(c echo.Context) error {
	ctx := c.Request().Context()
	user := currentUser(c)
	id, err := idParam(c, "id")
	if err != nil {
		return apiError(c, err)
	}
	doc, err := h.Repo.GetDocument(ctx, user.ID, id)
	if err != nil {
		return apiError(c, err)
	}
	if err := h.Repo.DeleteDocument(ctx, user.ID, id); err != nil {
		return apiError(c, err)
	}
	if err := h.Store.Delete(ctx, doc.StorageKey); err != nil {
		slog.Error("failed to delete blob", "document_id", id, "key", doc.StorageKey, "error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AuditLog lists the verification history of the owner's account.
func (h *Handlers) AuditLog(c echo.Context) error {
	list, err := h.Repo.ListAuditLogs(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return apiError(c, err)
	}
	if list == nil {
		list = []models.AuditLog{}
	}
	return c.JSON(http.StatusOK, list)
}
