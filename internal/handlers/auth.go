// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"codeberg.org/willtank/willtank/internal/htmx"
	authsvc "codeberg.org/willtank/willtank/internal/services/auth"
	"codeberg.org/willtank/willtank/internal/templates"
)

type credentials struct {
	Email    string `json:"email" form:"email"`
	Name     string `json:"name" form:"name"`
	Password string `json:"password" form:"password"`
}

func wantsJSON(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

// LoginPage renders the sign-in form.
func (h *Handlers) LoginPage(c echo.Context) error {
	return Render(c, http.StatusOK, templates.LoginPage(""))
}

// Register creates an account and signs it in.
func (h *Handlers) Register(c echo.Context) error {
	var req credentials
	if err := bind(c, &req); err != nil {
		return apiError(c, err)
	}
	user, err := h.Auth.Register(c.Request().Context(), authsvc.RegisterParams{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		return apiError(c, err)
	}
	cookie, err := h.Sessions.Create(user.ID, user.Email)
	if err != nil {
		return apiError(c, err)
	}
	c.SetCookie(cookie)
	return c.JSON(http.StatusCreated, user)
}

// Login checks the credentials and sets the session cookie.
func (h *Handlers) Login(c echo.Context) error {
	var req credentials
	if err := bind(c, &req); err != nil {
		return apiError(c, err)
	}
	user, err := h.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if !wantsJSON(c) && statusFor(err) == http.StatusUnauthorized {
			return Render(c, http.StatusUnauthorized, templates.LoginPage(templates.T(c.Request().Context(), "login_failed")))
		}
		return apiError(c, err)
	}
	cookie, err := h.Sessions.Create(user.ID, user.Email)
	if err != nil {
		return apiError(c, err)
	}
	c.SetCookie(cookie)
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, user)
	}
	htmx.Redirect(c.Response(), c.Request(), "/")
	return nil
}

// Logout clears the session cookie.
func (h *Handlers) Logout(c echo.Context) error {
	c.SetCookie(h.Sessions.Clear())
	if wantsJSON(c) {
		return c.NoContent(http.StatusNoContent)
	}
	htmx.Redirect(c.Response(), c.Request(), "/")
	return nil
}
