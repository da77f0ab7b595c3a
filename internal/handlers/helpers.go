// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"fmt"
	"strconv"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"codeberg.org/willtank/willtank/internal/auth"
	"codeberg.org/willtank/willtank/internal/models"
)

// AccessTokenHeader carries the executor's document access token.
const AccessTokenHeader = "X-Access-Token"

// Render renders a templ component with the given status code.
func Render(c echo.Context, statusCode int, component templ.Component) error {
	buf := templ.GetBuffer()
	defer templ.ReleaseBuffer(buf)

	if err := component.Render(c.Request().Context(), buf); err != nil {
		return err
	}

	return c.HTML(statusCode, buf.String())
}

// bind decodes the request body into v.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return fmt.Errorf("%w: %s", errBadRequest, "malformed request body")
	}
	return nil
}

// currentUser returns the signed-in owner. Routes using it sit behind
// RequireAuth.
func currentUser(c echo.Context) *models.User {
	return auth.GetUser(c.Request().Context())
}

func idParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return id, nil
}

func accessToken(c echo.Context) string {
	if t := c.Request().Header.Get(AccessTokenHeader); t != "" {
		return t
	}
	return c.FormValue("token")
}
