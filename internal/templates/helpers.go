// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package templates renders the server-side HTML of the unlock portal.
package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"codeberg.org/willtank/willtank/internal/auth"
	"codeberg.org/willtank/willtank/internal/ctxkeys"
	"codeberg.org/willtank/willtank/internal/i18n"
	"codeberg.org/willtank/willtank/internal/models"
)

// CSRFToken returns the CSRF token from the context.
func CSRFToken(ctx context.Context) string {
	if token, ok := ctx.Value(ctxkeys.CSRFToken{}).(string); ok {
		return token
	}
	return ""
}

// T translates a message by ID.
func T(ctx context.Context, messageID string) string {
	return i18n.T(ctx, messageID)
}

// TData translates a message with template data.
func TData(ctx context.Context, messageID string, data map[string]any) string {
	return i18n.TData(ctx, messageID, data)
}

// TPlural translates a message that depends on count.
func TPlural(ctx context.Context, messageID string, count int) string {
	return i18n.TPlural(ctx, messageID, count)
}

// Locale returns the current locale.
func Locale(ctx context.Context) string {
	return i18n.GetLocale(ctx)
}

// GetUser returns the authenticated user from context, or nil if not logged in.
func GetUser(ctx context.Context) *models.User {
	return auth.GetUser(ctx)
}

// FormatTime renders t in UTC for the current locale.
func FormatTime(ctx context.Context, t time.Time) string {
	return i18n.FormatTime(ctx, t)
}

// html accumulates markup and remembers the first write error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

// text writes s escaped.
func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

// f writes a formatted fragment. Every argument is escaped.
func (h *html) f(format string, args ...any) {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = templ.EscapeString(fmt.Sprint(a))
	}
	h.raw(fmt.Sprintf(format, escaped...))
}

func (h *html) component(ctx context.Context, c templ.Component) {
	if h.err == nil && c != nil {
		h.err = c.Render(ctx, h.w)
	}
}
