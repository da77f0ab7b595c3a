// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"codeberg.org/willtank/willtank/internal/config"
	"codeberg.org/willtank/willtank/internal/ctxkeys"
	"codeberg.org/willtank/willtank/internal/i18n"
	authmw "codeberg.org/willtank/willtank/internal/middleware"
)

func setupMiddleware(e *echo.Echo, cfg *config.Config, a *app) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger())
	e.Use(middleware.Secure())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{Skipper: isEventStream}))
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Server.MaxBodySize)))
	e.Use(csrfMiddleware(cfg))
	e.Use(csrfToContext())
	e.Use(i18nMiddleware())
	e.Use(authmw.LoadUser(a.sessions, a.repo))
}

// csrfExempt lists the prefixes of routes that authenticate with a header
// or a signed link instead of a cookie.
var csrfExempt = []string{"/api/", "/files", "/health"}

// isAPIRequest reports whether CSRF checks are skipped for the request.
// Owner API and auth calls rely on the session cookie, so they are exempt
// only when they send JSON, which a cross-site form cannot do.
func isAPIRequest(c echo.Context) bool {
	path := c.Request().URL.Path
	if strings.HasPrefix(path, "/api/me/") || strings.HasPrefix(path, "/auth/") {
		ct := c.Request().Header.Get(echo.HeaderContentType)
		return strings.HasPrefix(ct, echo.MIMEApplicationJSON)
	}
	for _, prefix := range csrfExempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// csrfMiddleware configures CSRF protection.
func csrfMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	secure := strings.HasPrefix(cfg.Server.BaseURL, "https://")

	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper:        isAPIRequest,
		TokenLookup:    "form:csrf_token,header:X-CSRF-Token",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSecure:   secure,
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
	})
}

// csrfToContext copies the CSRF token to the request context.
func csrfToContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token, ok := c.Get("csrf").(string); ok {
				ctx := context.WithValue(c.Request().Context(), ctxkeys.CSRFToken{}, token)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// isEventStream keeps SSE responses unbuffered.
func isEventStream(c echo.Context) bool {
	return strings.HasSuffix(c.Request().URL.Path, "/events")
}

// requestLogger returns middleware that logs requests using slog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", redactURI(v.URI)),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				slog.LogAttrs(c.Request().Context(), slog.LevelError, "request", attrs...)
			} else {
				slog.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			}

			return nil
		},
	})
}

// redactURI drops the query of signed download links from the log.
func redactURI(uri string) string {
	if strings.HasPrefix(uri, "/files?") {
		return "/files?t=REDACTED"
	}
	return uri
}

// i18nMiddleware sets the locale based on Accept-Language header.
func i18nMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acceptLang := c.Request().Header.Get("Accept-Language")
			lang := i18n.MatchLanguage(acceptLang)
			ctx := i18n.WithLocale(c.Request().Context(), lang)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
