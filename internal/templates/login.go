// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// LoginPage renders the sign-in form with an optional error message.
func LoginPage(message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			h := &html{w: w}
			h.f(`<h1>%s</h1>`, T(ctx, "login_title"))
			if message != "" {
				h.f(`<p class="error" role="alert">%s</p>`, message)
			}
			h.raw(`<form method="post" action="/auth/login">`)
			h.f(`<input type="hidden" name="csrf_token" value="%s">`, CSRFToken(ctx))
			h.f(`<label>%s <input type="email" name="email" autocomplete="username" required></label>`, T(ctx, "login_email"))
			h.f(`<label>%s <input type="password" name="password" autocomplete="current-password" required></label>`,
				T(ctx, "login_password"))
			h.f(`<button type="submit">%s</button></form>`, T(ctx, "home_login"))
			return h.err
		})
		return Layout(T(ctx, "login_title"), body).Render(ctx, w)
	})
}
