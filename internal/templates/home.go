// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Home is the landing page.
func Home() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			h := &html{w: w}
			h.f(`<h1>%s</h1><p>%s</p>`, T(ctx, "app_name"), T(ctx, "home_intro"))
			if GetUser(ctx) == nil {
				h.f(`<p><a href="/auth/login">%s</a></p>`, T(ctx, "home_login"))
			}
			return h.err
		})
		return Layout(T(ctx, "app_name"), body).Render(ctx, w)
	})
}
