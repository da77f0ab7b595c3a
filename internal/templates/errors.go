// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// ErrorPage renders a full error page that links back to a safe landing
// page and returns there after a short delay.
func ErrorPage(code int, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			h := &html{w: w}
			h.raw(`<meta http-equiv="refresh" content="10;url=/">`)
			h.f(`<section class="error"><h1>%s</h1><p class="code">%s</p>`, T(ctx, "error_title"), strconv.Itoa(code))
			h.f(`<p>%s</p><a href="/">%s</a></section>`, message, T(ctx, "error_back"))
			return h.err
		})
		return Layout(T(ctx, "error_title"), body).Render(ctx, w)
	})
}
