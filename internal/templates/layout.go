// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const (
	htmxScript = "https://unpkg.com/htmx.org@2.0.4/dist/htmx.min.js"
	sseScript  = "https://unpkg.com/htmx-ext-sse@2.2.2/sse.js"
)

// Layout wraps body in the base page.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.f(`<!doctype html><html lang="%s"><head><meta charset="utf-8">`, Locale(ctx))
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.f(`<meta name="csrf-token" content="%s">`, CSRFToken(ctx))
		h.f(`<title>%s | %s</title>`, title, T(ctx, "app_name"))
		h.f(`<script src="%s"></script><script src="%s"></script>`, htmxScript, sseScript)
		h.f(`</head><body hx-headers='{"X-CSRF-Token": "%s"}'><main>`, CSRFToken(ctx))
		h.component(ctx, body)
		h.raw(`</main></body></html>`)
		return h.err
	})
}
