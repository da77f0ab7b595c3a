// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/a-h/templ"

	"codeberg.org/willtank/willtank/internal/models"
)

// Portal is what the unlock page knows about a verification request.
type Portal struct {
	VerificationID string
	UserName       string
	ExecutorName   string
	Status         models.VerificationStatus
	PinsRequired   int
	PinsReceived   int
	ExpiresAt      time.Time
}

// Unlocked is the executor's view after a successful unlock.
type Unlocked struct {
	VerificationID string
	Token          string
	UserName       string
	Will           *models.Will
	Documents      []models.Document
	ExpiresAt      time.Time
}

// PortalPage renders the full unlock page. Status changes arrive over SSE
// and reload the status fragment.
func PortalPage(p Portal) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			h := &html{w: w}
			h.f(`<h1>%s</h1><p>%s</p>`, T(ctx, "portal_title"),
				TData(ctx, "portal_intro", map[string]any{"UserName": p.UserName}))
			h.f(`<div hx-ext="sse" sse-connect="/verify/%s/events">`, p.VerificationID)
			h.f(`<div id="portal-status" hx-get="/verify/%s/status" hx-trigger="sse:status" hx-swap="outerHTML">`,
				p.VerificationID)
			h.component(ctx, statusBody(p))
			h.raw(`</div></div>`)
			h.raw(`<div id="portal">`)
			if p.Status == models.StatusPinsSent {
				h.component(ctx, PinForm(p, nil, nil))
			}
			h.raw(`</div>`)
			return h.err
		})
		return Layout(T(ctx, "portal_title"), body).Render(ctx, w)
	})
}

// PortalStatus renders the status fragment swapped in on SSE events.
func PortalStatus(p Portal) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.f(`<div id="portal-status" hx-get="/verify/%s/status" hx-trigger="sse:status" hx-swap="outerHTML">`,
			p.VerificationID)
		h.component(ctx, statusBody(p))
		h.raw(`</div>`)
		return h.err
	})
}

func statusBody(p Portal) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.f(`<p class="status status-%s">%s</p>`, string(p.Status), T(ctx, "status_"+string(p.Status)))
		h.f(`<p>%s</p>`, TData(ctx, "portal_pins_progress", map[string]any{
			"Received": p.PinsReceived, "Required": p.PinsRequired,
		}))
		h.f(`<p>%s</p>`, TData(ctx, "portal_expires", map[string]any{"ExpiresAt": FormatTime(ctx, p.ExpiresAt)}))
		return h.err
	})
}

// PinForm renders one input per issued PIN. Slots listed in invalid are
// marked and keep the value that was entered.
func PinForm(p Portal, entered []string, invalid []int) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.f(`<form id="pin-form" hx-post="/verify/%s/pins" hx-target="#portal" hx-swap="innerHTML">`, p.VerificationID)
		if len(invalid) > 0 {
			h.f(`<p class="error" role="alert">%s</p>`, TPlural(ctx, "portal_invalid", len(invalid)))
		}
		for i := range p.PinsRequired {
			value := ""
			if i < len(entered) {
				value = entered[i]
			}
			class := "pin"
			if slices.Contains(invalid, i) {
				class = "pin invalid"
			}
			h.f(`<label>%s <input class="%s" name="pins" value="%s" inputmode="numeric" autocomplete="off" maxlength="6" required></label>`,
				TData(ctx, "portal_pin_label", map[string]any{"Index": i + 1}), class, value)
		}
		h.f(`<button type="submit">%s</button></form>`, T(ctx, "portal_submit"))
		return h.err
	})
}

// UnlockedView lists the will and the documents. Every download carries
// the access token in a form field.
func UnlockedView(u Unlocked) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.f(`<p class="success">%s</p>`, TData(ctx, "portal_unlocked", map[string]any{"ExpiresAt": FormatTime(ctx, u.ExpiresAt)}))
		if u.Will != nil {
			h.f(`<article class="will"><h2>%s</h2><pre>%s</pre></article>`, u.Will.Title, u.Will.Content)
		}
		h.raw(`<ul class="documents">`)
		for _, d := range u.Documents {
			h.f(`<li><form method="post" action="/verify/%s/documents/%d">`, u.VerificationID, d.ID)
			h.f(`<input type="hidden" name="csrf_token" value="%s">`, CSRFToken(ctx))
			h.f(`<input type="hidden" name="token" value="%s"><button type="submit">%s</button></form></li>`, u.Token, d.Name)
		}
		h.raw(`</ul>`)
		h.f(`<form method="post" action="/verify/%s/zip">`, u.VerificationID)
		h.f(`<input type="hidden" name="csrf_token" value="%s">`, CSRFToken(ctx))
		h.f(`<input type="hidden" name="token" value="%s"><button type="submit">%s</button></form>`,
			u.Token, T(ctx, "portal_download_all"))
		return h.err
	})
}
