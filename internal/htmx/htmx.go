// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package htmx reads htmx request headers and writes htmx responses.
package htmx

import (
	"net/http"
)

const (
	// HeaderRequest is set to "true" on every request htmx sends.
	HeaderRequest = "HX-Request"
	// HeaderRedirect makes htmx load a new page instead of swapping.
	HeaderRedirect = "HX-Redirect"
)

// IsHtmx reports whether r was sent by htmx.
func IsHtmx(r *http.Request) bool {
	return r.Header.Get(HeaderRequest) == "true"
}

// Redirect sends the browser to url. htmx requests get an HX-Redirect so
// the whole page is replaced instead of the swap target.
func Redirect(w http.ResponseWriter, r *http.Request, url string) {
	if IsHtmx(r) {
		w.Header().Set(HeaderRedirect, url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
