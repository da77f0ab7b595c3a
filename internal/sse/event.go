// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatEvent formats a message as an SSE event with optional event name.
// Multiline content is properly prefixed with "data:".
func FormatEvent(eventName, data string) string {
	var sb strings.Builder

	if eventName != "" {
		fmt.Fprintf(&sb, "event: %s\n", eventName)
	}
	for line := range strings.SplitSeq(data, "\n") {
		fmt.Fprintf(&sb, "data: %s\n", line)
	}
	sb.WriteString("\n")
	return sb.String()
}

// FormatJSONEvent encodes v as the data of a named event.
func FormatJSONEvent(eventName string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s event: %w", eventName, err)
	}
	return FormatEvent(eventName, string(b)), nil
}

// Heartbeat is an SSE comment that keeps the connection alive.
// Comments (lines starting with :) are ignored by SSE clients.
const Heartbeat = ": heartbeat\n\n"
