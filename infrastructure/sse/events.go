// Package sse fans generation events out to HTTP clients as Server-Sent Events.
package sse

import "strings"

// Event is one Server-Sent Event. Data is encoded as JSON.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Filter reports whether a subscriber wants an event.
type Filter func(Event) bool

// TypePrefix passes events whose type starts with prefix.
func TypePrefix(prefix string) Filter {
	return func(e Event) bool {
		return strings.HasPrefix(e.Type, prefix)
	}
}
