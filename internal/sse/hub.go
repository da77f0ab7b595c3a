// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"sync"

	"github.com/samber/lo"
)

// Hub fans messages out to the clients watching a topic. A topic is the ID
// of a verification request, so every open portal tab of that request sees
// its status changes.
type Hub struct {
	topics map[string][]chan string
	mu     sync.RWMutex
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string][]chan string)}
}

// Register adds a client for topic and returns the channel it receives
// events on.
func (h *Hub) Register(topic string) chan string {
	ch := make(chan string, 10) // buffered to prevent blocking

	h.mu.Lock()
	defer h.mu.Unlock()
	h.topics[topic] = append(h.topics[topic], ch)
	return ch
}

// Unregister removes and closes a client channel.
func (h *Hub) Unregister(topic string, ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.topics[topic] = lo.Without(h.topics[topic], ch)
	if len(h.topics[topic]) == 0 {
		delete(h.topics, topic)
	}
	close(ch)
}

// Publish sends a message to every client of topic. Slow clients with a
// full buffer miss the message.
func (h *Hub) Publish(topic, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.topics[topic] {
		select {
		case ch <- message:
		default:
		}
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.SumBy(lo.Values(h.topics), func(chans []chan string) int {
		return len(chans)
	})
}

// TopicCount returns the number of topics with at least one client.
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.topics)
}
