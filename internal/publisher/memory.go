package publisher

import (
	"sync"
)

// Hub is an in-memory broadcast transport. Every message is kept in order and
// copied to each subscriber channel that has room.
type Hub struct {
	mu       sync.Mutex
	binds    int
	closes   int
	messages []string
	subs     []chan string
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{}
}

// Binder returns a Binder whose transports all feed this Hub.
func (h *Hub) Binder() Binder {
	return func(string) (Transport, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.binds++
		return &hubTransport{hub: h}, nil
	}
}

// Subscribe returns a channel receiving messages sent after the call.
// The channel is closed when a transport of the Hub is closed.
func (h *Hub) Subscribe(buffer int) <-chan string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan string, buffer)
	h.subs = append(h.subs, ch)
	return ch
}

// Messages returns every message sent so far.
func (h *Hub) Messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}

// Binds returns how many transports were bound.
func (h *Hub) Binds() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.binds
}

// Closes returns how many times a transport was closed.
func (h *Hub) Closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

type hubTransport struct {
	hub *Hub
}

func (t *hubTransport) Send(payload []byte) error {
	h := t.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := string(payload)
	h.messages = append(h.messages, msg)
	for _, ch := range h.subs {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (t *hubTransport) Close() error {
	h := t.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closes++
	for _, ch := range h.subs {
		close(ch)
	}
	h.subs = nil
	return nil
}
