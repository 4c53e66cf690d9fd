package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// ListChange announces a new state of a cart or wishlist. Owner is
// "guest:<id>" or "user:<id>"; Items carries the whole updated list.
type ListChange struct {
	Topic string          `json:"topic"`
	Owner string          `json:"owner"`
	List  string          `json:"list"`
	Items json.RawMessage `json:"items,omitempty"`
	At    time.Time       `json:"at"`
}

// GuestOwner builds the Owner key of an anonymous visitor.
func GuestOwner(id string) string { return "guest:" + id }

// UserOwner builds the Owner key of an authenticated account.
func UserOwner(id string) string { return "user:" + id }

// Publisher emits list changes.
type Publisher interface {
	Publish(ctx context.Context, change ListChange)
}

// NopPublisher drops every change.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, ListChange) {}

// Hub is an in-process publish/subscribe registry keyed by owner.
// Slow subscribers lose changes rather than block publishers.
type Hub struct {
	// Buffer is the per-subscriber channel capacity, default 16.
	Buffer int

	mu   sync.RWMutex
	subs map[string]map[*subscription]struct{}
}

type subscription struct {
	ch chan ListChange
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: map[string]map[*subscription]struct{}{}}
}

// Subscribe registers interest in every change for any of owners. The returned
// cancel func must be called to release the subscription; it closes the channel.
func (h *Hub) Subscribe(owners ...string) (<-chan ListChange, func()) {
	size := h.Buffer
	if size <= 0 {
		size = 16
	}
	sub := &subscription{ch: make(chan ListChange, size)}
	h.mu.Lock()
	if h.subs == nil {
		h.subs = map[string]map[*subscription]struct{}{}
	}
	for _, owner := range owners {
		if owner == "" {
			continue
		}
		set, ok := h.subs[owner]
		if !ok {
			set = map[*subscription]struct{}{}
			h.subs[owner] = set
		}
		set[sub] = struct{}{}
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			for _, owner := range owners {
				if set, ok := h.subs[owner]; ok {
					delete(set, sub)
					if len(set) == 0 {
						delete(h.subs, owner)
					}
				}
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers change to the owner's subscribers without blocking.
func (h *Hub) Publish(_ context.Context, change ListChange) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[change.Owner] {
		select {
		case sub.ch <- change:
		default:
		}
	}
}

// Subscribers returns the number of subscriptions for owner.
func (h *Hub) Subscribers(owner string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[owner])
}
