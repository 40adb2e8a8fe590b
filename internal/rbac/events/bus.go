package events

import (
	"context"
	"sync"
)

// Event kinds
const (
	// KindMembership affects only the listed users
	KindMembership = "membership"
	// KindPurge affects every user's effective permissions
	KindPurge = "purge"
)

// Event tells caches that effective permissions may have changed.
type Event struct {
	Kind    string   `json:"kind"`
	UserIDs []string `json:"user_ids,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Origin  string   `json:"origin,omitempty"`
}

func MembershipChanged(reason string, userIDs ...string) Event {
	return Event{Kind: KindMembership, UserIDs: userIDs, Reason: reason}
}

func PurgeAll(reason string) Event {
	return Event{Kind: KindPurge, Reason: reason}
}

type Handler func(Event)

// Bus fans invalidation events out to subscribers.
// Publish delivers to local subscribers before it returns.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(h Handler)
	Close() error
}

// LocalBus delivers synchronously inside one process.
type LocalBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(ctx context.Context, ev Event) error {
	b.dispatch(ev)
	return nil
}

func (b *LocalBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *LocalBus) Close() error { return nil }

func (b *LocalBus) dispatch(ev Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
