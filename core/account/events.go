package account

import (
	"sync"
	"time"
)

// Auth event types
type AuthEventType string

const (
	EventSignedUp     AuthEventType = "SIGNED_UP"
	EventSignedIn     AuthEventType = "SIGNED_IN"
	EventSignedOut    AuthEventType = "SIGNED_OUT"
	EventTokenRefresh AuthEventType = "TOKEN_REFRESHED"
)

// AuthEvent notifies subscribers of an identity change (login, logout, refresh).
type AuthEvent struct {
	Type       AuthEventType `json:"type"`
	IdentityID string        `json:"identity_id"`
	At         time.Time     `json:"at"`
}

// AuthSubscription is a live feed of AuthEvents. Close must be called
// when the subscriber is done; it is safe to call more than once.
type AuthSubscription struct {
	C <-chan AuthEvent

	once   sync.Once
	cancel func()
}

func (s *AuthSubscription) Close() {
	s.once.Do(s.cancel)
}

// AuthBroadcaster fans auth events out to its subscribers over channels.
// Delivery is best-effort: a subscriber that stops draining its channel
// misses events instead of blocking the publisher.
type AuthBroadcaster struct {
	mu   sync.Mutex
	subs map[int]chan AuthEvent
	next int
}

func NewAuthBroadcaster() *AuthBroadcaster {
	return &AuthBroadcaster{subs: make(map[int]chan AuthEvent)}
}

func (b *AuthBroadcaster) Subscribe() *AuthSubscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan AuthEvent, 16)
	b.subs[id] = ch

	return &AuthSubscription{
		C: ch,
		cancel: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		},
	}
}

func (b *AuthBroadcaster) Publish(evt AuthEvent) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default: // slow subscriber; drop
		}
	}
}
