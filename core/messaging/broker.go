package messaging

import (
	"sync"
)

// Event types mirror the row-change notifications of the storage layer.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is a row-change notification for a Message.
type Event struct {
	Type EventType `json:"type"`
	New  *Message  `json:"new,omitempty"`
	Old  *Message  `json:"old,omitempty"`
}

func (e Event) message() *Message {
	if e.New != nil {
		return e.New
	}
	return e.Old
}

// pairKey builds the unordered {a, b} channel key.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// Subscription is a live feed of Events scoped to one conversation pair.
// Close must be called when done; it is safe to call more than once.
type Subscription struct {
	C <-chan Event

	once   sync.Once
	cancel func()
}

func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// Broker routes message change events to pair-scoped subscriptions.
// Delivery is best-effort: a subscriber that stops draining its channel
// misses events instead of blocking the publisher.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[int]chan Event
	next int
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[int]chan Event)}
}

// Subscribe opens a feed scoped to the unordered pair {a, b}.
func (b *Broker) Subscribe(a, bID string) *Subscription {
	key := pairKey(a, bID)

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 32)
	if b.subs[key] == nil {
		b.subs[key] = make(map[int]chan Event)
	}
	b.subs[key][id] = ch

	return &Subscription{
		C: ch,
		cancel: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[key]; ok {
				if sub, ok := subs[id]; ok {
					delete(subs, id)
					close(sub)
				}
				if len(subs) == 0 {
					delete(b.subs, key)
				}
			}
		},
	}
}

// Publish delivers the event to every subscription scoped to the event's pair.
func (b *Broker) Publish(evt Event) {
	msg := evt.message()
	if msg == nil {
		return
	}
	key := pairKey(msg.SenderID, msg.ReceiverID)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[key] {
		select {
		case ch <- evt:
		default: // slow subscriber; drop
		}
	}
}

// SubscriberCount reports how many subscriptions are live for the pair {a, b}.
func (b *Broker) SubscriberCount(a, bID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[pairKey(a, bID)])
}
