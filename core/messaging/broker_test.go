package messaging

import (
	"testing"
	"time"
)

func msg(id, sender, receiver string) *Message {
	return &Message{ID: id, SenderID: sender, ReceiverID: receiver, Content: "hey", CreatedAt: time.Now().UTC()}
}

func TestBroker_pairScoping(t *testing.T) {
	broker := NewBroker()

	abSub := broker.Subscribe("a", "b")
	defer abSub.Close()
	baSub := broker.Subscribe("b", "a") // same pair, either order
	defer baSub.Close()
	acSub := broker.Subscribe("a", "c")
	defer acSub.Close()

	broker.Publish(Event{Type: EventInsert, New: msg("m1", "a", "b")})

	for _, sub := range []*Subscription{abSub, baSub} {
		select {
		case evt := <-sub.C:
			if evt.Type != EventInsert || evt.New.ID != "m1" {
				t.Errorf("got event %+v, want INSERT m1", evt)
			}
		case <-time.After(time.Second):
			t.Fatal("expected the {a, b} subscribers to receive the event")
		}
	}

	select {
	case evt := <-acSub.C:
		t.Errorf("the {a, c} subscriber received %+v, want nothing", evt)
	default:
	}
}

func TestBroker_eventWithoutMessage(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe("a", "b")
	defer sub.Close()

	broker.Publish(Event{Type: EventDelete}) // no-op

	select {
	case evt := <-sub.C:
		t.Errorf("received %+v, want nothing", evt)
	default:
	}
}

func TestBroker_close(t *testing.T) {
	broker := NewBroker()

	sub := broker.Subscribe("a", "b")
	if got := broker.SubscriberCount("b", "a"); got != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", got)
	}

	sub.Close()
	sub.Close() // idempotent
	if got := broker.SubscriberCount("a", "b"); got != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", got)
	}

	// the channel is closed, not abandoned
	if _, ok := <-sub.C; ok {
		t.Error("expected a closed channel after Close()")
	}

	// publishing to a pair with no subscribers is safe
	broker.Publish(Event{Type: EventInsert, New: msg("m1", "a", "b")})
}

func TestBroker_slowSubscriberDropsEvents(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe("a", "b")
	defer sub.Close()

	// overflow the buffer; the publisher must never block
	for i := 0; i < 64; i++ {
		broker.Publish(Event{Type: EventInsert, New: msg("m", "a", "b")})
	}

	drained := 0
	for {
		select {
		case <-sub.C:
			drained++
		default:
			if drained == 0 || drained > 32 {
				t.Errorf("drained %d events, want 1..32", drained)
			}
			return
		}
	}
}
