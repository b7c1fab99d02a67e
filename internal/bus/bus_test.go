package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Emit(KindMessageCreated, MessageRef{MessageID: "m1"})

	select {
	case evt := <-ch:
		if evt.Kind != KindMessageCreated {
			t.Errorf("got kind %q, want %s", evt.Kind, KindMessageCreated)
		}
		if evt.ID == "" {
			t.Error("event ID not assigned")
		}
		if evt.Timestamp.IsZero() {
			t.Error("event timestamp not assigned")
		}
		ref, ok := evt.Payload.(MessageRef)
		if !ok || ref.MessageID != "m1" {
			t.Errorf("payload = %#v, want MessageRef{m1}", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("inbound.", 10)
	defer unsub()

	b.Emit(KindMessageDispatched, nil)
	b.Emit(KindInboundMessage, nil)

	select {
	case evt := <-ch:
		if evt.Kind != KindInboundMessage {
			t.Errorf("got kind %q, want %s", evt.Kind, KindInboundMessage)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	unsub()
	unsub() // second call is a no-op

	b.Emit(KindMessageRead, nil)

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 1)
	defer unsub()

	b.Emit(KindMessageCreated, nil)
	// Dropped: buffer is full and Publish never blocks.
	b.Emit(KindMessageDispatched, nil)

	evt := <-ch
	if evt.Kind != KindMessageCreated {
		t.Errorf("got %q, want %s", evt.Kind, KindMessageCreated)
	}
}

func TestNilBusPublish(t *testing.T) {
	var b *Bus
	b.Emit(KindMessageCreated, nil)
}
