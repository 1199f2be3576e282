package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe("conn.", 10)
	defer unsub()

	b.Publish(New(KindConnStatus, "test"))

	select {
	case evt := <-ch:
		if evt.Kind != KindConnStatus {
			t.Errorf("got kind %q, want %q", evt.Kind, KindConnStatus)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe("chat.", 10)
	defer unsub()

	b.Publish(New(KindConnStatus, nil))
	b.Publish(New(KindChatMessage, nil))

	select {
	case evt := <-ch:
		if evt.Kind != KindChatMessage {
			t.Errorf("got kind %q, want %q", evt.Kind, KindChatMessage)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the conn event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe("conn.", 10)
	unsub()

	b.Publish(New(KindConnStatus, nil))

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe("chat.", 1)
	defer unsub()

	// Second publish must not block even though nothing is draining.
	done := make(chan struct{})
	go func() {
		b.Publish(New(KindChatMessage, 1))
		b.Publish(New(KindChatMessage, 2))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on full subscriber buffer")
	}

	evt := <-ch
	if evt.Payload != 1 {
		t.Errorf("payload = %v, want 1 (first event kept)", evt.Payload)
	}
}
