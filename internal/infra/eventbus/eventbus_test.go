package eventbus

import (
	"testing"
	"time"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestBus_DeliversToSubscriber(t *testing.T) {
	t.Parallel()

	bus := New()
	ch := bus.Subscribe("trace.finalized")

	bus.Publish("trace.finalized", "payload")

	evt := recvEvent(t, ch)
	if evt.Topic != "trace.finalized" {
		t.Errorf("Topic = %q; want %q", evt.Topic, "trace.finalized")
	}
	if evt.Payload != "payload" {
		t.Errorf("Payload = %v; want %q", evt.Payload, "payload")
	}
}

func TestBus_FanOut(t *testing.T) {
	t.Parallel()

	bus := New()
	first := bus.Subscribe("trace.finalized")
	second := bus.Subscribe("trace.finalized")

	bus.Publish("trace.finalized", 42)

	for i, ch := range []<-chan Event{first, second} {
		if evt := recvEvent(t, ch); evt.Payload != 42 {
			t.Errorf("subscriber %d: Payload = %v; want 42", i, evt.Payload)
		}
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	t.Parallel()

	bus := New()
	matching := bus.Subscribe("topic.a")
	other := bus.Subscribe("topic.b")

	bus.Publish("topic.a", "for-a")

	if evt := recvEvent(t, matching); evt.Payload != "for-a" {
		t.Errorf("topic.a Payload = %v; want %q", evt.Payload, "for-a")
	}
	select {
	case evt := <-other:
		t.Errorf("topic.b received %v; want nothing", evt)
	default:
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	t.Parallel()

	bus := New()
	// Subscribe without draining so the buffer fills.
	_ = bus.Subscribe("overflow")

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish("overflow", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("Publish blocked on a full subscriber buffer")
	}
}
