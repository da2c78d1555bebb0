package session

import (
	"testing"
	"time"
)

func TestBusDeliversToTopicSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	chat := bus.Subscribe(TopicChat)
	other := bus.Subscribe(TopicToast)

	bus.Publish(TopicChat, "hello")

	select {
	case ev := <-chat:
		if ev.Payload != "hello" {
			t.Fatalf("payload = %v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}

	select {
	case ev := <-other:
		t.Fatalf("toast subscriber received chat event: %+v", ev)
	default:
	}
}

func TestBusDropsOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicReaction)
	for i := 0; i < 100; i++ {
		bus.Publish(TopicReaction, i)
	}

	// The subscriber buffer bounds delivery; publishing never blocked.
	if len(ch) == 0 || len(ch) > 16 {
		t.Fatalf("buffered = %d", len(ch))
	}
}

func TestBusCloseClosesSubscribers(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TopicChat)

	bus.Close()
	if _, ok := <-ch; ok {
		t.Fatal("subscriber channel should be closed")
	}

	// Publish after close is a no-op.
	bus.Publish(TopicChat, "late")
}
