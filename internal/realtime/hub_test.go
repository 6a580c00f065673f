package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func receiveEvent(t *testing.T, events <-chan Event) Event {
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubDeliversToMatchingTopic(t *testing.T) {
	hub := NewHub()
	events, unsubscribe := hub.Subscribe([]string{TopicProperties})
	defer unsubscribe()

	hub.Publish(TopicProperties, ActionInsert, map[string]interface{}{"id": 1})

	ev := receiveEvent(t, events)
	assert.Equal(t, TopicProperties, ev.Topic)
	assert.Equal(t, ActionInsert, ev.Action)
	assert.False(t, ev.SentAt.IsZero())
}

func TestHubFiltersOtherTopics(t *testing.T) {
	hub := NewHub()
	events, unsubscribe := hub.Subscribe([]string{TopicChat})
	defer unsubscribe()

	hub.Publish(TopicProperties, ActionUpdate, nil)

	select {
	case ev := <-events:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	events, unsubscribe := hub.Subscribe([]string{TopicNotifications})
	assert.Equal(t, 1, hub.SubscriberCount())

	unsubscribe()
	assert.Equal(t, 0, hub.SubscriberCount())

	_, open := <-events
	assert.False(t, open)

	// Unsubscribing twice is safe
	unsubscribe()
}

func TestHubDropsWhenSubscriberBufferFull(t *testing.T) {
	hub := NewHub()
	events, unsubscribe := hub.Subscribe([]string{TopicChat})
	defer unsubscribe()

	for i := 0; i < subscriberBuffer*2; i++ {
		hub.Publish(TopicChat, ActionInsert, i)
	}

	// The buffer holds the first events; the overflow was dropped, not blocked on
	received := 0
	for {
		select {
		case <-events:
			received++
		default:
			assert.Equal(t, subscriberBuffer, received)
			return
		}
	}
}

func TestNilHubPublishIsSafe(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() {
		hub.Publish(TopicProperties, ActionDelete, nil)
	})
}

func TestParseTopicsIgnoresUnknown(t *testing.T) {
	topics := parseTopics("properties, bogus ,chat")
	assert.Equal(t, []string{TopicProperties, TopicChat}, topics)

	assert.Empty(t, parseTopics(""))
}
