// Package events provides the in-process publish/subscribe bus that carries
// game-side events (chat messages, kmails, rollover completion) to whichever
// components care about them. Publishers never block on slow subscribers.
package events

import (
	"log/slog"
	"sync"
)

// Topic names a category of event on the bus.
type Topic string

const (
	// TopicChatMessage carries ChatMessage payloads for public channel chat.
	TopicChatMessage Topic = "chat_message"
	// TopicWhisper carries ChatMessage payloads for private messages.
	TopicWhisper Topic = "whisper"
	// TopicKmail carries Kmail payloads.
	TopicKmail Topic = "kmail"
	// TopicRolloverComplete signals that nightly rollover has ended and the
	// session has logged back in. Payload is nil.
	TopicRolloverComplete Topic = "rollover_complete"
)

// Event is a published payload tagged with its topic.
type Event struct {
	Topic   Topic
	Payload any
}

// Bus fans events out to subscribers by topic.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[Topic][]chan Event),
	}
}

// Subscribe returns a channel that receives every event published to the
// given topic from this point on. The channel is buffered; if a subscriber
// falls far enough behind to fill it, further events for that subscriber are
// dropped rather than blocking the publisher.
func (b *Bus) Subscribe(topic Topic) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 64)
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// Publish delivers the event to all current subscribers of the topic.
// Publishing to a topic with no subscribers is a no-op.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[topic] {
		select {
		case ch <- Event{Topic: topic, Payload: payload}:
		default:
			slog.Warn("dropping event for slow subscriber", "topic", topic)
		}
	}
}
