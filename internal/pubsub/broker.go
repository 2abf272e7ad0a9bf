package pubsub

import (
	"context"
	"log/slog"
	"sync"
)

// Subscription receives the events of one topic. Its channel is closed when
// the subscriber unsubscribes, falls too far behind, or the broker is reset;
// a closed channel means events may have been missed.
type Subscription struct {
	topic string
	ch    chan Event
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Topic() string {
	return s.topic
}

// Broker is an in-process fan-out of events keyed by session id.
type Broker struct {
	mu     sync.Mutex
	buffer int
	subs   map[string]map[*Subscription]struct{}
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broker{
		buffer: buffer,
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

func (b *Broker) Subscribe(topic string) *Subscription {
	sub := &Subscription{topic: topic, ch: make(chan Event, b.buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*Subscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	return sub
}

// Unsubscribe is safe to call on a subscription the broker already dropped.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropLocked(sub)
}

// Publish never blocks. A subscriber whose buffer is full is closed instead of
// losing the event silently, so it observes a disconnect and resyncs.
func (b *Broker) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[ev.SessionID] {
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("pubsub: subscriber too slow, closing", "topic", ev.SessionID)
			b.dropLocked(sub)
		}
	}
	return nil
}

// Reset closes every subscription. Used when the upstream feed reconnected
// and notifications may have been lost.
func (b *Broker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, subs := range b.subs {
		for sub := range subs {
			close(sub.ch)
			n++
		}
	}
	b.subs = make(map[string]map[*Subscription]struct{})
	slog.Info("pubsub: broker reset", "closed", n)
}

// ResetTopic closes the subscriptions of one topic.
func (b *Broker) ResetTopic(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[topic] {
		close(sub.ch)
	}
	delete(b.subs, topic)
}

func (b *Broker) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

func (b *Broker) dropLocked(sub *Subscription) {
	subs, ok := b.subs[sub.topic]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(b.subs, sub.topic)
	}
}
