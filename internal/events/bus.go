// Package events carries order change notifications. The in-process Bus
// broadcasts to currently attached subscribers with at-most-once delivery;
// the Kafka sink forwards the same messages to the outside world. Neither
// leg persists or replays missed events.
package events

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// One topic per event kind, mirroring the mutations.
const (
	TopicOrderCreated = "order.created"
	TopicOrderUpdated = "order.updated"
	TopicOrderDeleted = "order.deleted"
)

func Topics() []string {
	return []string{TopicOrderCreated, TopicOrderUpdated, TopicOrderDeleted}
}

type Message struct {
	Topic     string    `json:"topic"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is the event sink the mutation handlers talk to. Publishing is
// fire-and-forget: delivery failure never fails the mutation.
type Publisher interface {
	Publish(topic string, payload any)
}

// Fanout publishes to every sink in order.
type Fanout []Publisher

func (f Fanout) Publish(topic string, payload any) {
	for _, p := range f {
		p.Publish(topic, payload)
	}
}

// Bus is the in-process broadcast hub. Within one topic a subscriber sees
// messages in publish order; across topics there is no ordering guarantee.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	logger *logrus.Logger
}

func NewBus(logger *logrus.Logger) *Bus {
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscription receives messages on C until Close. A subscriber that
// cannot keep up has messages dropped rather than stalling the publisher.
type Subscription struct {
	bus    *Bus
	topics map[string]struct{}
	ch     chan Message
	once   sync.Once
}

func (s *Subscription) C() <-chan Message { return s.ch }

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

func (s *Subscription) wants(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

// Subscribe attaches a subscriber to the given topics; no topics means all.
func (b *Bus) Subscribe(buffer int, topics ...string) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscription{
		bus:    b,
		topics: make(map[string]struct{}, len(topics)),
		ch:     make(chan Message, buffer),
	}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Bus) Publish(topic string, payload any) {
	msg := Message{Topic: topic, Payload: payload, Timestamp: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if !sub.wants(topic) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			b.logger.WithField("topic", topic).Warn("Subscriber channel full, dropping message")
		}
	}
}

// SubscriberCount is used by diagnostics and tests.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
