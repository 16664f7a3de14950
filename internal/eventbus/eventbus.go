// Package eventbus provides an in-memory publish/subscribe bus used to fan
// stream elements and lifecycle transitions out to inspection taps. Streams
// stay single-producer single-consumer; the bus sits behind the consumer and
// never feeds back into a stream. Topics are dot-separated with * wildcards,
// delivery is per-subscriber buffered, and slow subscribers drop events
// rather than stall publishers.
package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Event represents a single event on the bus.
type Event struct {
	Topic string // event topic for routing
	Data  any    // event data payload
}

// Subscriber is one subscription with a buffered delivery channel and
// lifecycle management.
type Subscriber struct {
	ID      string             // unique subscriber identifier
	Topic   string             // subscribed topic pattern
	Channel chan Event         // event delivery channel
	Context context.Context    // cancellation context
	Cancel  context.CancelFunc // context cancellation function

	mu     sync.Mutex // protects closed flag
	closed bool       // indicates if subscriber is closed
}

// Send attempts to deliver an event to the subscriber's channel. A timeout
// of zero or less makes the send non-blocking. Returns true if the event was
// delivered, false if the subscriber is closed or its channel stayed full.
func (s *Subscriber) Send(event Event, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	if timeout <= 0 {
		select {
		case s.Channel <- event:
			return true
		default:
			return false
		}
	}

	select {
	case s.Channel <- event:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close shuts down the subscriber, cancelling its context and closing the
// event channel.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		s.Cancel()
		close(s.Channel)
	}
}

// Bus is the event bus. It routes published events to every subscriber whose
// topic pattern matches.
type Bus struct {
	sync.RWMutex
	subscribers map[string]map[string]*Subscriber // pattern -> subscriberID -> Subscriber
	counter     uint64                            // atomic counter for subscriber ID generation
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string]map[string]*Subscriber),
	}
}

// Subscribe registers a subscriber for the given topic pattern and returns
// the event channel together with an unsubscribe function. bufferSize
// controls how many undelivered events the subscriber may hold.
func (bus *Bus) Subscribe(pattern string, bufferSize int) (<-chan Event, func()) {
	id := fmt.Sprintf("sub-%d", atomic.AddUint64(&bus.counter, 1))

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan Event, bufferSize)

	sub := &Subscriber{
		ID:      id,
		Topic:   pattern,
		Channel: ch,
		Context: ctx,
		Cancel:  cancel,
	}

	bus.Lock()
	defer bus.Unlock()

	if _, ok := bus.subscribers[pattern]; !ok {
		bus.subscribers[pattern] = make(map[string]*Subscriber)
	}
	bus.subscribers[pattern][id] = sub

	unsubscribe := func() {
		bus.Lock()
		defer bus.Unlock()

		if subMap, ok := bus.subscribers[pattern]; ok {
			if s, ok := subMap[id]; ok {
				s.Close()
				delete(subMap, id)
				if len(subMap) == 0 {
					delete(bus.subscribers, pattern)
				}
			}
		}
	}

	return ch, unsubscribe
}

// Publish sends an event to all subscribers whose pattern matches the topic.
// Delivery honors the per-subscriber timeout; events for slow subscribers
// are dropped once the timeout lapses.
func (bus *Bus) Publish(topic string, data any, timeout time.Duration) {
	event := Event{Topic: topic, Data: data}

	bus.RLock()
	defer bus.RUnlock()

	for pattern, subMap := range bus.subscribers {
		if matchTopic(pattern, topic) {
			for _, sub := range subMap {
				select {
				case <-sub.Context.Done():
					continue
				default:
					sub.Send(event, timeout)
				}
			}
		}
	}
}

// CloseTopic closes and removes all subscribers registered under exactly the
// given pattern.
func (bus *Bus) CloseTopic(pattern string) {
	bus.Lock()
	defer bus.Unlock()

	if subs, ok := bus.subscribers[pattern]; ok {
		for _, sub := range subs {
			sub.Close()
		}
		delete(bus.subscribers, pattern)
	}
}

// CloseMatching closes and removes all subscribers whose registered pattern
// matches the given pattern. Used to tear down every tap on a stream at once.
func (bus *Bus) CloseMatching(pattern string) {
	bus.Lock()
	defer bus.Unlock()

	for registered, subMap := range bus.subscribers {
		if matchTopic(pattern, registered) {
			for _, sub := range subMap {
				sub.Close()
			}
			delete(bus.subscribers, registered)
		}
	}
}

// Shutdown closes all subscribers and clears the bus.
func (bus *Bus) Shutdown() {
	bus.Lock()
	defer bus.Unlock()

	for _, subs := range bus.subscribers {
		for _, sub := range subs {
			sub.Close()
		}
	}
	bus.subscribers = make(map[string]map[string]*Subscriber)
}

// matchTopic determines if a topic matches a pattern. Patterns are
// dot-separated; a * component matches any single component and a bare *
// matches everything.
func matchTopic(pattern, topic string) bool {
	if pattern == "" || topic == "" {
		return false
	}
	if pattern == "*" || pattern == topic {
		return true
	}
	patternParts := strings.Split(pattern, ".")
	topicParts := strings.Split(topic, ".")

	if len(patternParts) != len(topicParts) {
		return false
	}

	for i := 0; i < len(patternParts); i++ {
		if patternParts[i] == "*" {
			continue
		}
		if patternParts[i] != topicParts[i] {
			return false
		}
	}
	return true
}
