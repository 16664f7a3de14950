package server

import (
	"fmt"

	"github.com/sluiceio/sluice/internal/eventbus"
)

var eventBus *eventbus.Bus

const (
	// TopicElements is the event suffix for element delivery.
	// Used for streaming drained elements to inspection taps.
	TopicElements = "elements"

	// TopicLifecycle is the event suffix for lifecycle transitions.
	// Used for close and error notifications on inspection taps.
	TopicLifecycle = "lifecycle"
)

func init() {
	eventBus = eventbus.New()
	if eventBus == nil {
		panic("eventBus is nil")
	}
}

// GetEventBus returns the global event bus instance.
// Provides access to event publishing and subscription functionality.
func GetEventBus() *eventbus.Bus {
	return eventBus
}

// GetAllStreamTopics generates a pattern for all topics related to a stream.
// Returns a wildcard pattern that matches all topics for the given stream ID.
func GetAllStreamTopics(streamID string) string {
	return fmt.Sprintf("stream.%s.*", streamID)
}

// GetStreamTopic generates a topic name for a specific stream and event type.
// Returns a formatted topic string for stream-specific event routing.
func GetStreamTopic(streamID string, topic string) string {
	return fmt.Sprintf("stream.%s.%s", streamID, topic)
}
