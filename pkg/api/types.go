// Package api defines the wire types and HTTP client for the sluice
// inspection server.
package api

import (
	"github.com/sluiceio/sluice/pkg/stream"
)

// StreamCreateRequest asks the server to open a managed stream.
type StreamCreateRequest struct {
	Name         string `json:"name,omitempty" validate:"omitempty,streamName"`        // optional human readable label
	Capacity     int    `json:"capacity,omitempty" validate:"omitempty,gte=0"`         // buffer capacity, server default when omitted
	WriteTimeout string `json:"write_timeout,omitempty" validate:"omitempty,duration"` // stall budget per ingest write, e.g. "500ms"; empty means fail-fast writes
	Journal      bool   `json:"journal,omitempty"`                                     // journal the stream lifecycle
}

// StreamInfo describes a managed stream and its current statistics.
type StreamInfo struct {
	StreamID string       `json:"stream_id"`
	Name     string       `json:"name,omitempty"`
	Journal  string       `json:"journal,omitempty"` // journal file path when journaling is enabled
	Error    string       `json:"error,omitempty"`   // latched fault, empty unless errored
	Stats    stream.Stats `json:"stats"`
}

// ElementsWriteRequest appends elements to a managed stream.
type ElementsWriteRequest struct {
	Elements []any `json:"elements"`
}

// ElementsWriteResponse reports the outcome of an append.
type ElementsWriteResponse struct {
	Written  int `json:"written"`  // elements accepted
	Buffered int `json:"buffered"` // buffer length after the write
}

// TapEventKind discriminates server-sent tap events.
type TapEventKind string

const (
	// TapElement carries one stream element.
	TapElement TapEventKind = "element"
	// TapLifecycle carries a state transition.
	TapLifecycle TapEventKind = "lifecycle"
)

// TapEvent is one server-sent event observed on a stream tap.
type TapEvent struct {
	StreamID string       `json:"stream_id"`
	Kind     TapEventKind `json:"kind"`
	Element  any          `json:"element,omitempty"` // payload for element events
	State    string       `json:"state,omitempty"`   // state name for lifecycle events
	Error    string       `json:"error,omitempty"`   // fault text for lifecycle events
}

// VersionResponse reports server and API versions.
type VersionResponse struct {
	ServerVersion string `json:"server_version"`
	APIVersion    string `json:"api_version"`
}

// ReadyResponse reports server readiness.
type ReadyResponse struct {
	Status  string `json:"status"`
	Streams int    `json:"streams"` // number of managed streams
}
