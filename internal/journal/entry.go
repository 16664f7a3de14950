package journal

import "path/filepath"

// EventKind identifies the lifecycle moment a journal entry records.
type EventKind string

const (
	// EventStreamCreated records stream creation and its parameters.
	EventStreamCreated EventKind = "stream_created"
	// EventWrite records a successful producer write.
	EventWrite EventKind = "write"
	// EventOverrun records a synchronous write that exceeded capacity.
	EventOverrun EventKind = "overrun"
	// EventCloseRequested records the producer asking for closure.
	EventCloseRequested EventKind = "close_requested"
	// EventDrained records a consumer bulk read.
	EventDrained EventKind = "drained"
	// EventClosed records the stream reaching its final closed state.
	EventClosed EventKind = "closed"
	// EventErrored records the stream latching a terminal fault.
	EventErrored EventKind = "errored"
)

// Entry is a single journal line. The hash covers the canonical form of the
// payload and prev_hash fields, chaining each entry to its predecessor.
type Entry struct {
	Payload  map[string]any `json:"payload"`   // event data
	PrevHash string         `json:"prev_hash"` // hash of previous entry
	Hash     string         `json:"hash"`      // hash of current entry
}

// JournalPath returns the journal file path for a stream under dir.
func JournalPath(dir string, streamID string) string {
	return filepath.Join(dir, streamID+".jlog")
}
