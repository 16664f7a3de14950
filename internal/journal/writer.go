// Package journal provides tamper-evident journals for stream lifecycles.
// Entries are JSON lines chained by SHA-256 over the RFC 8785 canonical form
// of each entry, so edits, reorders, and deletions are detectable on
// verification. Journals can be exported base64 encoded, optionally Snappy
// compressed, and replayed into typed records.
package journal

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/anand-gl/jsoncanonicalizer"
	jsonitor "github.com/json-iterator/go"
	"github.com/tidwall/sjson"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// Writer appends hash-chained entries to a journal file. Entries are buffered
// and written out every flushInterval appends.
type Writer struct {
	file          *os.File
	path          string
	flushInterval int
	mu            sync.Mutex
	buffer        [][]byte
	prevHash      string
	seq           uint64
	closed        bool
}

// NewWriter creates a journal writer for the given path. flushInterval is the
// number of entries buffered before an automatic flush and must be positive.
func NewWriter(path string, flushInterval int) (*Writer, error) {
	if flushInterval <= 0 {
		return nil, fmt.Errorf("flush interval must be positive, got %d", flushInterval)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &Writer{
		file:          f,
		path:          path,
		flushInterval: flushInterval,
		buffer:        make([][]byte, 0, flushInterval),
	}, nil
}

// Path returns the journal file path.
func (w *Writer) Path() string {
	return w.path
}

// Append adds an event for streamID to the hash chain. The fields map is
// copied before use so callers may reuse it. The entry payload always carries
// event, stream_id, seq, and ts keys in addition to fields.
func (w *Writer) Append(kind EventKind, streamID string, fields map[string]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("journal is closed")
	}

	payload := make(map[string]any, len(fields)+4)
	for k, v := range fields {
		payload[k] = v
	}
	payload["event"] = string(kind)
	payload["stream_id"] = streamID
	payload["seq"] = w.seq
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	base, err := json.Marshal(struct {
		Payload  map[string]any `json:"payload"`
		PrevHash string         `json:"prev_hash"`
	}{
		Payload:  payload,
		PrevHash: w.prevHash,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	// Hash the canonical form so the chain does not depend on how any one
	// emitter orders keys or spaces its output.
	canonical, err := jsoncanonicalizer.Transform(base)
	if err != nil {
		return fmt.Errorf("failed to canonicalize entry: %w", err)
	}
	hash := sha256.Sum256(canonical)
	hashHex := fmt.Sprintf("%x", hash[:])

	line, err := sjson.SetBytes(base, "hash", hashHex)
	if err != nil {
		return fmt.Errorf("failed to set entry hash: %w", err)
	}

	w.prevHash = hashHex
	w.seq++
	w.buffer = append(w.buffer, line)
	if len(w.buffer) >= w.flushInterval {
		return w.flushLocked()
	}
	return nil
}

// flushLocked writes buffered entries to the journal file.
// Must be called with the mutex locked.
func (w *Writer) flushLocked() error {
	for _, line := range w.buffer {
		if _, err := w.file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}
	w.buffer = w.buffer[:0]
	return nil
}

// Flush writes all buffered entries to the journal file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Close flushes remaining entries and closes the journal file.
// A second close is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	if err := w.flushLocked(); err != nil {
		return err
	}

	err := w.file.Close()
	w.closed = true
	return err
}
