package journal

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
)

// Record is a journal entry payload decoded into typed fields. Fields that do
// not apply to a given event kind are zero.
type Record struct {
	Event    EventKind `json:"event" mapstructure:"event"`
	StreamID string    `json:"stream_id" mapstructure:"stream_id"`
	Seq      uint64    `json:"seq" mapstructure:"seq"`
	Ts       string    `json:"ts" mapstructure:"ts"`
	Capacity int       `json:"capacity,omitempty" mapstructure:"capacity"`
	Mode     string    `json:"mode,omitempty" mapstructure:"mode"`
	Count    int       `json:"count,omitempty" mapstructure:"count"`
	Buffered int       `json:"buffered,omitempty" mapstructure:"buffered"`
	Dropped  int       `json:"dropped,omitempty" mapstructure:"dropped"`
	Error    string    `json:"error,omitempty" mapstructure:"error"`
}

// Replay streams each entry payload in r to fn in order, decoded into a
// Record. Replay does not check the hash chain; run Verify first when
// integrity matters. Replay stops at the first malformed entry or fn error.
func Replay(r io.Reader, maxLineSize int, fn func(Record) error) error {
	scanner := bufio.NewScanner(r)
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	initial := 64 * 1024
	if maxLineSize < initial {
		initial = maxLineSize
	}
	scanner.Buffer(make([]byte, 0, initial), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		payload := gjson.Get(line, "payload")
		if !payload.IsObject() {
			return fmt.Errorf("line %d: missing payload", lineNum)
		}

		var fields map[string]any
		if err := json.Unmarshal([]byte(payload.Raw), &fields); err != nil {
			return fmt.Errorf("line %d: invalid payload: %w", lineNum, err)
		}

		var rec Record
		if err := mapstructure.Decode(fields, &rec); err != nil {
			return fmt.Errorf("line %d: failed to decode payload: %w", lineNum, err)
		}

		if err := fn(rec); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	return nil
}

// ReplayFile opens the journal at path and replays it through fn.
func ReplayFile(path string, maxLineSize int, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open journal file: %w", err)
	}
	defer f.Close()
	return Replay(f, maxLineSize, fn)
}
