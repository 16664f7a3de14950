package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestJournalWriter(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.jlog")

	writer, err := NewWriter(path, 3)
	require.NoError(t, err)
	defer writer.Close()

	kinds := []EventKind{EventStreamCreated, EventWrite, EventWrite, EventDrained}
	for i, kind := range kinds {
		require.NoError(t, writer.Append(kind, "stream-1", map[string]any{"count": i}))
	}
	require.NoError(t, writer.Flush())

	res, err := VerifyFile(path, 0)
	require.NoError(t, err)
	require.Equal(t, 4, res.Entries)
	require.NotEmpty(t, res.LastHash)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 4)

	var prevHash string
	for i, line := range lines {
		require.Equal(t, string(kinds[i]), gjson.Get(line, "payload.event").String(), "line %d event", i+1)
		require.Equal(t, "stream-1", gjson.Get(line, "payload.stream_id").String(), "line %d stream_id", i+1)
		require.Equal(t, int64(i), gjson.Get(line, "payload.seq").Int(), "line %d seq", i+1)
		require.NotEmpty(t, gjson.Get(line, "payload.ts").String(), "line %d ts", i+1)
		require.Equal(t, prevHash, gjson.Get(line, "prev_hash").String(), "line %d prev_hash", i+1)
		prevHash = gjson.Get(line, "hash").String()
		require.Len(t, prevHash, 64, "line %d hash length", i+1)
	}
}

func TestJournalWriterErrors(t *testing.T) {
	// Invalid file path
	_, err := NewWriter("/nonexistent/path/test.jlog", 3)
	require.Error(t, err)

	// Invalid flush interval
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.jlog")
	_, err = NewWriter(path, 0)
	require.Error(t, err)
}

func TestJournalWriterBufferBehavior(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.jlog")

	writer, err := NewWriter(path, 3)
	require.NoError(t, err)
	defer writer.Close()

	// Below the flush interval nothing reaches disk
	require.NoError(t, writer.Append(EventWrite, "s", nil))
	require.NoError(t, writer.Append(EventWrite, "s", nil))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Empty(t, content)

	// Third entry triggers the flush
	require.NoError(t, writer.Append(EventWrite, "s", nil))
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(content)), "\n"), 3)
}

func TestJournalWriterClose(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.jlog")

	writer, err := NewWriter(path, 100)
	require.NoError(t, err)

	require.NoError(t, writer.Append(EventClosed, "s", nil))

	// Close flushes the buffered entry
	require.NoError(t, writer.Close())
	res, err := VerifyFile(path, 0)
	require.NoError(t, err)
	require.Equal(t, 1, res.Entries)

	// Second close is a no-op, appends after close fail
	require.NoError(t, writer.Close())
	require.Error(t, writer.Append(EventClosed, "s", nil))
}
