package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sluiceio/sluice/internal/common/jsruntime"
	"github.com/sluiceio/sluice/internal/common/validation"
	"github.com/sluiceio/sluice/internal/config"
	"github.com/sluiceio/sluice/internal/journal"
	"github.com/sluiceio/sluice/pkg/stream"
	"github.com/sluiceio/sluice/pkg/types"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "sluicecli")
	if err != nil {
		panic(err)
	}
	os.Setenv("HOME", dir)
	if err := config.LoadDefault(); err != nil {
		panic(err)
	}
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// resetRunFlags restores the run command's flag variables to their defaults.
// The variables are package level, so tests must not leak values into each
// other.
func resetRunFlags() {
	runCount = 16
	runSource = ""
	runMode = "event"
	runCapacity = 0
	runWriteTimeout = ""
	runSelectPath = ""
	runTransform = ""
	runTransformTimeout = 500 * time.Millisecond
	runSchemaFile = ""
	runJournal = false
}

func TestDetectSource(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "synthetic"},
		{"-", "jsonl"},
		{"data.json", "json"},
		{"data.JSON", "json"},
		{"data.yaml", "yaml"},
		{"data.yml", "yaml"},
		{"data.jsonl", "jsonl"},
		{"data.ndjson", "jsonl"},
		{"data.txt", "text"},
		{"data", "text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectSource(tt.path), "path %q", tt.path)
	}
}

func TestSyntheticElements(t *testing.T) {
	elements := syntheticElements(3)
	require.Len(t, elements, 3)
	for i, el := range elements {
		m, ok := el.Get().(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, i, m["seq"])
		assert.NotEmpty(t, m["value"])
	}
}

func TestElementsFromDocument(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "elements.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"a":1},"two",3,null]`), 0o644))
	elements, err := elementsFromDocument(jsonPath)
	require.NoError(t, err)
	require.Len(t, elements, 4)
	assert.Equal(t, "two", elements[1].Get())

	yamlPath := filepath.Join(dir, "elements.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("- a: 1\n- two\n- 3\n"), 0o644))
	elements, err = elementsFromDocument(yamlPath)
	require.NoError(t, err)
	require.Len(t, elements, 3)
	assert.Equal(t, "two", elements[1].Get())

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"not":"an array"}`), 0o644))
	_, err = elementsFromDocument(badPath)
	require.Error(t, err)
}

func TestElementsFromJSONL(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "elements.jsonl")
	content := "{\"a\":1}\n\n\"two\"\n3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	elements, err := elementsFromJSONL(path)
	require.NoError(t, err)
	require.Len(t, elements, 3)

	raw, err := json.Marshal(elements[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	badPath := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(badPath, []byte("{\"a\":1}\nnot json\n"), 0o644))
	_, err = elementsFromJSONL(badPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestElementsFromText(t *testing.T) {
	dir := t.TempDir()

	utf8Path := filepath.Join(dir, "lines.txt")
	require.NoError(t, os.WriteFile(utf8Path, []byte("\xEF\xBB\xBFalpha\nbeta\r\n\ngamma"), 0o644))
	elements, err := elementsFromText(utf8Path)
	require.NoError(t, err)
	require.Len(t, elements, 3)
	assert.Equal(t, "alpha", elements[0].Get())
	assert.Equal(t, "beta", elements[1].Get())
	assert.Equal(t, "gamma", elements[2].Get())

	// UTF-16 little endian with BOM
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFE})
	for _, r := range "alpha\nbeta" {
		buf.WriteByte(byte(r))
		buf.WriteByte(0)
	}
	utf16Path := filepath.Join(dir, "lines16.txt")
	require.NoError(t, os.WriteFile(utf16Path, buf.Bytes(), 0o644))
	elements, err = elementsFromText(utf16Path)
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "alpha", elements[0].Get())
	assert.Equal(t, "beta", elements[1].Get())
}

func TestPumpPipeline(t *testing.T) {
	resetRunFlags()
	ctx := context.Background()

	fn, aerr := jsruntime.New(ctx, `function(e) { if (e.v < 0) return null; e.v = e.v * 10; return e; }`)
	require.Nil(t, aerr)
	schema, err := validation.CompileSchema([]byte(`{"type":"object","properties":{"v":{"type":"number","maximum":100}},"required":["v"]}`))
	require.NoError(t, err)

	s, err := stream.New[types.NullableAny](stream.WithCapacity[types.NullableAny](16))
	require.NoError(t, err)

	p := &pump{stream: s, selector: "payload", fn: fn, schema: schema}

	var elements []types.NullableAny
	for _, doc := range []string{
		`{"payload":{"v":2}}`,  // selected, scaled, accepted
		`{"other":1}`,          // no payload, filtered
		`{"payload":{"v":-1}}`, // transform returns null, filtered
		`{"payload":{"v":50}}`, // scaled past the schema maximum, rejected
	} {
		elements = append(elements, types.NullableAnySetRaw(json.RawMessage(doc)))
	}

	p.produce(ctx, elements)
	require.NoError(t, p.pumpErr)
	assert.Equal(t, 2, p.filtered)
	assert.Equal(t, 1, p.rejected)

	got, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	raw, err := json.Marshal(got[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":20}`, string(raw))
}

func TestPumpPollingDrains(t *testing.T) {
	resetRunFlags()
	s, err := stream.New[types.NullableAny](
		stream.WithCapacity[types.NullableAny](2),
		stream.WithTickInterval[types.NullableAny](5*time.Millisecond),
	)
	require.NoError(t, err)

	p := &pump{stream: s, writeTimeout: 2 * time.Second}
	go p.produce(context.Background(), syntheticElements(10))
	p.consumePolling(5 * time.Millisecond)

	require.NoError(t, p.pumpErr)
	st := s.Stats()
	assert.Equal(t, stream.StateClosed.String(), st.State)
	assert.Equal(t, uint64(10), st.ItemsWritten)
	assert.Equal(t, uint64(10), st.ItemsRead)
}

func TestRunPumpEventMode(t *testing.T) {
	resetRunFlags()
	dir := t.TempDir()
	path := filepath.Join(dir, "elements.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"a":1},{"a":2},{"a":3}]`), 0o644))

	runCapacity = 8
	require.NoError(t, runPump(runCmd, []string{path}))
}

func TestRunPumpOverrun(t *testing.T) {
	resetRunFlags()
	runCapacity = 2
	runCount = 10

	err := runPump(runCmd, nil)
	require.ErrorIs(t, err, ErrAlreadyHandled)
}

func TestRunPumpBadMode(t *testing.T) {
	resetRunFlags()
	runMode = "sideways"
	require.Error(t, runPump(runCmd, nil))
}

func TestRunPumpJournal(t *testing.T) {
	resetRunFlags()
	runCapacity = 8
	runCount = 5
	runJournal = true

	require.NoError(t, runPump(runCmd, nil))

	matches, err := filepath.Glob(filepath.Join(config.Config().Journal.GetPath(), "*.jlog"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	result, err := journal.VerifyFile(matches[0], config.Config().Journal.MaxLineSize)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Entries, 9)

	var kinds []journal.EventKind
	require.NoError(t, journal.ReplayFile(matches[0], config.Config().Journal.MaxLineSize, func(rec journal.Record) error {
		kinds = append(kinds, rec.Event)
		return nil
	}))
	require.NotEmpty(t, kinds)
	assert.Equal(t, journal.EventStreamCreated, kinds[0])
	assert.Equal(t, journal.EventClosed, kinds[len(kinds)-1])
	assert.Contains(t, kinds, journal.EventCloseRequested)
}
