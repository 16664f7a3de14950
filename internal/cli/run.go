package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"sigs.k8s.io/yaml"

	"github.com/sluiceio/sluice/internal/common/jsruntime"
	"github.com/sluiceio/sluice/internal/common/validation"
	"github.com/sluiceio/sluice/internal/config"
	"github.com/sluiceio/sluice/internal/journal"
	"github.com/sluiceio/sluice/pkg/stream"
	"github.com/sluiceio/sluice/pkg/types"
)

var (
	// Run command flags
	runCount            int
	runSource           string
	runMode             string
	runCapacity         int
	runWriteTimeout     string
	runSelectPath       string
	runTransform        string
	runTransformTimeout time.Duration
	runSchemaFile       string
	runJournal          bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [FILE] [flags]",
	Short: "Pump a source through a buffered stream and print what drains",
	Long: `Pump a source through a bounded buffered stream. The producer writes
elements one by one; the consumer drains them and prints each drained element
to stdout as one JSON value per line. A summary of the stream's statistics is
printed to stderr at the end.

Without a file a synthetic sequence is generated. With a file the format is
inferred from the extension: .json and .yaml files hold an array of elements,
.jsonl holds one JSON element per line, anything else is read as text with
one element per line (UTF-8 or UTF-16 with BOM). "-" reads JSONL from stdin.

Examples:
  # Pump 100 synthetic elements through a 16-slot buffer
  sluice run --count 100 --capacity 16

  # Pump a JSON array, keeping only the "user" field of each element
  sluice run events.json --select user

  # Rescale readings with a JS transform, dropping elements it returns null for
  sluice run readings.jsonl --transform 'function(e) { if (e.v < 0) return null; e.v *= 10; return e; }'

  # Poll instead of using callbacks, with a stall budget on writes
  sluice run data.json --mode polling --write-timeout 500ms

  # Journal the pump and keep the journal for later verification
  sluice run data.json --journal`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPump,
}

// init initializes the run command and adds it to the root command
func init() {
	runCmd.Flags().IntVar(&runCount, "count", 16, "Number of synthetic elements when no file is given")
	runCmd.Flags().StringVar(&runSource, "source", "", "Source format: synthetic, json, yaml, jsonl or text (default: by file extension)")
	runCmd.Flags().StringVar(&runMode, "mode", "event", "Consumption mode: event or polling")
	runCmd.Flags().IntVar(&runCapacity, "capacity", 0, "Stream buffer capacity (default: from config)")
	runCmd.Flags().StringVar(&runWriteTimeout, "write-timeout", "", "Stall budget per write, e.g. 500ms; empty makes full-buffer writes fail")
	runCmd.Flags().StringVar(&runSelectPath, "select", "", "gjson path applied to each element; elements without it are dropped")
	runCmd.Flags().StringVar(&runTransform, "transform", "", "JS map function, inline or @file; returning null drops the element")
	runCmd.Flags().DurationVar(&runTransformTimeout, "transform-timeout", 500*time.Millisecond, "Per-element transform time budget")
	runCmd.Flags().StringVar(&runSchemaFile, "schema", "", "JSON schema file; elements failing validation are dropped")
	runCmd.Flags().BoolVar(&runJournal, "journal", false, "Journal the stream lifecycle")
	rootCmd.AddCommand(runCmd)
}

// pump carries the state of one run invocation.
type pump struct {
	stream   *stream.Buffered[types.NullableAny]
	recorder *journal.Recorder
	selector string
	fn       *jsruntime.JSFunction
	schema   *jsonschema.Schema

	writeTimeout time.Duration

	filtered int
	rejected int
	pumpErr  error
}

func runPump(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if runMode != "event" && runMode != "polling" {
		return fmt.Errorf("invalid mode %q: expected event or polling", runMode)
	}

	sourcePath := ""
	if len(args) == 1 {
		sourcePath = args[0]
	}
	elements, sourceLabel, err := loadElements(sourcePath)
	if err != nil {
		return err
	}

	p := &pump{}
	if runWriteTimeout != "" {
		d, err := config.ParseDuration(runWriteTimeout)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid write timeout %q", runWriteTimeout)
		}
		p.writeTimeout = d
	}
	p.selector = runSelectPath
	if runTransform != "" {
		code := runTransform
		if strings.HasPrefix(code, "@") {
			data, err := os.ReadFile(strings.TrimPrefix(code, "@"))
			if err != nil {
				return fmt.Errorf("reading transform: %w", err)
			}
			code = string(data)
		}
		fn, apperr := jsruntime.New(ctx, code)
		if apperr != nil {
			return fmt.Errorf("compiling transform: %w", apperr)
		}
		p.fn = fn
	}
	if runSchemaFile != "" {
		data, err := os.ReadFile(runSchemaFile)
		if err != nil {
			return fmt.Errorf("reading schema: %w", err)
		}
		schema, err := validation.CompileSchema(data)
		if err != nil {
			return fmt.Errorf("compiling schema: %w", err)
		}
		p.schema = schema
	}

	capacity := runCapacity
	if capacity == 0 {
		capacity = config.Config().Stream.DefaultCapacity
	}
	tick := config.Config().Stream.GetTickIntervalOrDefault()

	// Event mode consumes through callbacks; polling mode reads on a timer.
	done := make(chan struct{})
	var closeOnce sync.Once
	var consumeMu sync.Mutex
	opts := []stream.Option[types.NullableAny]{
		stream.WithCapacity[types.NullableAny](capacity),
		stream.WithTickInterval[types.NullableAny](tick),
	}
	if runMode == "event" {
		opts = append(opts, stream.WithCallbacks[types.NullableAny](stream.Callbacks[types.NullableAny]{
			OnData: func(b *stream.Buffered[types.NullableAny]) {
				consumeMu.Lock()
				defer consumeMu.Unlock()
				p.drainOnce()
			},
			OnError: func(b *stream.Buffered[types.NullableAny]) {
				closeOnce.Do(func() { close(done) })
			},
			OnClosed: func(b *stream.Buffered[types.NullableAny]) {
				closeOnce.Do(func() { close(done) })
			},
		}))
	}
	s, err := stream.New[types.NullableAny](opts...)
	if err != nil {
		return err
	}
	p.stream = s

	if runJournal {
		jcfg := config.Config().Journal
		rec, err := journal.NewRecorder(jcfg.GetPath(), s.ID().String(), jcfg.FlushInterval)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		p.recorder = rec
		rec.StreamCreated(capacity, runMode)
	}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.produce(ctx, elements)
	}()

	if runMode == "polling" {
		p.consumePolling(tick)
	} else {
		<-done
	}
	wg.Wait()

	// The closed notification fires before the drain that completed closure
	// journals its entry. Sealing under the drain lock keeps the seal last.
	consumeMu.Lock()
	if p.recorder != nil {
		if s.State() == stream.StateErrored {
			p.recorder.Errored(s.Err())
		} else {
			p.recorder.Closed()
		}
		p.recorder.Close()
	}
	consumeMu.Unlock()

	p.printSummary(sourceLabel, time.Since(start))

	if p.pumpErr != nil && s.Err() == nil {
		return p.pumpErr
	}
	if s.Err() != nil {
		// The fault is already visible in the summary.
		return ErrAlreadyHandled
	}
	return nil
}

// produce pushes elements through the select/transform/schema pipeline into
// the stream, then requests closure. It stops at the first write failure or
// latched fault.
func (p *pump) produce(ctx context.Context, elements []types.NullableAny) {
	defer func() {
		if p.recorder != nil {
			p.recorder.CloseRequested()
		}
		p.stream.Close()
	}()

	for _, el := range elements {
		if p.selector != "" {
			raw, err := json.Marshal(el)
			if err != nil {
				p.pumpErr = err
				return
			}
			res := gjson.GetBytes(raw, p.selector)
			if !res.Exists() {
				p.filtered++
				continue
			}
			el = types.NullableAnySetRaw(json.RawMessage(res.Raw))
		}

		if p.fn != nil {
			out, apperr := p.fn.Run(ctx, el.Get(), jsruntime.Options{Timeout: runTransformTimeout})
			if apperr != nil {
				p.pumpErr = fmt.Errorf("transform failed: %w", apperr)
				return
			}
			if out == nil {
				p.filtered++
				continue
			}
			next, err := types.NullableAnyFrom(out)
			if err != nil {
				p.pumpErr = fmt.Errorf("transform result: %w", err)
				return
			}
			el = next
		}

		if p.schema != nil {
			if err := validation.ValidateElement(p.schema, el); err != nil {
				p.rejected++
				continue
			}
		}

		var werr error
		if p.writeTimeout > 0 {
			werr = p.stream.WriteWait(ctx, []types.NullableAny{el}, p.writeTimeout)
		} else {
			werr = p.stream.Write(el)
		}
		if werr != nil {
			if p.recorder != nil && errors.Is(werr, stream.ErrBufferOverrun) {
				p.recorder.Overrun(1)
			}
			p.pumpErr = werr
			return
		}
		// In event mode an overrun surfaces through OnError, not the
		// write's return value.
		if p.stream.State() == stream.StateErrored {
			if p.recorder != nil {
				p.recorder.Overrun(1)
			}
			p.pumpErr = p.stream.Err()
			return
		}
		if p.recorder != nil {
			p.recorder.ElementsWritten(1, p.stream.Len())
		}
	}
}

// drainOnce moves everything currently buffered to stdout. Used as the
// OnData callback in event mode and by the polling loop.
func (p *pump) drainOnce() int {
	elements, err := p.stream.ReadAll()
	if err != nil {
		return 0
	}
	for _, el := range elements {
		raw, err := json.Marshal(el)
		if err != nil {
			continue
		}
		fmt.Println(string(raw))
	}
	if len(elements) > 0 && p.recorder != nil {
		p.recorder.Drained(len(elements))
	}
	return len(elements)
}

// consumePolling reads the stream on a timer until it reaches a terminal
// state. An empty read sleeps one tick before trying again.
func (p *pump) consumePolling(tick time.Duration) {
	for {
		n := p.drainOnce()
		state := p.stream.State()
		if state == stream.StateClosed || state == stream.StateErrored {
			return
		}
		if n == 0 {
			time.Sleep(tick)
		}
	}
}

// printSummary writes the pump outcome to stderr, leaving stdout to the
// drained elements.
func (p *pump) printSummary(sourceLabel string, elapsed time.Duration) {
	stats := p.stream.Stats()
	if jsonOutput {
		summary := map[string]any{
			"stream_id":     p.stream.ID().String(),
			"source":        sourceLabel,
			"state":         stats.State,
			"written":       stats.ItemsWritten,
			"read":          stats.ItemsRead,
			"writes_failed": stats.WritesFailed,
			"writer_stalls": stats.WriterStalls,
			"filtered":      p.filtered,
			"rejected":      p.rejected,
			"duration":      elapsed.String(),
		}
		if p.recorder != nil {
			summary["journal"] = p.recorder.Path()
		}
		if err := p.stream.Err(); err != nil {
			summary["error"] = err.Error()
		}
		data, err := json.MarshalIndent(summary, "", "  ")
		if err == nil {
			fmt.Fprintln(os.Stderr, string(data))
		}
		return
	}

	label := okLabel
	if p.stream.Err() != nil {
		label = errorLabel
	}
	label.Fprintf(os.Stderr, "stream %s %s\n", p.stream.ID().String(), stats.State)
	fmt.Fprintf(os.Stderr, "  source:        %s\n", sourceLabel)
	fmt.Fprintf(os.Stderr, "  written:       %d\n", stats.ItemsWritten)
	fmt.Fprintf(os.Stderr, "  read:          %d\n", stats.ItemsRead)
	fmt.Fprintf(os.Stderr, "  writes failed: %d\n", stats.WritesFailed)
	fmt.Fprintf(os.Stderr, "  writer stalls: %d\n", stats.WriterStalls)
	if p.filtered > 0 {
		fmt.Fprintf(os.Stderr, "  filtered:      %d\n", p.filtered)
	}
	if p.rejected > 0 {
		fmt.Fprintf(os.Stderr, "  rejected:      %d\n", p.rejected)
	}
	fmt.Fprintf(os.Stderr, "  duration:      %s\n", elapsed)
	if p.recorder != nil {
		fmt.Fprintf(os.Stderr, "  journal:       %s\n", p.recorder.Path())
	}
	if err := p.stream.Err(); err != nil {
		errorLabel.Fprintf(os.Stderr, "  error:         %s\n", err.Error())
	}
}

// loadElements reads the source into elements. Returns the elements, a label
// for the summary, and any error encountered while loading.
func loadElements(path string) ([]types.NullableAny, string, error) {
	source := runSource
	if source == "" {
		source = detectSource(path)
	}

	switch source {
	case "synthetic":
		return syntheticElements(runCount), fmt.Sprintf("synthetic(%d)", runCount), nil
	case "json", "yaml":
		elements, err := elementsFromDocument(path)
		return elements, path, err
	case "jsonl":
		elements, err := elementsFromJSONL(path)
		label := path
		if path == "-" {
			label = "stdin"
		}
		return elements, label, err
	case "text":
		elements, err := elementsFromText(path)
		return elements, path, err
	default:
		return nil, "", fmt.Errorf("unknown source format %q", source)
	}
}

// detectSource infers the source format from the path.
func detectSource(path string) string {
	if path == "" {
		return "synthetic"
	}
	if path == "-" {
		return "jsonl"
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".jsonl", ".ndjson":
		return "jsonl"
	default:
		return "text"
	}
}

// syntheticElements generates a deterministic sequence of map elements.
func syntheticElements(count int) []types.NullableAny {
	elements := make([]types.NullableAny, 0, count)
	for i := 0; i < count; i++ {
		el, err := types.NullableAnyFrom(map[string]any{
			"seq":   i,
			"value": fmt.Sprintf("element-%d", i),
		})
		if err != nil {
			continue
		}
		elements = append(elements, el)
	}
	return elements
}

// elementsFromDocument loads a JSON or YAML file holding an array of
// elements. YAML is converted to JSON first, so both formats share a path.
func elementsFromDocument(path string) ([]types.NullableAny, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	elements := make([]types.NullableAny, 0, len(raw))
	for i, v := range raw {
		el, err := types.NullableAnyFrom(v)
		if err != nil {
			return nil, fmt.Errorf("element %d in %s: %w", i, path, err)
		}
		elements = append(elements, el)
	}
	return elements, nil
}

// elementsFromJSONL loads one JSON element per line, from a file or stdin.
func elementsFromJSONL(path string) ([]types.NullableAny, error) {
	var reader *bufio.Scanner
	if path == "-" {
		reader = bufio.NewScanner(os.Stdin)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		reader = bufio.NewScanner(f)
	}
	reader.Buffer(make([]byte, 64*1024), 1024*1024)

	var elements []types.NullableAny
	lineNum := 0
	for reader.Scan() {
		lineNum++
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}
		if !json.Valid([]byte(line)) {
			return nil, fmt.Errorf("line %d: not valid JSON", lineNum)
		}
		elements = append(elements, types.NullableAnySetRaw(json.RawMessage(line)))
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return elements, nil
}

// elementsFromText loads a text file with one string element per line.
// UTF-16 input is detected by its BOM and decoded; everything else is
// treated as UTF-8.
func elementsFromText(path string) ([]types.NullableAny, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if len(data) >= 2 && ((data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF)) {
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		decoded, _, err := transform.Bytes(decoder, data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		data = decoded
	} else if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}

	var elements []types.NullableAny
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		el, err := types.NullableAnyFrom(line)
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	return elements, nil
}
