package journal

// Recorder journals the lifecycle of a single stream through typed event
// methods. It is safe for concurrent use.
type Recorder struct {
	w        *Writer
	streamID string
}

// NewRecorder creates a journal under dir for the given stream.
func NewRecorder(dir string, streamID string, flushInterval int) (*Recorder, error) {
	w, err := NewWriter(JournalPath(dir, streamID), flushInterval)
	if err != nil {
		return nil, err
	}
	return &Recorder{w: w, streamID: streamID}, nil
}

// Path returns the journal file path.
func (r *Recorder) Path() string {
	return r.w.Path()
}

// StreamCreated records stream creation parameters.
func (r *Recorder) StreamCreated(capacity int, mode string) error {
	return r.w.Append(EventStreamCreated, r.streamID, map[string]any{
		"capacity": capacity,
		"mode":     mode,
	})
}

// ElementsWritten records a successful write. buffered is the buffer length
// after the write.
func (r *Recorder) ElementsWritten(count int, buffered int) error {
	return r.w.Append(EventWrite, r.streamID, map[string]any{
		"count":    count,
		"buffered": buffered,
	})
}

// Overrun records a synchronous write that exceeded capacity. dropped is the
// number of buffered elements discarded when the stream errored.
func (r *Recorder) Overrun(dropped int) error {
	return r.w.Append(EventOverrun, r.streamID, map[string]any{
		"dropped": dropped,
	})
}

// CloseRequested records the producer asking for closure.
func (r *Recorder) CloseRequested() error {
	return r.w.Append(EventCloseRequested, r.streamID, nil)
}

// Drained records a consumer bulk read of count elements.
func (r *Recorder) Drained(count int) error {
	return r.w.Append(EventDrained, r.streamID, map[string]any{
		"count": count,
	})
}

// Closed records the stream reaching its final closed state.
func (r *Recorder) Closed() error {
	return r.w.Append(EventClosed, r.streamID, nil)
}

// Errored records the stream latching a terminal fault.
func (r *Recorder) Errored(fault error) error {
	fields := map[string]any{}
	if fault != nil {
		fields["error"] = fault.Error()
	}
	return r.w.Append(EventErrored, r.streamID, fields)
}

// Flush writes buffered entries to disk.
func (r *Recorder) Flush() error {
	return r.w.Flush()
}

// Close flushes and closes the underlying journal.
func (r *Recorder) Close() error {
	return r.w.Close()
}
