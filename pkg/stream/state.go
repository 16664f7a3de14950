package stream

// State describes the lifecycle position of a stream.
//
// A stream starts in StateReady. Close moves it to StateClosing; the
// transition to StateClosed happens only once the buffer has drained and no
// suspended writes remain. StateErrored is entered when a fault latches and
// is exclusive with StateClosed. Both StateClosed and StateErrored are
// terminal.
type State int

const (
	// StateReady accepts writes and reads.
	StateReady State = iota
	// StateClosing no longer accepts writes; buffered items remain readable.
	StateClosing
	// StateClosed is terminal; the buffer has fully drained after a close.
	StateClosed
	// StateErrored is terminal; a fault has latched and buffered data is gone.
	StateErrored
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateErrored
}
