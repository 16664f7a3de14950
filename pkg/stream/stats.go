package stream

import "time"

// counters is the under-lock activity record.
type counters struct {
	itemsWritten uint64
	itemsRead    uint64
	writesFailed uint64
	writerStalls uint64
	createdAt    time.Time
	finishedAt   time.Time
}

// Stats is a point-in-time snapshot of stream state and activity.
type Stats struct {
	State         string    `json:"state"`
	Len           int       `json:"len"`
	Cap           int       `json:"cap"`
	PendingWrites int       `json:"pending_writes"`
	ItemsWritten  uint64    `json:"items_written"`
	ItemsRead     uint64    `json:"items_read"`
	WritesFailed  uint64    `json:"writes_failed"`
	WriterStalls  uint64    `json:"writer_stalls"`
	CreatedAt     time.Time `json:"created_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Stats returns a snapshot of the stream's current state and counters.
// FinishedAt is the zero time until the stream reaches a terminal state.
func (b *Buffered[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:         b.state.String(),
		Len:           b.buf.len(),
		Cap:           b.capacity,
		PendingWrites: b.pending,
		ItemsWritten:  b.counters.itemsWritten,
		ItemsRead:     b.counters.itemsRead,
		WritesFailed:  b.counters.writesFailed,
		WriterStalls:  b.counters.writerStalls,
		CreatedAt:     b.counters.createdAt,
		FinishedAt:    b.counters.finishedAt,
	}
}
