// Package stream implements a bounded, unidirectional, one-time data conduit
// between a single producer and a single consumer.
//
// A Buffered stream holds an ordered, capacity-bounded buffer of elements.
// The producer appends with Write, WriteSlice, WriteWait, or WriteAsync; the
// consumer removes with Read or ReadAll. Consumption is either polling
// (no callbacks; the consumer drives everything, including the final close
// transition) or event-driven (a complete Callbacks triple registered at
// construction; a background monitor nudges the consumer and completes the
// close handshake).
//
// Streams are one-time: Close requests an orderly shutdown, buffered items
// stay readable until drained, and the stream then settles into a closed
// state. Faults are latched: the first buffer overrun, write timeout, or
// close-while-writing race permanently moves the stream to an errored state,
// discards the buffer, and fails all later operations.
//
// Overrun discard: a synchronous write that overruns capacity appends the
// items that fit and then errors, and the errored transition clears the
// buffer. The entire write is observably lost even though some items were
// briefly enqueued. Callers must not assume partial delivery.
package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sluiceio/sluice/internal/common/apperrors"
	"github.com/sluiceio/sluice/internal/common/uuid"
	"github.com/sluiceio/sluice/internal/common/validation"
)

// Buffered is a bounded single-producer, single-consumer stream of T.
// All methods are safe for concurrent use, but the stream is not a
// multi-producer fan-in: elements written by concurrently outstanding
// waiting writes have no defined relative order.
type Buffered[T any] struct {
	id       uuid.UUID
	capacity int
	tick     time.Duration

	mu        sync.Mutex
	buf       ring[T]
	state     State
	err       apperrors.Error // latched fault, set at most once
	pending   int             // suspended writes not yet settled
	notFull   chan struct{}   // closed and replaced to wake suspended writers
	callbacks *Callbacks[T]
	counters  counters

	done chan struct{} // closed on entry into a terminal state
}

// New constructs a stream in the ready state and starts its background
// monitor. Without options the stream has DefaultCapacity, the default tick
// interval, and no callbacks (polling mode).
func New[T any](opts ...Option[T]) (*Buffered[T], error) {
	cfg := defaultConfig[T]()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	b := &Buffered[T]{
		id:        uuid.UUID7(),
		capacity:  cfg.capacity,
		tick:      cfg.tick,
		buf:       newRing[T](cfg.capacity),
		callbacks: cfg.callbacks,
		notFull:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	b.counters.createdAt = time.Now()
	go b.monitor()
	return b, nil
}

// Write appends a single item. It fails with ErrInvalidArgument if item is
// absent, with ErrInvalidOperation if the stream no longer accepts writes,
// and with ErrBufferOverrun if the buffer is full. An overrun errors the
// stream terminally; in event-driven mode the fault is delivered through
// OnError and Write returns nil for it.
func (b *Buffered[T]) Write(item T) error {
	if validation.IsAbsent(item) {
		return ErrInvalidArgument.Msg("cannot write an absent value")
	}
	return b.writeItems([]T{item})
}

// WriteSlice appends items in order. A nil slice fails with
// ErrInvalidArgument and a sparse one with ErrInvalidElement; an empty
// non-nil slice is a no-op. Items are appended until all are consumed or
// capacity runs out; overrunning capacity errors the stream terminally and
// the whole write is lost (see the overrun note in the package docs).
func (b *Buffered[T]) WriteSlice(items []T) error {
	if err := b.checkCollection(items); err != nil {
		return err
	}
	return b.writeItems(items)
}

func (b *Buffered[T]) checkCollection(items []T) error {
	if items == nil {
		return ErrInvalidArgument.Msg("cannot write an absent collection")
	}
	if idx, sparse := validation.FirstHole(items); sparse {
		return ErrInvalidElement.Msg(fmt.Sprintf("collection has a hole at index %d", idx))
	}
	return nil
}

func (b *Buffered[T]) writeItems(items []T) error {
	b.mu.Lock()
	if err := b.writableLocked(); err != nil {
		b.mu.Unlock()
		return err
	}
	n := b.buf.pushN(items)
	b.counters.itemsWritten += uint64(n)
	if n == len(items) {
		b.mu.Unlock()
		return nil
	}
	// Overrun discard: the items appended so far stay briefly enqueued, then
	// the errored transition clears the buffer and the whole write is lost.
	b.counters.writesFailed++
	err := ErrBufferOverrun.Msg(fmt.Sprintf("write of %d items overran capacity %d", len(items), b.capacity))
	cb, latched := b.latchLocked(err)
	b.mu.Unlock()
	if latched && cb != nil {
		b.fire(cb.OnError)
		return nil
	}
	return err
}

// Read removes and returns the oldest buffered item. The second return is
// false when no item was available. A read that finds a closing stream fully
// drained, with no writes in flight, completes the close handshake; this is
// how a polling consumer drives the stream to closed.
func (b *Buffered[T]) Read() (T, bool, error) {
	var zero T
	b.mu.Lock()
	if err := b.readableLocked(); err != nil {
		b.mu.Unlock()
		return zero, false, err
	}
	if item, ok := b.buf.pop(); ok {
		b.counters.itemsRead++
		if b.pending > 0 {
			b.broadcastLocked()
		}
		b.mu.Unlock()
		return item, true, nil
	}
	if b.state == StateClosing && b.pending == 0 {
		cb := b.completeCloseLocked()
		b.mu.Unlock()
		if cb != nil {
			b.fire(cb.OnClosed)
		}
		return zero, false, nil
	}
	b.mu.Unlock()
	return zero, false, nil
}

// ReadAll atomically removes and returns all buffered items in FIFO order.
// The returned slice is non-nil even when nothing was buffered. Like Read,
// a ReadAll that leaves a closing stream drained, with no writes in flight,
// completes the close handshake.
func (b *Buffered[T]) ReadAll() ([]T, error) {
	b.mu.Lock()
	if err := b.readableLocked(); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	items := b.buf.drain()
	b.counters.itemsRead += uint64(len(items))
	if len(items) > 0 && b.pending > 0 {
		b.broadcastLocked()
	}
	if b.state == StateClosing && b.pending == 0 {
		cb := b.completeCloseLocked()
		b.mu.Unlock()
		if cb != nil {
			b.fire(cb.OnClosed)
		}
		return items, nil
	}
	b.mu.Unlock()
	return items, nil
}

// Close requests an orderly shutdown. It never fails: calling it on a
// closing, closed, or errored stream is a no-op. The stream moves to closed
// only once the buffer has drained and no writes remain in flight; that
// completion is driven by the consumer's reads or by the monitor.
func (b *Buffered[T]) Close() {
	b.mu.Lock()
	if b.state != StateReady {
		b.mu.Unlock()
		return
	}
	b.state = StateClosing
	// Wake suspended writers so they observe the close request promptly.
	b.broadcastLocked()
	b.mu.Unlock()
}

// writableLocked reports whether the stream accepts new writes.
func (b *Buffered[T]) writableLocked() apperrors.Error {
	switch b.state {
	case StateReady:
		return nil
	case StateClosing:
		return ErrInvalidOperation.Msg("close has been requested")
	case StateErrored:
		return ErrInvalidOperation.Msg("stream has errored")
	default:
		return ErrInvalidOperation.Msg("stream is closed")
	}
}

// readableLocked reports whether the stream serves reads. The read path
// surfaces the latched fault first, wrapped so callers match it both as
// ErrInvalidOperation and as the original fault kind.
func (b *Buffered[T]) readableLocked() apperrors.Error {
	if b.err != nil {
		return ErrInvalidOperation.MsgErr(b.err.Error(), b.err)
	}
	if b.state == StateClosed {
		return ErrInvalidOperation.Msg("stream is closed")
	}
	return nil
}

// latchLocked records err as the stream's terminal fault and performs the
// errored transition: the buffer is discarded, waiters are woken, and the
// monitor is stopped. It is a no-op when a fault is already latched or the
// stream is closed. It returns the callbacks to notify and whether this call
// performed the transition; the caller fires OnError outside the lock.
func (b *Buffered[T]) latchLocked(err apperrors.Error) (*Callbacks[T], bool) {
	if b.err != nil || b.state == StateClosed {
		return nil, false
	}
	b.err = err
	b.state = StateErrored
	b.buf.release()
	cb := b.callbacks
	b.callbacks = nil
	b.terminalLocked()
	return cb, true
}

// completeCloseLocked performs the closing-to-closed transition. Callers must
// have verified the stream is closing, drained, and free of in-flight writes.
// It returns the callbacks to notify; the caller fires OnClosed outside the
// lock.
func (b *Buffered[T]) completeCloseLocked() *Callbacks[T] {
	b.state = StateClosed
	b.buf.release()
	cb := b.callbacks
	b.callbacks = nil
	b.terminalLocked()
	return cb
}

// terminalLocked finishes entry into a terminal state.
func (b *Buffered[T]) terminalLocked() {
	b.counters.finishedAt = time.Now()
	b.broadcastLocked()
	close(b.done)
}

// broadcastLocked wakes every suspended writer.
func (b *Buffered[T]) broadcastLocked() {
	close(b.notFull)
	b.notFull = make(chan struct{})
}

// fire invokes a callback outside the stream lock, isolating panics so a
// misbehaving observer cannot corrupt stream state.
func (b *Buffered[T]) fire(fn func(*Buffered[T])) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("stream", b.id.String()).Interface("recover", r).Msg("stream callback panicked")
		}
	}()
	fn(b)
}

// ID returns the stream's unique identifier.
func (b *Buffered[T]) ID() uuid.UUID {
	return b.id
}

// State returns the current lifecycle state.
func (b *Buffered[T]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Err returns the latched fault, or nil if none has occurred.
func (b *Buffered[T]) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		return nil
	}
	return b.err
}

// Len returns the number of buffered items.
func (b *Buffered[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.len()
}

// Cap returns the capacity fixed at construction.
func (b *Buffered[T]) Cap() int {
	return b.capacity
}

// HasData reports whether at least one item is buffered.
func (b *Buffered[T]) HasData() bool {
	return b.Len() > 0
}

// Done returns a channel closed once the stream reaches a terminal state.
func (b *Buffered[T]) Done() <-chan struct{} {
	return b.done
}
