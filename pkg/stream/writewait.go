package stream

import (
	"context"
	"fmt"
	"time"
)

// WriteWait appends items, suspending until every item has been accepted.
// Input checks mirror WriteSlice and fail synchronously without touching
// stream state. The write counts as in flight from the moment WriteWait
// returns control to the scheduler: a concurrent close will not complete
// until it settles.
//
// timeout bounds the cumulative time spent stalled against a full buffer;
// any partial progress resets the budget. A timeout of zero waits
// indefinitely. Exhausting the budget errors the stream terminally with
// ErrWriteTimeout, and a close requested while the write is suspended errors
// it with ErrInvalidOperation. Cancelling ctx abandons the write with
// ctx.Err() and leaves the stream state untouched.
func (b *Buffered[T]) WriteWait(ctx context.Context, items []T, timeout time.Duration) error {
	if err := b.checkCollection(items); err != nil {
		return err
	}
	if timeout < 0 {
		return ErrInvalidArgument.Msg("timeout cannot be negative")
	}
	b.mu.Lock()
	// Entry is a poll point: a latched fault wins over the state check.
	if b.err != nil {
		err := b.err
		b.mu.Unlock()
		return err
	}
	if err := b.writableLocked(); err != nil {
		b.mu.Unlock()
		return err
	}
	b.pending++
	b.mu.Unlock()
	return b.waitAppend(ctx, items, timeout)
}

// WriteAsync queues items for writing and returns a channel that settles
// exactly once with the write's outcome. Malformed input fails on the second
// return value, synchronously, and nothing is queued. The write is counted
// as in flight before WriteAsync returns, so a close request issued
// immediately after cannot discard it.
func (b *Buffered[T]) WriteAsync(ctx context.Context, items []T, timeout time.Duration) (<-chan error, error) {
	if err := b.checkCollection(items); err != nil {
		return nil, err
	}
	if timeout < 0 {
		return nil, ErrInvalidArgument.Msg("timeout cannot be negative")
	}
	b.mu.Lock()
	// Entry is a poll point: a latched fault wins over the state check.
	if b.err != nil {
		err := b.err
		b.mu.Unlock()
		return nil, err
	}
	if err := b.writableLocked(); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.pending++
	b.mu.Unlock()

	result := make(chan error, 1)
	go func() {
		result <- b.waitAppend(ctx, items, timeout)
	}()
	return result, nil
}

// waitAppend is the suspension loop shared by WriteWait and WriteAsync. The
// caller has already incremented the in-flight count; waitAppend decrements
// it when the write settles. Writers park on the stream's wake channel and
// are woken by reads that free space, by a close request, or by a latched
// fault, instead of re-checking on a timer.
func (b *Buffered[T]) waitAppend(ctx context.Context, items []T, timeout time.Duration) error {
	defer func() {
		b.mu.Lock()
		b.pending--
		b.mu.Unlock()
	}()

	remaining := timeout
	b.mu.Lock()
	for {
		// A latched fault wins at every wake point.
		if b.err != nil {
			err := b.err
			b.mu.Unlock()
			return err
		}
		if b.state != StateReady {
			// The stream moved to closing underneath this write. The stream
			// is the actor here, not the caller, so the failure latches.
			b.counters.writesFailed++
			err := ErrInvalidOperation.Msg("stream closed while write in flight")
			cb, latched := b.latchLocked(err)
			b.mu.Unlock()
			if latched && cb != nil {
				b.fire(cb.OnError)
			}
			return err
		}
		if n := b.buf.pushN(items); n > 0 {
			items = items[n:]
			b.counters.itemsWritten += uint64(n)
			remaining = timeout // progress resets the stall budget
		}
		if len(items) == 0 {
			b.mu.Unlock()
			return nil
		}
		if timeout > 0 && remaining <= 0 {
			b.counters.writesFailed++
			err := ErrWriteTimeout.Msg(fmt.Sprintf("no progress within %s", timeout))
			cb, latched := b.latchLocked(err)
			b.mu.Unlock()
			if latched && cb != nil {
				b.fire(cb.OnError)
			}
			return err
		}

		// Stalled: nudge the consumer to drain, then suspend until a read
		// frees space or the stream changes state.
		b.counters.writerStalls++
		wake := b.notFull
		cb := b.callbacks
		b.mu.Unlock()

		if cb != nil {
			b.fire(cb.OnData)
		}

		var timer *time.Timer
		var timerC <-chan time.Time
		if timeout > 0 {
			timer = time.NewTimer(remaining)
			timerC = timer.C
		}
		start := time.Now()
		select {
		case <-wake:
		case <-timerC:
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		}
		if timer != nil {
			timer.Stop()
		}

		b.mu.Lock()
		if timeout > 0 {
			remaining -= time.Since(start)
		}
	}
}
