package stream

import "time"

// monitor is the stream's owned background task. It ticks at a multiple of
// the base interval, nudging event-driven consumers while data is buffered
// and completing the close handshake once a closing stream has drained. The
// ticker is scoped to this goroutine and stopped deterministically: the
// monitor exits as soon as the stream reaches a terminal state.
//
// The monitor runs in polling mode too. It has no callback to fire there,
// but it still completes the close handshake for consumers that stop
// reading after a close request.
func (b *Buffered[T]) monitor() {
	ticker := time.NewTicker(b.tick * monitorTickFactor)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
		}

		b.mu.Lock()
		if b.state.Terminal() {
			b.mu.Unlock()
			return
		}
		if b.buf.len() > 0 {
			cb := b.callbacks
			b.mu.Unlock()
			if cb != nil {
				b.fire(cb.OnData)
			}
			continue
		}
		if b.state == StateClosing && b.pending == 0 {
			cb := b.completeCloseLocked()
			b.mu.Unlock()
			if cb != nil {
				b.fire(cb.OnClosed)
			}
			return
		}
		b.mu.Unlock()
	}
}
