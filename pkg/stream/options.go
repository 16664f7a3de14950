package stream

import (
	"time"

	"github.com/sluiceio/sluice/internal/common/apperrors"
)

const (
	// DefaultCapacity bounds the buffer when WithCapacity is not supplied.
	DefaultCapacity = 1024

	// DefaultTickInterval is the base scheduling interval for suspended
	// writes. The background monitor runs at monitorTickFactor times this.
	DefaultTickInterval = 33 * time.Millisecond

	monitorTickFactor = 5
)

// Callbacks is the optional notification triple for event-driven consumption.
// All three must be supplied together; construction rejects a partial set.
// Each callback receives the stream itself so observers can inspect state,
// buffered data, and the latched error from inside the notification.
type Callbacks[T any] struct {
	// OnData fires from the background monitor while the buffer is non-empty,
	// and as a nudge whenever a writer stalls against a full buffer.
	OnData func(*Buffered[T])
	// OnError fires once, when a fault latches and the stream becomes errored.
	OnError func(*Buffered[T])
	// OnClosed fires once, when a close request completes after the buffer
	// has fully drained.
	OnClosed func(*Buffered[T])
}

func (c *Callbacks[T]) complete() bool {
	return c.OnData != nil && c.OnError != nil && c.OnClosed != nil
}

func (c *Callbacks[T]) empty() bool {
	return c.OnData == nil && c.OnError == nil && c.OnClosed == nil
}

// Option configures a stream at construction. Options are collected first
// and validated once by New.
type Option[T any] func(*config[T])

type config[T any] struct {
	capacity  int
	tick      time.Duration
	callbacks *Callbacks[T]
}

func defaultConfig[T any]() config[T] {
	return config[T]{
		capacity: DefaultCapacity,
		tick:     DefaultTickInterval,
	}
}

// WithCapacity bounds the buffer to capacity elements.
// Capacity must be a positive integer.
func WithCapacity[T any](capacity int) Option[T] {
	return func(c *config[T]) {
		c.capacity = capacity
	}
}

// WithCallbacks switches the stream to event-driven mode. The triple must be
// fully populated; an all-nil value is treated as polling mode.
func WithCallbacks[T any](cb Callbacks[T]) Option[T] {
	return func(c *config[T]) {
		c.callbacks = &cb
	}
}

// WithTickInterval overrides the base scheduling interval used by the
// background monitor and stall accounting. Mainly useful in tests; the
// default suits production use.
func WithTickInterval[T any](tick time.Duration) Option[T] {
	return func(c *config[T]) {
		c.tick = tick
	}
}

func (c *config[T]) validate() apperrors.Error {
	if c.capacity <= 0 {
		return ErrInvalidArgument.Msg("capacity must be a positive integer")
	}
	if c.tick <= 0 {
		return ErrInvalidArgument.Msg("tick interval must be positive")
	}
	if c.callbacks != nil {
		if c.callbacks.empty() {
			c.callbacks = nil
		} else if !c.callbacks.complete() {
			return ErrInvalidArgument.Msg("callbacks must be supplied as a complete set")
		}
	}
	return nil
}
