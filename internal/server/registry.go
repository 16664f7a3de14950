package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sluiceio/sluice/internal/common/apperrors"
	"github.com/sluiceio/sluice/internal/common/uuid"
	"github.com/sluiceio/sluice/internal/common/validation"
	"github.com/sluiceio/sluice/internal/config"
	"github.com/sluiceio/sluice/internal/journal"
	"github.com/sluiceio/sluice/pkg/api"
	"github.com/sluiceio/sluice/pkg/stream"
)

// lifecyclePublishTimeout bounds how long the drain loop waits for a slow
// tap when publishing the final lifecycle event. Element events are dropped
// rather than waited on.
const lifecyclePublishTimeout = time.Second

// StreamManager defines the lifecycle operations for managed streams.
type StreamManager interface {
	CreateStream(ctx context.Context, req *api.StreamCreateRequest) (*api.StreamInfo, apperrors.Error)
	GetStream(id uuid.UUID) (*api.StreamInfo, apperrors.Error)
	WriteElements(ctx context.Context, id uuid.UUID, elements []any) (*api.ElementsWriteResponse, apperrors.Error)
	CloseStream(id uuid.UUID) (*api.StreamInfo, apperrors.Error)
	Count() int
	Shutdown(ctx context.Context)
}

// managedStream couples a buffered stream with the drain loop that consumes
// it, the journal recorder for its lifecycle, and the server-side write
// policy. The stream runs with callbacks; overruns surface through the
// latched fault rather than write return values.
type managedStream struct {
	id           uuid.UUID
	name         string
	stream       *stream.Buffered[any]
	recorder     *journal.Recorder // nil when journaling is disabled
	writeTimeout time.Duration     // 0 means fail-fast writes
	wake         chan struct{}
	cancel       context.CancelFunc
}

// nudge wakes the drain loop if it is suspended. The wake channel holds one
// pending signal; extra nudges coalesce.
func (ms *managedStream) nudge() {
	select {
	case ms.wake <- struct{}{}:
	default:
	}
}

// info returns a point-in-time snapshot of the managed stream.
func (ms *managedStream) info() *api.StreamInfo {
	info := &api.StreamInfo{
		StreamID: ms.id.String(),
		Name:     ms.name,
		Stats:    ms.stream.Stats(),
	}
	if ms.recorder != nil {
		info.Journal = ms.recorder.Path()
	}
	if err := ms.stream.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}

// activeStreams manages the collection of managed streams.
// Provides thread-safe access to stream storage and lifecycle management.
type activeStreams struct {
	mu       sync.RWMutex
	streams  map[uuid.UUID]*managedStream
	wg       sync.WaitGroup
	draining bool
}

var streamManager *activeStreams

func init() {
	streamManager = &activeStreams{
		streams: make(map[uuid.UUID]*managedStream),
	}
}

// ActiveStreamManager returns the global stream manager instance.
// Provides access to stream lifecycle management functions.
func ActiveStreamManager() StreamManager {
	return streamManager
}

// CreateStream creates a managed stream from the request and starts its
// drain loop. Returns the created stream's info and any error encountered
// during creation.
func (as *activeStreams) CreateStream(ctx context.Context, req *api.StreamCreateRequest) (*api.StreamInfo, apperrors.Error) {
	if req == nil {
		return nil, ErrBadRequest
	}
	if req.Name != "" && !validation.ValidStreamName(req.Name) {
		return nil, ErrBadRequest.New("invalid stream name")
	}
	if req.Capacity < 0 {
		return nil, ErrBadRequest.New("capacity must be positive")
	}
	capacity := req.Capacity
	if capacity == 0 {
		capacity = config.Config().Stream.DefaultCapacity
	}
	var writeTimeout time.Duration
	if req.WriteTimeout != "" {
		d, err := config.ParseDuration(req.WriteTimeout)
		if err != nil || d < 0 {
			return nil, ErrBadRequest.New("invalid write_timeout")
		}
		writeTimeout = d
	}

	ms := &managedStream{
		name:         req.Name,
		writeTimeout: writeTimeout,
		wake:         make(chan struct{}, 1),
	}
	cbs := stream.Callbacks[any]{
		OnData:   func(*stream.Buffered[any]) { ms.nudge() },
		OnError:  func(*stream.Buffered[any]) { ms.nudge() },
		OnClosed: func(*stream.Buffered[any]) { ms.nudge() },
	}
	s, err := stream.New[any](
		stream.WithCapacity[any](capacity),
		stream.WithTickInterval[any](config.Config().Stream.GetTickIntervalOrDefault()),
		stream.WithCallbacks[any](cbs),
	)
	if err != nil {
		return nil, ErrBadRequest.Err(err)
	}
	ms.stream = s
	ms.id = s.ID()

	if req.Journal {
		jcfg := config.Config().Journal
		recorder, rerr := journal.NewRecorder(jcfg.GetPath(), ms.id.String(), jcfg.FlushInterval)
		if rerr != nil {
			return nil, ErrJournalFailed.Err(rerr)
		}
		ms.recorder = recorder
		if rerr := recorder.StreamCreated(capacity, "event"); rerr != nil {
			recorder.Close()
			return nil, ErrJournalFailed.Err(rerr)
		}
	}

	as.mu.Lock()
	if as.draining {
		as.mu.Unlock()
		if ms.recorder != nil {
			ms.recorder.Close()
		}
		return nil, ErrShuttingDown
	}
	if _, exists := as.streams[ms.id]; exists {
		as.mu.Unlock()
		return nil, ErrAlreadyExists
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	ms.cancel = cancel
	as.streams[ms.id] = ms
	as.wg.Add(1)
	as.mu.Unlock()

	go as.drainLoop(loopCtx, ms)

	log.Ctx(ctx).Info().
		Str("stream_id", ms.id.String()).
		Int("capacity", capacity).
		Bool("journal", ms.recorder != nil).
		Msg("stream created")
	return ms.info(), nil
}

// GetStream retrieves a managed stream's info by its unique identifier.
func (as *activeStreams) GetStream(id uuid.UUID) (*api.StreamInfo, apperrors.Error) {
	as.mu.RLock()
	ms, exists := as.streams[id]
	as.mu.RUnlock()
	if !exists {
		return nil, ErrStreamNotFound
	}
	return ms.info(), nil
}

// WriteElements appends elements to a managed stream. With a write timeout
// configured the append suspends on a full buffer up to the stall budget;
// without one a full buffer faults the stream immediately.
func (as *activeStreams) WriteElements(ctx context.Context, id uuid.UUID, elements []any) (*api.ElementsWriteResponse, apperrors.Error) {
	as.mu.RLock()
	ms, exists := as.streams[id]
	as.mu.RUnlock()
	if !exists {
		return nil, ErrStreamNotFound
	}

	var werr error
	if ms.writeTimeout > 0 {
		werr = ms.stream.WriteWait(ctx, elements, ms.writeTimeout)
	} else {
		werr = ms.stream.WriteSlice(elements)
	}
	if werr == nil && ms.stream.State() == stream.StateErrored {
		// Overruns surface through the error callback, not the write return.
		werr = ms.stream.Err()
	}
	if werr != nil {
		if ms.recorder != nil && errors.Is(werr, stream.ErrBufferOverrun) {
			ms.recorder.Overrun(len(elements))
		}
		return nil, asAppError(werr)
	}
	if ms.recorder != nil {
		ms.recorder.ElementsWritten(len(elements), ms.stream.Len())
	}
	return &api.ElementsWriteResponse{
		Written:  len(elements),
		Buffered: ms.stream.Len(),
	}, nil
}

// CloseStream requests closure of a managed stream. The stream drains its
// remaining elements before reaching the closed state; the registry entry
// is removed once the drain loop finishes. Safe to call repeatedly.
func (as *activeStreams) CloseStream(id uuid.UUID) (*api.StreamInfo, apperrors.Error) {
	as.mu.RLock()
	ms, exists := as.streams[id]
	as.mu.RUnlock()
	if !exists {
		return nil, ErrStreamNotFound
	}
	// Journal the request before closing. Once the stream reaches a terminal
	// state the drain loop seals the journal, and an append would be lost.
	if ms.recorder != nil {
		ms.recorder.CloseRequested()
	}
	ms.stream.Close()
	ms.nudge()
	return ms.info(), nil
}

// Count returns the number of managed streams.
func (as *activeStreams) Count() int {
	as.mu.RLock()
	defer as.mu.RUnlock()
	return len(as.streams)
}

// drainLoop is the consumer side of a managed stream. It moves batches from
// the buffer to the event bus, journals drain progress, and tears the stream
// down once it reaches a terminal state. Runs until the stream finishes or
// the context forces a close.
func (as *activeStreams) drainLoop(ctx context.Context, ms *managedStream) {
	defer as.wg.Done()
	elementsTopic := GetStreamTopic(ms.id.String(), TopicElements)
	shuttingDown := false
	for {
		elements, err := ms.stream.ReadAll()
		if err != nil {
			as.finish(ms)
			return
		}
		if len(elements) > 0 {
			for _, element := range elements {
				GetEventBus().Publish(elementsTopic, &api.TapEvent{
					StreamID: ms.id.String(),
					Kind:     api.TapElement,
					Element:  element,
				}, 0)
			}
			if ms.recorder != nil {
				ms.recorder.Drained(len(elements))
			}
		}
		if ms.stream.State() == stream.StateClosed {
			as.finish(ms)
			return
		}
		if shuttingDown {
			select {
			case <-ms.wake:
			case <-ms.stream.Done():
			}
			continue
		}
		select {
		case <-ctx.Done():
			shuttingDown = true
			ms.stream.Close()
		case <-ms.wake:
		case <-ms.stream.Done():
		}
	}
}

// finish publishes the final lifecycle event, journals the terminal state,
// ends all tap subscriptions for the stream, and removes it from the
// registry. Called exactly once per stream, from its drain loop.
func (as *activeStreams) finish(ms *managedStream) {
	state := ms.stream.State()
	event := &api.TapEvent{
		StreamID: ms.id.String(),
		Kind:     api.TapLifecycle,
		State:    state.String(),
	}
	fault := ms.stream.Err()
	if fault != nil {
		event.Error = fault.Error()
	}
	GetEventBus().Publish(GetStreamTopic(ms.id.String(), TopicLifecycle), event, lifecyclePublishTimeout)

	if ms.recorder != nil {
		if state == stream.StateErrored {
			ms.recorder.Errored(fault)
		} else {
			ms.recorder.Closed()
		}
		if err := ms.recorder.Close(); err != nil {
			log.Error().Err(err).Str("stream_id", ms.id.String()).Msg("failed to close journal")
		}
	}

	// Taps drain any buffered events off their channels before observing
	// the close.
	GetEventBus().CloseMatching(GetAllStreamTopics(ms.id.String()))

	as.mu.Lock()
	delete(as.streams, ms.id)
	as.mu.Unlock()

	log.Info().
		Str("stream_id", ms.id.String()).
		Str("state", state.String()).
		Msg("stream finished")
}

// Shutdown force-closes every managed stream and waits for the drain loops
// to finish, bounded by the context. New stream creation is refused once
// shutdown begins.
func (as *activeStreams) Shutdown(ctx context.Context) {
	as.mu.Lock()
	as.draining = true
	streams := make([]*managedStream, 0, len(as.streams))
	for _, ms := range as.streams {
		streams = append(streams, ms)
	}
	as.mu.Unlock()

	for _, ms := range streams {
		ms.cancel()
	}

	done := make(chan struct{})
	go func() {
		as.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("shutdown deadline reached before all streams drained")
	}
	GetEventBus().Shutdown()
}
