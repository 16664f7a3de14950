package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sluiceio/sluice/internal/common/uuid"
	"github.com/sluiceio/sluice/pkg/api"
)

// newTestRegistry builds a registry separate from the package singleton so
// tests can shut it down without affecting the rest of the suite.
func newTestRegistry() *activeStreams {
	return &activeStreams{
		streams: make(map[uuid.UUID]*managedStream),
	}
}

func TestRegistryCreateAndDrain(t *testing.T) {
	as := newTestRegistry()
	ctx := context.Background()

	info, apperr := as.CreateStream(ctx, &api.StreamCreateRequest{Name: "drain", Capacity: 4})
	require.Nil(t, apperr)
	require.NotEmpty(t, info.StreamID)
	assert.Equal(t, 1, as.Count())

	id := uuid.MustParse(info.StreamID)

	// Writes drain in the background even with nobody tapping
	wrsp, apperr := as.WriteElements(ctx, id, []any{"a", "b", "c"})
	require.Nil(t, apperr)
	assert.Equal(t, 3, wrsp.Written)

	require.Eventually(t, func() bool {
		info, apperr := as.GetStream(id)
		if apperr != nil {
			return false
		}
		return info.Stats.ItemsRead == 3 && info.Stats.Len == 0
	}, 2*time.Second, 10*time.Millisecond, "elements were not drained")

	// Close drains and removes the stream
	_, apperr = as.CloseStream(id)
	require.Nil(t, apperr)
	require.Eventually(t, func() bool {
		_, apperr := as.GetStream(id)
		return apperr != nil && errors.Is(apperr, ErrStreamNotFound)
	}, 2*time.Second, 10*time.Millisecond, "stream was not removed")
	assert.Equal(t, 0, as.Count())
}

func TestRegistryWriteWait(t *testing.T) {
	as := newTestRegistry()
	ctx := context.Background()

	// A stall budget lets a batch larger than capacity trickle through the
	// drain loop instead of faulting the stream.
	info, apperr := as.CreateStream(ctx, &api.StreamCreateRequest{
		Capacity:     2,
		WriteTimeout: "2s",
	})
	require.Nil(t, apperr)
	id := uuid.MustParse(info.StreamID)

	elements := make([]any, 10)
	for i := range elements {
		elements[i] = i
	}
	wrsp, apperr := as.WriteElements(ctx, id, elements)
	require.Nil(t, apperr)
	assert.Equal(t, 10, wrsp.Written)

	info, apperr = as.GetStream(id)
	require.Nil(t, apperr)
	assert.Equal(t, "ready", info.Stats.State)
	assert.Equal(t, uint64(10), info.Stats.ItemsWritten)

	_, apperr = as.CloseStream(id)
	require.Nil(t, apperr)
	require.Eventually(t, func() bool {
		_, apperr := as.GetStream(id)
		return apperr != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRegistryRejectsBadRequests(t *testing.T) {
	as := newTestRegistry()
	ctx := context.Background()

	_, apperr := as.CreateStream(ctx, nil)
	assert.True(t, errors.Is(apperr, ErrBadRequest))

	_, apperr = as.CreateStream(ctx, &api.StreamCreateRequest{Name: "Not A Valid Name"})
	assert.True(t, errors.Is(apperr, ErrBadRequest))

	_, apperr = as.CreateStream(ctx, &api.StreamCreateRequest{Capacity: -1})
	assert.True(t, errors.Is(apperr, ErrBadRequest))

	_, apperr = as.CreateStream(ctx, &api.StreamCreateRequest{WriteTimeout: "soon"})
	assert.True(t, errors.Is(apperr, ErrBadRequest))

	assert.Equal(t, 0, as.Count())
}

func TestRegistryUnknownStream(t *testing.T) {
	as := newTestRegistry()
	ctx := context.Background()

	_, apperr := as.GetStream(uuid.New())
	assert.True(t, errors.Is(apperr, ErrStreamNotFound))

	_, apperr = as.WriteElements(ctx, uuid.New(), []any{1})
	assert.True(t, errors.Is(apperr, ErrStreamNotFound))

	_, apperr = as.CloseStream(uuid.New())
	assert.True(t, errors.Is(apperr, ErrStreamNotFound))
}

func TestRegistryShutdown(t *testing.T) {
	as := newTestRegistry()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		info, apperr := as.CreateStream(ctx, &api.StreamCreateRequest{Capacity: 8})
		require.Nil(t, apperr)
		id := uuid.MustParse(info.StreamID)
		_, apperr = as.WriteElements(ctx, id, []any{i})
		require.Nil(t, apperr)
	}
	require.Equal(t, 3, as.Count())

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	as.Shutdown(shutdownCtx)

	assert.Equal(t, 0, as.Count(), "all streams should be drained and removed")

	// New streams are refused once shutdown has begun
	_, apperr := as.CreateStream(ctx, &api.StreamCreateRequest{})
	assert.True(t, errors.Is(apperr, ErrShuttingDown))
}
