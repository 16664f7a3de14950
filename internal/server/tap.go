package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/sluiceio/sluice/internal/common/httpx"
)

// tapBufferSize is the per-tap event buffer. A tap that falls this many
// events behind starts losing elements rather than stalling the drain loop.
const tapBufferSize = 64

// tapStream handles HTTP requests to observe a stream's element flow live.
// Events are delivered as server-sent events, one JSON object per event,
// covering both drained elements and lifecycle transitions. The tap ends
// when the stream finishes or the client disconnects.
func tapStream(r *http.Request) (*httpx.StreamResponse, error) {
	ctx := r.Context()

	id, err := streamIDFromRequest(r)
	if err != nil {
		return nil, err
	}

	// Subscribe before the existence check. A stream that finishes in
	// between closes the subscription, so the tap ends instead of hanging.
	events, unsubscribe := GetEventBus().Subscribe(GetAllStreamTopics(id.String()), tapBufferSize)
	if _, apperr := ActiveStreamManager().GetStream(id); apperr != nil {
		unsubscribe()
		return nil, httpx.ErrNotFound("stream not found")
	}

	log.Ctx(ctx).Info().Str("stream_id", id.String()).Msg("tap attached")

	return &httpx.StreamResponse{
		StatusCode:  http.StatusOK,
		ContentType: "text/event-stream",
		WriteChunk: func(w http.ResponseWriter) error {
			select {
			case event, ok := <-events:
				if !ok {
					unsubscribe()
					return io.EOF
				}
				data, err := json.Marshal(event.Data)
				if err != nil {
					log.Ctx(ctx).Error().Err(err).Msg("failed to marshal tap event")
					return nil
				}
				fmt.Fprintf(w, "data: %s\n\n", data)
				return nil
			case <-ctx.Done():
				unsubscribe()
				return io.EOF
			}
		},
	}, nil
}
