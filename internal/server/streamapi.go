package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sluiceio/sluice/internal/common/httpx"
	"github.com/sluiceio/sluice/internal/common/middleware"
	"github.com/sluiceio/sluice/internal/common/uuid"
	"github.com/sluiceio/sluice/internal/common/validation"
	"github.com/sluiceio/sluice/internal/config"
	"github.com/sluiceio/sluice/pkg/api"
)

// ResponseHandlerParam defines the configuration for HTTP route handlers.
// Contains HTTP method, path, and handler function for route registration.
type ResponseHandlerParam struct {
	Method  string               // HTTP method (GET, POST, etc.)
	Path    string               // URL path pattern
	Handler httpx.RequestHandler // handler function for the route
}

var resourceObjectHandlers = []ResponseHandlerParam{
	{
		Method:  http.MethodPost,
		Path:    "/",
		Handler: createStream,
	},
	{
		Method:  http.MethodPost,
		Path:    "/{streamID}/elements",
		Handler: writeElements,
	},
	{
		Method:  http.MethodGet,
		Path:    "/{streamID}",
		Handler: getStream,
	},
	{
		Method:  http.MethodDelete,
		Path:    "/{streamID}",
		Handler: closeStream,
	},
}

// Router sets up HTTP routes for stream management.
// Registers stream lifecycle endpoints and the live tap endpoint. The tap
// stays open for the stream's lifetime, so the request timeout applies only
// to the lifecycle endpoints.
func Router(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.SetTimeout(config.Config().GetRequestTimeoutOrDefault()))
		for _, handler := range resourceObjectHandlers {
			r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
		}
	})
	r.Method(http.MethodGet, "/{streamID}/tap", httpx.WrapStreamHandler(tapStream))
}

// streamIDFromRequest extracts and validates the stream ID URL parameter.
func streamIDFromRequest(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "streamID"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, httpx.ErrInvalidRequest("invalid stream ID")
	}
	return id, nil
}

// createStream handles HTTP requests to create new managed streams.
// Validates the request body, registers the stream, and returns its info
// with a Location header. Returns an error if validation or creation fails.
func createStream(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()

	if r.Body == nil {
		return nil, httpx.ErrInvalidRequest("request body is required")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, httpx.ErrUnableToReadRequest()
	}

	req := &api.StreamCreateRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, httpx.ErrInvalidRequest("failed to parse request body: " + err.Error())
	}
	if err := validation.V().Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest("invalid stream request: " + err.Error())
	}

	info, apperr := ActiveStreamManager().CreateStream(ctx, req)
	if apperr != nil {
		return nil, apperr
	}

	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/streams/" + info.StreamID,
		Response:   info,
	}, nil
}

// writeElements handles HTTP requests to append elements to a stream.
// The whole batch is appended in order; a batch that does not fit faults
// the stream and the fault is reported through the response status.
func writeElements(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()

	id, err := streamIDFromRequest(r)
	if err != nil {
		return nil, err
	}

	if r.Body == nil {
		return nil, httpx.ErrInvalidRequest("request body is required")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, httpx.ErrUnableToReadRequest()
	}

	req := &api.ElementsWriteRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, httpx.ErrInvalidRequest("failed to parse request body: " + err.Error())
	}
	if len(req.Elements) == 0 {
		return nil, httpx.ErrInvalidRequest("elements are required")
	}

	rsp, apperr := ActiveStreamManager().WriteElements(ctx, id, req.Elements)
	if apperr != nil {
		if errors.Is(apperr, ErrStreamNotFound) {
			return nil, httpx.ErrNotFound("stream not found")
		}
		return nil, apperr
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

// getStream handles HTTP requests for stream info and statistics.
func getStream(r *http.Request) (*httpx.Response, error) {
	id, err := streamIDFromRequest(r)
	if err != nil {
		return nil, err
	}

	info, apperr := ActiveStreamManager().GetStream(id)
	if apperr != nil {
		return nil, httpx.ErrNotFound("stream not found")
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   info,
	}, nil
}

// closeStream handles HTTP requests to close a stream. Closure is
// asynchronous; the response carries the stream info at the time of the
// request and the registry entry disappears once the drain completes.
func closeStream(r *http.Request) (*httpx.Response, error) {
	id, err := streamIDFromRequest(r)
	if err != nil {
		return nil, err
	}

	info, apperr := ActiveStreamManager().CloseStream(id)
	if apperr != nil {
		return nil, httpx.ErrNotFound("stream not found")
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   info,
	}, nil
}
