package server

import (
	"github.com/sluiceio/sluice/internal/common/apperrors"
)

var (
	// ErrServerError is the base error for all inspection server errors.
	// Occurs when there is a general error in request processing.
	ErrServerError apperrors.Error = apperrors.New("error in processing request").SetCode(apperrors.CodeInternal)

	// ErrStreamNotFound is returned when a stream ID does not resolve to a
	// managed stream. Occurs when the stream never existed or has already
	// finished and been removed.
	ErrStreamNotFound apperrors.Error = ErrServerError.New("stream not found").SetCode(apperrors.CodeInvalidArgument)

	// ErrAlreadyExists is returned when attempting to register a stream under
	// an ID that is already managed.
	ErrAlreadyExists apperrors.Error = ErrServerError.New("stream already exists").SetCode(apperrors.CodeInvalidOperation)

	// ErrBadRequest is returned for malformed or invalid requests.
	// Occurs when request parameters are invalid or missing required fields.
	ErrBadRequest apperrors.Error = ErrServerError.New("bad request").SetCode(apperrors.CodeInvalidArgument)

	// ErrChannelFailed is returned when an inspection tap cannot be attached.
	// Occurs when there are issues with the event bus or delivery channels.
	ErrChannelFailed apperrors.Error = ErrServerError.New("channel failed").SetCode(apperrors.CodeInternal)

	// ErrJournalFailed is returned when journal setup or appends fail.
	// Occurs when the journal directory is not writable or an entry cannot
	// be recorded.
	ErrJournalFailed apperrors.Error = ErrServerError.New("journal failed").SetCode(apperrors.CodeInternal)

	// ErrShuttingDown is returned when a request arrives while the registry
	// is draining during shutdown.
	ErrShuttingDown apperrors.Error = ErrServerError.New("server is shutting down").SetCode(apperrors.CodeInvalidOperation)
)

// asAppError coerces an error into an apperrors.Error, wrapping it in the
// server base error when it is not one already. Stream faults pass through
// unchanged so their codes map to the right HTTP status.
func asAppError(err error) apperrors.Error {
	if aerr, ok := err.(apperrors.Error); ok {
		return aerr
	}
	return ErrServerError.Err(err)
}
