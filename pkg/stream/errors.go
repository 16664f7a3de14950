package stream

import (
	"github.com/sluiceio/sluice/internal/common/apperrors"
)

var (
	// ErrStream is the base error for all stream-related errors.
	// Occurs when there is a general error in stream processing.
	ErrStream apperrors.Error = apperrors.New("error in stream operation").SetCode(apperrors.CodeInternal)

	// ErrInvalidArgument is returned when a caller supplies malformed input.
	// Occurs when a required value is absent or outside its permitted range.
	ErrInvalidArgument apperrors.Error = ErrStream.New("invalid argument").SetCode(apperrors.CodeInvalidArgument)

	// ErrInvalidElement is returned when a collection input has the wrong shape.
	// Occurs when a written collection contains holes.
	ErrInvalidElement apperrors.Error = ErrStream.New("invalid element in collection").SetCode(apperrors.CodeInvalidElement)

	// ErrInvalidOperation is returned when an operation is not permitted in the
	// current stream state.
	// Occurs on writes after close has been requested and on any operation
	// against a closed or errored stream.
	ErrInvalidOperation apperrors.Error = ErrStream.New("operation not permitted in current state").SetCode(apperrors.CodeInvalidOperation)

	// ErrBufferOverrun is returned when a write exceeds the stream capacity.
	// Occurs when a synchronous write cannot fit all items; the stream errors
	// terminally and buffered data is discarded.
	ErrBufferOverrun apperrors.Error = ErrStream.New("buffer capacity exceeded").SetCode(apperrors.CodeExhausted)

	// ErrWriteTimeout is returned when a waiting write exhausts its stall budget.
	// Occurs when the consumer fails to drain the buffer within the write's
	// cumulative timeout; the stream errors terminally.
	ErrWriteTimeout apperrors.Error = ErrStream.New("write timed out waiting for capacity").SetCode(apperrors.CodeTimeout)
)
