// Package jsruntime executes user supplied JavaScript transforms in a
// sandboxed VM. Each run uses a fresh VM so a transform cannot carry state
// from one element to the next, and execution is bounded by a timeout.
package jsruntime

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/sluiceio/sluice/internal/common/apperrors"
)

// JSFunction is a compiled JavaScript transform.
type JSFunction struct {
	code     string
	function goja.Callable
}

// Options for controlling execution
type Options struct {
	Timeout time.Duration // max execution time
}

// New creates a JSFunction from a JS function source string.
func New(ctx context.Context, jsCode string) (*JSFunction, apperrors.Error) {
	vm := goja.New()
	bindConsole(ctx, vm)
	wrapped := fmt.Sprintf("(%s)", jsCode)
	v, err := vm.RunString(wrapped)
	if err != nil {
		return nil, ErrInvalidJSFunction.Err(err)
	}

	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, ErrInvalidJSFunction.Msg("script is not a function")
	}

	return &JSFunction{
		code:     jsCode,
		function: fn,
	}, nil
}

// Run executes the transform against one element, respecting the timeout.
// The element may be any JSON-shaped value. A nil result with a nil error
// means the transform filtered the element out by returning null or
// undefined.
func (j *JSFunction) Run(ctx context.Context, element any, opts Options) (any, apperrors.Error) {
	// New VM per run to isolate memory
	vm := goja.New()
	bindConsole(ctx, vm)

	// Recompile function
	wrapped := fmt.Sprintf("(%s)", j.code)
	v, err := vm.RunString(wrapped)
	if err != nil {
		return nil, ErrJSExecutionError.Err(err)
	}
	fn, _ := goja.AssertFunction(v)

	// Use context with timeout
	if opts.Timeout == 0 {
		opts.Timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	done := make(chan struct{})
	var result goja.Value
	var callErr error

	go func() {
		defer func() {
			if r := recover(); r != nil {
				callErr = fmt.Errorf("panic: %v", r)
			}
			close(done)
		}()

		result, callErr = fn(goja.Undefined(), vm.ToValue(element))
	}()

	select {
	case <-ctx.Done():
		// Stop the VM so a runaway script does not keep its goroutine spinning
		vm.Interrupt("execution timed out")
		return nil, ErrJSRuntimeTimeout
	case <-done:
		if callErr != nil {
			if jsErr, ok := callErr.(*goja.Exception); ok {
				return nil, ErrJSRuntimeError.Msg(jsErr.Value().String())
			}
			return nil, ErrJSExecutionError.Err(callErr)
		}
	}

	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}
	return result.Export(), nil
}
