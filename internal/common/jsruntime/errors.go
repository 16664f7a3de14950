package jsruntime

import (
	"github.com/sluiceio/sluice/internal/common/apperrors"
)

var (
	ErrJSRuntime         = apperrors.New("jsruntime error")
	ErrJSRuntimeTimeout  = ErrJSRuntime.New("jsruntime timeout").SetCode(apperrors.CodeTimeout)
	ErrInvalidJSFunction = ErrJSRuntime.New("invalid javascript function").SetCode(apperrors.CodeInvalidArgument)
	ErrJSRuntimeError    = ErrJSRuntime.New("jsruntime error").SetCode(apperrors.CodeInvalidArgument).SetExpandError(true)
	ErrJSExecutionError  = ErrJSRuntime.New("js execution error").SetCode(apperrors.CodeInvalidElement).SetExpandError(true)
)
