// Package apperrors provides a chainable error system with support for error
// wrapping, fault codes, and message composition. Errors created here satisfy
// the standard error interface and cooperate with errors.Is and errors.As,
// while adding derivation helpers for building per-package error vocabularies.
package apperrors

// Error defines the interface for application errors. It extends the standard
// error interface with methods for error wrapping, message manipulation, and
// fault code management. Methods never mutate the receiver; each returns a
// derived Error so call sites can chain.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	// Extended methods
	New(msg string) Error                  // creates a new error using current as template
	Msg(msg string) Error                  // creates a new error with message and wraps original
	MsgErr(msg string, err ...error) Error // creates error with message and wraps extra errors
	Err(err ...error) Error                // attaches additional errors to current error
	SetExpandError(bool) Error             // controls whether ErrorAll expands wrapped errors
	SetCode(Code) Error                    // sets the fault code for the error
	Code() Code                            // returns the current fault code
	Prefix(string) Error                   // adds a prefix to the error message
	Suffix(string) Error                   // adds a suffix to the error message
	ErrorAll() string                      // returns full message including wrapped errors
	UnwrapAll() []error                    // returns all wrapped errors
}
