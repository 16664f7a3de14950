// Package types provides presence-aware value types for optional data.
package types

// Nullable defines the interface for types that can represent null/nil values.
// Types implementing this interface can distinguish between a zero value and an
// absent value, which is useful for collection density checks and JSON
// serialization where null has semantic meaning.
type Nullable interface {
	// IsNil returns true if the value is null/nil, false otherwise.
	// This allows distinguishing between a zero value and an explicitly null value.
	IsNil() bool
}
