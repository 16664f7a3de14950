// Package validation provides the primitive predicates used for input
// checking at API boundaries: absence, collection density, numeric shape,
// and callability. It also hosts the shared struct validator and JSON
// schema helpers used by config loading and element ingestion.
package validation

import (
	"math"
	"reflect"

	"github.com/sluiceio/sluice/pkg/types"
)

// IsAbsent reports whether v carries no usable value. Nil interfaces, nil
// pointers, nil maps, slices, functions, and channels are absent, as are
// Nullable values that report nil.
func IsAbsent(v any) bool {
	if v == nil {
		return true
	}
	if n, ok := v.(types.Nullable); ok {
		return n.IsNil()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// FirstHole returns the index of the first absent element in items, and true
// if one exists. A hole makes a collection sparse.
func FirstHole[T any](items []T) (int, bool) {
	for i := range items {
		if IsAbsent(items[i]) {
			return i, true
		}
	}
	return -1, false
}

// IsDense reports whether items contains no holes.
func IsDense[T any](items []T) bool {
	_, sparse := FirstHole(items)
	return !sparse
}

// AsWholeNonNegative returns v as an int64 if it is a non-negative integer
// value. Whole-valued floats are accepted since JSON decoding produces
// float64 for all numbers.
func AsWholeNonNegative(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		if n >= 0 {
			return int64(n), true
		}
	case int32:
		if n >= 0 {
			return int64(n), true
		}
	case int64:
		if n >= 0 {
			return n, true
		}
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	case float64:
		if n >= 0 && n == math.Trunc(n) && n < float64(1<<63) {
			return int64(n), true
		}
	case types.NullableAny:
		if i, ok := n.AsInt64(); ok && i >= 0 {
			return i, true
		}
	}
	return 0, false
}

// IsCallable reports whether v is a non-nil function value.
func IsCallable(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Func && !rv.IsNil()
}
