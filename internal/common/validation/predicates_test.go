package validation

import (
	"testing"

	"github.com/sluiceio/sluice/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAbsent(t *testing.T) {
	assert.True(t, IsAbsent(nil))
	assert.True(t, IsAbsent(types.NilAny()))
	assert.True(t, IsAbsent(types.NullString()))
	assert.True(t, IsAbsent((*int)(nil)))
	assert.True(t, IsAbsent(([]int)(nil)))

	assert.False(t, IsAbsent(0))
	assert.False(t, IsAbsent(""))
	assert.False(t, IsAbsent(false))
	assert.False(t, IsAbsent([]int{}))
	na, err := types.NullableAnyFrom(nil)
	require.NoError(t, err)
	assert.False(t, IsAbsent(na), "explicit null is a value, not a hole")
}

func TestFirstHole(t *testing.T) {
	dense := []types.NullableAny{}
	for _, v := range []any{1, "two", nil} {
		na, err := types.NullableAnyFrom(v)
		require.NoError(t, err)
		dense = append(dense, na)
	}
	idx, sparse := FirstHole(dense)
	assert.False(t, sparse)
	assert.Equal(t, -1, idx)
	assert.True(t, IsDense(dense))

	withHole := append(dense[:2:2], types.NilAny(), dense[2])
	idx, sparse = FirstHole(withHole)
	assert.True(t, sparse)
	assert.Equal(t, 2, idx)
	assert.False(t, IsDense(withHole))

	// Plain value types cannot express holes.
	assert.True(t, IsDense([]int{1, 2, 3}))
	assert.True(t, IsDense([]string{}))

	ptrs := []*int{new(int), nil}
	idx, sparse = FirstHole(ptrs)
	assert.True(t, sparse)
	assert.Equal(t, 1, idx)
}

func TestAsWholeNonNegative(t *testing.T) {
	for _, v := range []any{42, int32(42), int64(42), uint(42), uint64(42), float64(42)} {
		n, ok := AsWholeNonNegative(v)
		assert.True(t, ok, "value %v (%T)", v, v)
		assert.Equal(t, int64(42), n)
	}

	_, ok := AsWholeNonNegative(-1)
	assert.False(t, ok)
	_, ok = AsWholeNonNegative(3.5)
	assert.False(t, ok)
	_, ok = AsWholeNonNegative("42")
	assert.False(t, ok)
	_, ok = AsWholeNonNegative(nil)
	assert.False(t, ok)

	na, err := types.NullableAnyFrom(7)
	require.NoError(t, err)
	n, ok := AsWholeNonNegative(na)
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)
}

func TestIsCallable(t *testing.T) {
	assert.True(t, IsCallable(func() {}))
	assert.True(t, IsCallable(TestIsCallable))
	assert.False(t, IsCallable(nil))
	assert.False(t, IsCallable("fn"))
	assert.False(t, IsCallable((func())(nil)))
}

func TestCompileSchema(t *testing.T) {
	schema, err := CompileSchema([]byte(`{"type":"object","required":["seq"],"properties":{"seq":{"type":"integer"}}}`))
	require.NoError(t, err)

	good, err := types.NullableAnyFrom(map[string]any{"seq": 1})
	require.NoError(t, err)
	assert.NoError(t, ValidateElement(schema, good))

	bad, err := types.NullableAnyFrom(map[string]any{"other": true})
	require.NoError(t, err)
	assert.Error(t, ValidateElement(schema, bad))

	assert.Error(t, ValidateElement(schema, types.NilAny()))
	assert.NoError(t, ValidateElement(nil, good), "nil schema validates nothing")

	_, err = CompileSchema([]byte(`{not json`))
	assert.Error(t, err)
}
