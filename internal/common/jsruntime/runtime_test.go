package jsruntime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		jsCode  string
		wantErr bool
	}{
		{
			name:    "valid function",
			jsCode:  "function(e) { return e; }",
			wantErr: false,
		},
		{
			name:    "valid arrow function",
			jsCode:  "(e) => e",
			wantErr: false,
		},
		{
			name:    "valid function with complex logic",
			jsCode:  "function(e) { return { value: e.value * 2, stamped: Date.now() }; }",
			wantErr: false,
		},
		{
			name:    "invalid syntax",
			jsCode:  "function(e { return e; }", // missing closing parenthesis
			wantErr: true,
		},
		{
			name:    "not a function",
			jsCode:  "var x = 42;",
			wantErr: true,
		},
		{
			name:    "empty string",
			jsCode:  "",
			wantErr: true,
		},
		{
			name:    "just whitespace",
			jsCode:  "   \n\t  ",
			wantErr: true,
		},
		{
			name:    "function with console.log",
			jsCode:  "function(e) { console.log('test'); return e; }",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jsFunc, err := New(context.Background(), tt.jsCode)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, jsFunc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, jsFunc)
				assert.Equal(t, tt.jsCode, jsFunc.code)
				assert.NotNil(t, jsFunc.function)
			}
		})
	}
}

func TestJSFunction_Run(t *testing.T) {
	tests := []struct {
		name       string
		jsCode     string
		element    any
		timeout    time.Duration
		wantResult any
	}{
		{
			name:       "identity",
			jsCode:     "function(e) { return e; }",
			element:    map[string]any{"id": "a"},
			wantResult: map[string]any{"id": "a"},
		},
		{
			name:       "field arithmetic",
			jsCode:     "function(e) { return { doubled: e.value * 2 }; }",
			element:    map[string]any{"value": 21},
			wantResult: map[string]any{"doubled": int64(42)},
		},
		{
			name:       "field enrichment",
			jsCode:     "function(e) { e.tag = 'seen'; return e; }",
			element:    map[string]any{"value": 1},
			wantResult: map[string]any{"value": 1, "tag": "seen"},
		},
		{
			name:       "scalar element",
			jsCode:     "function(e) { return e + 1; }",
			element:    41,
			wantResult: int64(42),
		},
		{
			name:       "string element",
			jsCode:     "function(e) { return e.toUpperCase(); }",
			element:    "quiet",
			wantResult: "QUIET",
		},
		{
			name:       "array element",
			jsCode:     "function(e) { return e.filter(function(v) { return v > 2; }); }",
			element:    []any{1, 2, 3, 4},
			wantResult: []any{int64(3), int64(4)},
		},
		{
			name:       "nested objects",
			jsCode:     "function(e) { return { deep: { value: e.config.deep.value + 1 } }; }",
			element:    map[string]any{"config": map[string]any{"deep": map[string]any{"value": 100}}},
			wantResult: map[string]any{"deep": map[string]any{"value": int64(101)}},
		},
		{
			name:       "scalar to object",
			jsCode:     "function(e) { return { wrapped: e }; }",
			element:    "payload",
			wantResult: map[string]any{"wrapped": "payload"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jsFunc, err := New(context.Background(), tt.jsCode)
			require.NoError(t, err)

			opts := Options{Timeout: tt.timeout}
			if opts.Timeout == 0 {
				opts.Timeout = 100 * time.Millisecond
			}

			result, err := jsFunc.Run(context.Background(), tt.element, opts)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantResult, result)
		})
	}
}

func TestJSFunction_Run_FiltersElement(t *testing.T) {
	tests := []struct {
		name   string
		jsCode string
	}{
		{
			name:   "explicit null",
			jsCode: "function(e) { return e.keep ? e : null; }",
		},
		{
			name:   "no return",
			jsCode: "function(e) { var x = e.value; }",
		},
		{
			name:   "explicit undefined",
			jsCode: "function(e) { return undefined; }",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jsFunc, err := New(context.Background(), tt.jsCode)
			require.NoError(t, err)

			result, err := jsFunc.Run(context.Background(), map[string]any{"value": 7, "keep": false}, Options{Timeout: 100 * time.Millisecond})
			assert.NoError(t, err)
			assert.Nil(t, result)
		})
	}
}

func TestJSFunction_Run_ErrorCases(t *testing.T) {
	tests := []struct {
		name        string
		jsCode      string
		expectedErr error
	}{
		{
			name:        "runtime error in function",
			jsCode:      "function(e) { return e.nonExistentProperty.method(); }",
			expectedErr: ErrJSRuntimeError,
		},
		{
			name:        "reference error",
			jsCode:      "function(e) { return undefinedVariable; }",
			expectedErr: ErrJSRuntimeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jsFunc, err := New(context.Background(), tt.jsCode)
			require.NoError(t, err)

			result, err := jsFunc.Run(context.Background(), map[string]any{"value": 5}, Options{Timeout: 100 * time.Millisecond})
			assert.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, tt.expectedErr), "expected error to be %v, got %v", tt.expectedErr, err)
		})
	}
}

func TestJSFunction_Run_Timeout(t *testing.T) {
	// Function that runs indefinitely
	jsCode := "function(e) { while(true) { } return e; }"

	jsFunc, err := New(context.Background(), jsCode)
	require.NoError(t, err)

	opts := Options{Timeout: 10 * time.Millisecond}

	start := time.Now()
	result, err := jsFunc.Run(context.Background(), map[string]any{"value": 5}, opts)
	duration := time.Since(start)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "timeout")
	assert.Less(t, duration, 50*time.Millisecond) // Should timeout quickly
}

func TestJSFunction_Run_DefaultTimeout(t *testing.T) {
	jsCode := "function(e) { return { result: e.value + 3 }; }"
	jsFunc, err := New(context.Background(), jsCode)
	require.NoError(t, err)

	// Test with zero timeout (should use default)
	result, err := jsFunc.Run(context.Background(), map[string]any{"value": 5}, Options{Timeout: 0})
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"result": int64(8)}, result)
}

func TestJSFunction_Run_Isolation(t *testing.T) {
	// Test that each run uses a fresh VM instance
	jsCode := "function(e) { if (typeof seen === 'undefined') { seen = 0; } seen++; return { seen: seen }; }"

	jsFunc, err := New(context.Background(), jsCode)
	require.NoError(t, err)

	opts := Options{Timeout: 100 * time.Millisecond}

	result1, err := jsFunc.Run(context.Background(), map[string]any{}, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result1.(map[string]any)["seen"])

	// Second run starts fresh
	result2, err := jsFunc.Run(context.Background(), map[string]any{}, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result2.(map[string]any)["seen"]) // Should be 1 again, not 2
}

func TestJSFunction_Run_ConsoleLog_WithBuffer(t *testing.T) {
	// Test that console output goes through the context logger
	jsCode := "function(e) { console.log('saw element:', e.value); console.warn('careful'); console.error('element error:', e.value + 1); return e; }"

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background())

	jsFunc, err := New(ctx, jsCode)
	require.NoError(t, err)

	result, err := jsFunc.Run(ctx, map[string]any{"value": 5}, Options{Timeout: 100 * time.Millisecond})
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"value": 5}, result)

	outputStr := buf.String()
	assert.Contains(t, outputStr, "saw element:")
	assert.Contains(t, outputStr, "careful")
	assert.Contains(t, outputStr, "element error:")
	assert.Contains(t, outputStr, "5")
	assert.Contains(t, outputStr, "6")
}

func TestJSFunction_Run_LargeData(t *testing.T) {
	// Test with a large element
	large := make(map[string]any)
	for i := 0; i < 1000; i++ {
		large[fmt.Sprintf("key%d", i)] = i
	}

	jsCode := "function(e) { return { keys: Object.keys(e).length }; }"

	jsFunc, err := New(context.Background(), jsCode)
	require.NoError(t, err)

	result, err := jsFunc.Run(context.Background(), large, Options{Timeout: 1 * time.Second})
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"keys": int64(1000)}, result)
}

func TestJSFunction_Run_PanicRecovery(t *testing.T) {
	// Test that throws in the JavaScript code are properly recovered
	jsCode := "function(e) { throw new Error('Test error'); }"

	jsFunc, err := New(context.Background(), jsCode)
	require.NoError(t, err)

	result, err := jsFunc.Run(context.Background(), map[string]any{"value": 5}, Options{Timeout: 100 * time.Millisecond})
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrJSRuntimeError)
	assert.Contains(t, err.Error(), "Test error")
}

func BenchmarkJSFunction_Run(b *testing.B) {
	jsCode := "function(e) { return { value: e.value * 2, stamped: Date.now() }; }"
	jsFunc, err := New(context.Background(), jsCode)
	require.NoError(b, err)

	element := map[string]any{"value": 10, "id": "element1"}
	opts := Options{Timeout: 100 * time.Millisecond}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := jsFunc.Run(context.Background(), element, opts)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkJSFunction_New(b *testing.B) {
	jsCode := "function(e) { return e; }"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := New(context.Background(), jsCode)
		if err != nil {
			b.Fatal(err)
		}
	}
}
