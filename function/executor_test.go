// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package function

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/confighub/remotefunc/function/codec"
	"github.com/confighub/remotefunc/function/handler"
)

func newExecutor(t *testing.T, opts Options) *FunctionExecutor {
	t.Helper()
	opts.Logger = zaptest.NewLogger(t)
	executor, err := NewStandardExecutor(opts)
	require.NoError(t, err)
	t.Cleanup(executor.Close)
	return executor
}

func TestStandardExecutorRegistersBuiltins(t *testing.T) {
	executor := newExecutor(t, Options{})
	assert.Equal(t, []string{
		"main/add", "main/echo", "main/fail", "main/sleep", "counter/increase", "counter/value",
	}, executor.RegisteredFunctions())
	assert.Equal(t, codec.DefaultName, executor.Handler().Codec().Name())
}

func TestBuiltins(t *testing.T) {
	executor := newExecutor(t, Options{CallTimeout: 200 * time.Millisecond})
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		args    handler.Arguments
		kind    handler.OutcomeKind
		value   any
		message string
	}{
		{"add", "main/add", handler.Arguments{"a": int64(2), "b": int64(3)}, handler.OutcomeSuccess, 5, ""},
		{"add missing b", "main/add", handler.Arguments{"a": int64(2)}, handler.OutcomeCallerError, nil, "add() missing 1 required argument: 'b'"},
		{"add wrong type", "main/add", handler.Arguments{"a": "2", "b": int64(3)}, handler.OutcomeCallerError, nil, "a requires int"},
		{"echo", "main/echo", handler.Arguments{"value": map[string]any{"k": []any{int64(1)}}}, handler.OutcomeSuccess, map[string]any{"k": []any{int64(1)}}, ""},
		{"echo null", "main/echo", handler.Arguments{"value": nil}, handler.OutcomeSuccess, nil, ""},
		{"sleep accepts ints", "main/sleep", handler.Arguments{"seconds": int64(0)}, handler.OutcomeSuccess, nil, ""},
		{"counter starts at zero", "counter/value", nil, handler.OutcomeSuccess, 0, ""},
		{"counter refuses arguments", "counter/value", handler.Arguments{"ignored": true}, handler.OutcomeCalleeException, nil, "value() got unexpected keyword argument(s): 'ignored'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := executor.Invoke(ctx, tt.path, tt.args, "")
			require.Equal(t, tt.kind, o.Kind, "%s: %s", o.Message, o.Trace)
			if tt.kind == handler.OutcomeSuccess && tt.name != "sleep accepts ints" {
				assert.Equal(t, tt.value, o.Value)
			}
			if tt.message != "" {
				assert.Equal(t, tt.message, o.Message)
			}
		})
	}
}

func TestFailAndSleepAreCalleeExceptions(t *testing.T) {
	executor := newExecutor(t, Options{CallTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	o := executor.Invoke(ctx, "main/fail", handler.Arguments{"message": "out of coffee"}, "")
	require.Equal(t, handler.OutcomeCalleeException, o.Kind)
	assert.Contains(t, o.Trace, "main/fail")
	assert.Contains(t, o.Trace, "out of coffee")

	o = executor.Invoke(ctx, "main/sleep", handler.Arguments{"seconds": 5.0}, "")
	require.Equal(t, handler.OutcomeCalleeException, o.Kind)
	assert.Contains(t, o.Trace, "main/sleep")
}

func TestCounterKeepsState(t *testing.T) {
	executor := newExecutor(t, Options{})
	ctx := context.Background()

	for range 3 {
		o := executor.Invoke(ctx, "counter/increase", handler.Arguments{"amount": int64(2)}, "")
		require.Equal(t, handler.OutcomeSuccess, o.Kind, o.Trace)
	}
	o := executor.Invoke(ctx, "counter/value", nil, "")
	require.Equal(t, handler.OutcomeSuccess, o.Kind)
	assert.Equal(t, 6, o.Value)
}

func TestSecondCounterNeedsAnOwner(t *testing.T) {
	executor := newExecutor(t, Options{})

	added, err := executor.RegisterAll(&Counter{})
	require.NoError(t, err)
	assert.Empty(t, added)

	added, err = executor.RegisterAll(&Counter{}, handler.WithOwner("Second Counter"))
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, "second-counter/increase", added[0].Path)
}

func TestSecretAndTypeEnforcementOptions(t *testing.T) {
	executor := newExecutor(t, Options{Secret: "s3cret", DisableTypeEnforcement: true})
	ctx := context.Background()

	o := executor.Invoke(ctx, "main/add", handler.Arguments{"a": int64(1), "b": int64(1)}, "")
	assert.Equal(t, handler.OutcomeForbidden, o.Kind)

	o = executor.Invoke(ctx, "main/add", handler.Arguments{"a": "1", "b": int64(1)}, "s3cret")
	assert.Equal(t, handler.OutcomeCalleeException, o.Kind)

	_, err := executor.Register(func(a, b int) int { return a * b }, []string{"a", "b"}, handler.WithName("multiply"))
	require.NoError(t, err)
	o = executor.Invoke(ctx, "main/multiply", handler.Arguments{"a": int64(6), "b": int64(7)}, "s3cret")
	require.Equal(t, handler.OutcomeSuccess, o.Kind)
	assert.Equal(t, 42, o.Value)
}

func TestUnknownCodec(t *testing.T) {
	_, err := NewEmptyExecutor(Options{Codec: "msgpack"})
	assert.True(t, errors.Is(err, codec.ErrUnknownCodec))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", true, "")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger("chatty", false, "")
	assert.Error(t, err)
}
