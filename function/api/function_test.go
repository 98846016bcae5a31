// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package api

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare name", in: "add", want: "main/add"},
		{name: "mixed case", in: "Counter/Increase", want: "counter/increase"},
		{name: "already a path", in: "main/add", want: "main/add"},
		{name: "surrounding space", in: "  Echo ", want: "main/echo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.in))
		})
	}
}

func TestSplitPath(t *testing.T) {
	owner, name, ok := SplitPath("counter/increase")
	require.True(t, ok)
	assert.Equal(t, "counter", owner)
	assert.Equal(t, "increase", name)

	for _, bad := range []string{"", "add", "/add", "main/", "a/b/c"} {
		_, _, ok := SplitPath(bad)
		assert.False(t, ok, bad)
	}
}

func TestDecodeCallRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty body", body: "", want: map[string]any{}},
		{name: "null args", body: `{"args":null}`, want: map[string]any{}},
		{name: "missing args", body: `{}`, want: map[string]any{}},
		{
			name: "numbers keep their kind",
			body: `{"args":{"a":2,"b":2.5,"c":1e3,"d":{"e":[1,"x"]}}}`,
			want: map[string]any{
				"a": int64(2),
				"b": 2.5,
				"c": 1000.0,
				"d": map[string]any{"e": []any{int64(1), "x"}},
			},
		},
		{
			name: "integers beyond int64 stay integers",
			body: `{"args":{"big":18446744073709551616,"neg":-9223372036854775809}}`,
			want: map[string]any{
				"big": bigInt(t, "18446744073709551616"),
				"neg": bigInt(t, "-9223372036854775809"),
			},
		},
		{name: "not json", body: `{"args":`, wantErr: true},
		{name: "trailing data", body: `{"args":{}} {}`, wantErr: true},
		{name: "args not an object", body: `{"args":[1,2]}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeCallRequest([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Args)
		})
	}
}

func bigInt(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return n
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, DataTypeInt, TypeOf(int64(3)))
	assert.Equal(t, DataTypeInt, TypeOf(bigInt(t, "18446744073709551616")))
	assert.Equal(t, DataTypeFloat, TypeOf(3.0))
	assert.Equal(t, DataTypeString, TypeOf("3"))
	assert.Equal(t, DataTypeBool, TypeOf(true))
	assert.Equal(t, DataTypeDict, TypeOf(map[string]any{}))
	assert.Equal(t, DataTypeList, TypeOf([]any{}))
	assert.Equal(t, DataTypeNull, TypeOf(nil))
}
