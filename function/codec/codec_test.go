// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	values := []struct {
		name  string
		value any
	}{
		{name: "integer", value: int64(5)},
		{name: "negative integer", value: int64(-42)},
		{name: "float", value: 2.5},
		{name: "string", value: "hello, world"},
		{name: "bool", value: true},
		{name: "nil", value: nil},
		{name: "list", value: []any{int64(1), "two", 3.5}},
		{
			name: "nested mapping",
			value: map[string]any{
				"a": int64(1),
				"b": []any{"x", int64(2)},
				"c": map[string]any{"d": true, "e": "f"},
			},
		},
	}
	for _, name := range []string{"cbor", "gob", "json"} {
		c, err := Lookup(name)
		require.NoError(t, err)
		for _, tt := range values {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				s, err := EncodeString(c, tt.value)
				require.NoError(t, err)
				assert.NotEmpty(t, s)

				var got any
				require.NoError(t, DecodeString(c, s, &got))
				assert.Equal(t, tt.value, got)
			})
		}
	}
}

func TestTypedDecode(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			c, err := Lookup(name)
			require.NoError(t, err)

			s, err := EncodeString(c, 5)
			require.NoError(t, err)
			var n int
			require.NoError(t, DecodeString(c, s, &n))
			assert.Equal(t, 5, n)

			s, err = EncodeString(c, "trace text")
			require.NoError(t, err)
			var text string
			require.NoError(t, DecodeString(c, s, &text))
			assert.Equal(t, "trace text", text)
		})
	}
}

func TestLookup(t *testing.T) {
	c, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, c.Name())
	assert.Equal(t, DefaultName, Default().Name())

	_, err = Lookup("pickle")
	assert.ErrorIs(t, err, ErrUnknownCodec)

	assert.Equal(t, []string{"cbor", "gob", "json"}, Names())
}

func TestDecodeStringRejectsGarbage(t *testing.T) {
	var v any
	assert.Error(t, DecodeString(Default(), "not base64!", &v))
	assert.Error(t, DecodeString(Default(), "", &v))
}

func TestAssign(t *testing.T) {
	var n int
	require.NoError(t, assign(&n, int64(7)))
	assert.Equal(t, 7, n)

	var s string
	assert.Error(t, assign(&s, int64(7)))
	assert.Error(t, assign(n, int64(7)))
}
