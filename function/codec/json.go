// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package codec

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/confighub/remotefunc/function/api"
)

type jsonCodec struct{}

// JSON returns a codec readable by clients in any language. Untyped decoding
// yields int64 for integral numbers and float64 otherwise.
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	return data, errors.WithStack(err)
}

func (jsonCodec) Decode(data []byte, v any) error {
	if p, ok := v.(*any); ok {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return errors.WithStack(err)
		}
		*p = api.NormalizeNumbers(raw)
		return nil
	}
	return errors.WithStack(json.Unmarshal(data, v))
}
