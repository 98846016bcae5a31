// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns the default codec. Encoding is deterministic; untyped decoding
// yields int64 for integers and map[string]any for maps.
func CBOR() Codec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return &cborCodec{enc: enc, dec: dec}
}

func (c *cborCodec) Name() string { return "cbor" }

func (c *cborCodec) Encode(v any) ([]byte, error) {
	return c.enc.Marshal(v) //nolint:wrapcheck // wrapped by callers
}

func (c *cborCodec) Decode(data []byte, v any) error {
	return c.dec.Unmarshal(data, v) //nolint:wrapcheck // wrapped by callers
}
