// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package codec

import (
	"bytes"
	"encoding/gob"

	"github.com/cockroachdb/errors"
)

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// gobValue wraps the encoded value so that interface values keep their
// concrete type across the wire. Types other than the gob basics and the
// generic map and list must be registered with gob.Register on both ends.
type gobValue struct {
	Value any
}

type gobCodec struct{}

// Gob returns a codec that preserves Go types exactly.
func Gob() Codec { return gobCodec{} }

func (gobCodec) Name() string { return "gob" }

func (gobCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&gobValue{Value: v}); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Decode(data []byte, v any) error {
	var gv gobValue
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&gv); err != nil {
		return errors.WithStack(err)
	}
	return assign(v, gv.Value)
}
