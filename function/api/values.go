// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"encoding/json"
	"io"
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
)

// DecodeCallRequest parses a call request body. Numbers are kept exact: integral
// literals become int64 and the rest float64. An empty body is an empty request.
func DecodeCallRequest(body []byte) (*CallRequest, error) {
	req := &CallRequest{}
	if len(bytes.TrimSpace(body)) == 0 {
		req.Args = map[string]any{}
		return req, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(req); err != nil {
		return nil, errors.Wrap(err, "malformed call request")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("malformed call request: trailing data after JSON body")
	}
	if req.Args == nil {
		req.Args = map[string]any{}
	}
	for k, v := range req.Args {
		req.Args[k] = NormalizeNumbers(v)
	}
	return req, nil
}

// NormalizeNumbers replaces json.Number values, recursively, with int64 when the
// literal has no fraction or exponent and with float64 otherwise. Integral
// literals outside the int64 range become *big.Int so they stay integers.
func NormalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if !strings.ContainsAny(t.String(), ".eE") {
			if i, err := t.Int64(); err == nil {
				return i
			}
			if n, ok := new(big.Int).SetString(t.String(), 10); ok {
				return n
			}
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = NormalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = NormalizeNumbers(e)
		}
		return t
	}
	return v
}

// TypeOf returns the DataType of a decoded argument value. Integral values are
// int and everything numeric with a fraction or exponent is float.
func TypeOf(v any) DataType {
	switch v.(type) {
	case nil:
		return DataTypeNull
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, *big.Int:
		return DataTypeInt
	case float32, float64:
		return DataTypeFloat
	case string:
		return DataTypeString
	case bool:
		return DataTypeBool
	case map[string]any:
		return DataTypeDict
	case []any:
		return DataTypeList
	}
	return DataTypeAny
}
