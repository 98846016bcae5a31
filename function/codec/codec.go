// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package codec turns call results and exception traces into transportable
// strings and back. Client and server must use the same codec; the server names
// its codec in every response.
package codec

import (
	"encoding/base64"
	"reflect"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// Codec serializes values to bytes and back.
type Codec interface {
	Name() string
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// DefaultName is the name of the codec used when none is configured.
const DefaultName = "cbor"

// ErrUnknownCodec is returned by Lookup for names that were never registered.
var ErrUnknownCodec = errors.New("unknown codec")

var (
	mu     sync.RWMutex
	codecs = map[string]Codec{}
)

func init() {
	Register(CBOR())
	Register(Gob())
	Register(JSON())
}

// Register makes a codec available to Lookup under its name, replacing any
// codec of the same name.
func Register(c Codec) {
	mu.Lock()
	defer mu.Unlock()
	codecs[c.Name()] = c
}

// Lookup returns the codec registered under name. An empty name selects the default.
func Lookup(name string) (Codec, error) {
	if name == "" {
		name = DefaultName
	}
	mu.RLock()
	defer mu.RUnlock()
	c, ok := codecs[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCodec, "%q", name)
	}
	return c, nil
}

// Default returns the default codec.
func Default() Codec {
	c, err := Lookup(DefaultName)
	if err != nil {
		panic(err)
	}
	return c
}

// Names lists the registered codec names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EncodeString encodes v and renders the bytes as standard base64.
func EncodeString(c Codec, v any) (string, error) {
	data, err := c.Encode(v)
	if err != nil {
		return "", errors.Wrapf(err, "%s encode", c.Name())
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeString reverses EncodeString.
func DecodeString(c Codec, s string, v any) error {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return errors.Wrap(err, "payload is not base64")
	}
	if err := c.Decode(data, v); err != nil {
		return errors.Wrapf(err, "%s decode", c.Name())
	}
	return nil
}

// assign stores src into the value dst points to, converting between
// compatible kinds (for example int64 into int).
func assign(dst, src any) error {
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return errors.Newf("decode target must be a non-nil pointer, got %T", dst)
	}
	elem := dv.Elem()
	if src == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}
	sv := reflect.ValueOf(src)
	switch {
	case sv.Type().AssignableTo(elem.Type()):
		elem.Set(sv)
	case sv.Type().ConvertibleTo(elem.Type()) && sv.Kind() != reflect.String && elem.Kind() != reflect.String:
		elem.Set(sv.Convert(elem.Type()))
	default:
		return errors.Newf("cannot decode %T into %s", src, elem.Type())
	}
	return nil
}
