// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package client

import (
	"github.com/cockroachdb/errors"

	"github.com/confighub/remotefunc/function/codec"
)

type OutcomeKind int

const (
	Success OutcomeKind = iota
	CallerError
	CalleeException
	Forbidden
	NotFound
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case CallerError:
		return "caller-error"
	case CalleeException:
		return "callee-exception"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not-found"
	}
	return "unknown"
}

// Outcome is the client's view of a completed call. Value is set on Success,
// Message on CallerError, Forbidden and NotFound, and Trace on
// CalleeException.
type Outcome struct {
	Kind       OutcomeKind
	Path       string
	StatusCode int
	Value      any
	Message    string
	Trace      string

	codec   codec.Codec
	payload []byte
}

// Decode decodes a successful result into target, which must be a pointer.
func (o *Outcome) Decode(target any) error {
	if o.Kind != Success {
		return errors.Newf("%s returned %s, not a value", o.Path, o.Kind)
	}
	if err := o.codec.Decode(o.payload, target); err != nil {
		return errors.Mark(errors.Wrapf(err, "decoding the result of %s", o.Path), ErrMalformedResponse)
	}
	return nil
}

// Err converts every kind other than Success into an error.
func (o *Outcome) Err() error {
	switch o.Kind {
	case Success:
		return nil
	case CalleeException:
		return errors.Newf("%s raised an exception:\n%s", o.Path, o.Trace)
	default:
		return errors.Newf("%s: %s (%s)", o.Path, o.Message, o.Kind)
	}
}
