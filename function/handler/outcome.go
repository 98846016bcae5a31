// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/confighub/remotefunc/function/api"
	"github.com/confighub/remotefunc/function/codec"
)

// OutcomeKind classifies a dispatched call. Exactly one kind applies.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeCallerError
	OutcomeCalleeException
	OutcomeForbidden
	OutcomeNotFound
)

var outcomeNames = [...]string{"success", "caller-error", "callee-exception", "forbidden", "not-found"}

func (k OutcomeKind) String() string {
	if k < 0 || int(k) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[k]
}

// HTTPStatus is the transport status code for the kind.
func (k OutcomeKind) HTTPStatus() int {
	switch k {
	case OutcomeSuccess:
		return http.StatusOK
	case OutcomeCallerError:
		return http.StatusBadRequest
	case OutcomeForbidden:
		return http.StatusForbidden
	case OutcomeNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Status is the envelope status for the kind. Rejections before dispatch are
// reported as caller errors; the transport status tells them apart.
func (k OutcomeKind) Status() api.Status {
	switch k {
	case OutcomeSuccess:
		return api.StatusSuccess
	case OutcomeCalleeException:
		return api.StatusCalleeException
	}
	return api.StatusCallerError
}

// Outcome is the result of one dispatched call.
type Outcome struct {
	Kind OutcomeKind
	Path string
	// Value is the return value of a successful call.
	Value any
	// Message describes a caller error, forbidden, or not-found outcome, and
	// summarizes a callee exception.
	Message string
	// Trace is the full diagnostic text of a callee exception.
	Trace    string
	Duration time.Duration
}

// Render encodes the outcome as a response envelope with c. A result that
// cannot be encoded turns into a callee exception.
func (o *Outcome) Render(c codec.Codec) (int, *api.CallResult) {
	switch o.Kind {
	case OutcomeSuccess:
		result, err := codec.EncodeString(c, o.Value)
		if err != nil {
			err = errors.Wrapf(err, "encoding the result of %s", o.Path)
			return renderTrace(c, fmt.Sprintf("%+v", err))
		}
		return http.StatusOK, &api.CallResult{Status: api.StatusSuccess, Result: result}
	case OutcomeCalleeException:
		return renderTrace(c, o.Trace)
	}
	return o.Kind.HTTPStatus(), &api.CallResult{Status: o.Kind.Status(), Exception: o.Message}
}

func renderTrace(c codec.Codec, trace string) (int, *api.CallResult) {
	encoded, err := codec.EncodeString(c, trace)
	if err != nil {
		// Every codec encodes strings; this is unreachable for the built-in ones.
		encoded = trace
	}
	return http.StatusInternalServerError, &api.CallResult{Status: api.StatusCalleeException, Exception: encoded}
}
