// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package api implements the data types and messages exchanged by the remote
// function server and its clients, in Go.
package api

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is the business outcome carried by every call envelope. Exactly one
// status applies to a call.
type Status int

const (
	StatusSuccess         = Status(0)
	StatusCallerError     = Status(1)
	StatusCalleeException = Status(2)
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusCallerError:
		return "caller-error"
	case StatusCalleeException:
		return "callee-exception"
	}
	return "unknown"
}

// DataType is the type tag of a function parameter. Values are compared
// against the JSON type of the supplied argument when type enforcement is on.
type DataType string

const (
	DataTypeNone   = DataType("")
	DataTypeInt    = DataType("int")
	DataTypeFloat  = DataType("float")
	DataTypeString = DataType("str")
	DataTypeBool   = DataType("bool")
	DataTypeDict   = DataType("dict")
	DataTypeList   = DataType("list")
	DataTypeAny    = DataType("any")
	// DataTypeNull is never declared; it names the type of a JSON null.
	DataTypeNull = DataType("none")
)

// Wire header names shared by the HTTP and NATS bindings.
const (
	HeaderAuthorization = "Authorization"
	HeaderCodec         = "X-Remote-Codec"
	HeaderStatusCode    = "Status-Code"
)

// MainOwner is the owner name of free functions.
const MainOwner = "main"

// FunctionParameter specifies the parameter name, its data type, and an optional description.
// Parameters are kept in declared order.
type FunctionParameter struct {
	ParameterName string   `json:"name" description:"Name of the parameter as supplied in call arguments"`
	DataType      DataType `json:"type,omitempty" description:"Data type of the parameter"`
	Description   string   `json:"description,omitempty" description:"Description of the parameter"`
}

// FunctionInfo describes a registered function for discovery with details.
type FunctionInfo struct {
	Path          string              `json:"path" description:"Function path: owner/name"`
	OwnerName     string              `json:"owner" description:"Lower-cased owner name; main for free functions"`
	FunctionName  string              `json:"name" description:"Lower-cased function name"`
	Description   string              `json:"description,omitempty" description:"Description of the function"`
	Parameters    []FunctionParameter `json:"parameters" description:"Function parameters, in order"`
	EnforceTypes  bool                `json:"enforceTypes" description:"Whether argument types are checked before invocation"`
	Authenticated bool                `json:"authenticated" description:"Whether a credential is required"`
}

// CallRequest is the JSON body of a function invocation. A missing or null
// args member is an empty argument set.
type CallRequest struct {
	Args map[string]any `json:"args"`
}

// CallResult is the response envelope. Result is set for HTTP 200 responses and
// Exception for every other response.
type CallResult struct {
	Status    Status `json:"status"`
	Result    string `json:"result,omitempty"`
	Exception string `json:"exception,omitempty"`
}

// ServerInfo is returned by the info endpoint.
type ServerInfo struct {
	Version         string `json:"version"`
	Codec           string `json:"codec"`
	Functions       int    `json:"functions"`
	AuthRequired    bool   `json:"authRequired"`
	Goroutines      int    `json:"goroutines"`
	TotalMemory     uint64 `json:"totalMemory,omitempty"`
	AvailableMemory uint64 `json:"availableMemory,omitempty"`
}

// Lower lower-cases a function or owner name. A Caser is not safe for
// concurrent use, so a new one is made per call.
func Lower(name string) string {
	return cases.Lower(language.Und).String(name)
}

// JoinPath builds the path of a function from its owner and function names.
func JoinPath(ownerName, functionName string) string {
	return ownerName + "/" + functionName
}

// SplitPath splits a path into its owner and function names.
func SplitPath(path string) (ownerName, functionName string, ok bool) {
	ownerName, functionName, ok = strings.Cut(path, "/")
	if !ok || ownerName == "" || functionName == "" || strings.Contains(functionName, "/") {
		return "", "", false
	}
	return ownerName, functionName, true
}

// NormalizePath lower-cases a path and places bare function names under the main owner.
func NormalizePath(nameOrPath string) string {
	p := Lower(strings.TrimSpace(nameOrPath))
	if !strings.Contains(p, "/") {
		return JoinPath(MainOwner, p)
	}
	return p
}
