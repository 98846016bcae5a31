// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package handler

import (
	"fmt"
	"strings"

	"github.com/confighub/remotefunc/function/api"
)

// ValidationResult is the outcome of an argument check. Message enumerates
// every offending argument.
type ValidationResult struct {
	Valid   bool
	Message string
	// Offending lists the argument names that failed, in declared order.
	Offending []string
}

func valid() ValidationResult {
	return ValidationResult{Valid: true}
}

// CheckPresence reports every declared parameter missing from supplied.
func CheckPresence(functionName string, params []api.FunctionParameter, supplied Arguments) ValidationResult {
	var missing []string
	for _, p := range params {
		if _, ok := supplied[p.ParameterName]; !ok {
			missing = append(missing, p.ParameterName)
		}
	}
	if len(missing) == 0 {
		return valid()
	}
	quoted := make([]string, len(missing))
	for i, name := range missing {
		quoted[i] = "'" + name + "'"
	}
	noun := "argument"
	if len(missing) > 1 {
		noun = "arguments"
	}
	return ValidationResult{
		Message:   fmt.Sprintf("%s() missing %d required %s: %s", functionName, len(missing), noun, strings.Join(quoted, ", ")),
		Offending: missing,
	}
}

// CheckTypes compares each supplied argument against its declared type by exact
// match: an integer where a float is declared is a mismatch. Undeclared
// arguments and parameters typed any or left untyped are not checked.
func CheckTypes(params []api.FunctionParameter, supplied Arguments) ValidationResult {
	var mismatched, messages []string
	for _, p := range params {
		v, ok := supplied[p.ParameterName]
		if !ok || p.DataType == api.DataTypeNone || p.DataType == api.DataTypeAny {
			continue
		}
		if api.TypeOf(v) != p.DataType {
			mismatched = append(mismatched, p.ParameterName)
			messages = append(messages, fmt.Sprintf("%s requires %s", p.ParameterName, p.DataType))
		}
	}
	if len(mismatched) == 0 {
		return valid()
	}
	return ValidationResult{
		Message:   strings.Join(messages, "; "),
		Offending: mismatched,
	}
}
