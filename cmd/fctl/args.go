// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/confighub/remotefunc/function/api"
)

// parseArguments turns name=value (or --name=value) pairs into call
// arguments. Values that parse as JSON keep their JSON type, so a=2 is an int
// and a='"2"' a string; anything else is sent as a string.
func parseArguments(args []string) (map[string]any, error) {
	parsed := make(map[string]any, len(args))
	for _, arg := range args {
		name, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if !found || name == "" {
			return nil, fmt.Errorf("argument %q is not of the form name=value", arg)
		}
		if _, dup := parsed[name]; dup {
			return nil, fmt.Errorf("argument %q given twice", name)
		}
		parsed[name] = parseValue(value)
	}
	return parsed, nil
}

func parseValue(value string) any {
	dec := json.NewDecoder(strings.NewReader(value))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return value
	}
	if _, err := dec.Token(); err != io.EOF {
		return value
	}
	return api.NormalizeNumbers(v)
}

// readArgsFile reads an arguments object from a JSON or YAML file; the format
// follows the extension and defaults to JSON.
func readArgsFile(fs afero.Fs, name string) (map[string]any, error) {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, err
	}
	return decodeArgs(data, filepath.Ext(name))
}

func decodeArgs(data []byte, ext string) (map[string]any, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var v map[string]any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("reading YAML arguments: %w", err)
		}
		// Re-encode so numbers get the same types as JSON input.
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("YAML arguments are not JSON-compatible: %w", err)
		}
	}
	req, err := api.DecodeCallRequest(wrapArgs(data))
	if err != nil {
		return nil, fmt.Errorf("reading arguments: %w", err)
	}
	return req.Args, nil
}

func wrapArgs(data []byte) []byte {
	var b bytes.Buffer
	b.WriteString(`{"args":`)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		trimmed = []byte("{}")
	}
	b.Write(trimmed)
	b.WriteString("}")
	return b.Bytes()
}

// mergeArgs overlays the command-line arguments on those from a file.
func mergeArgs(fromFile, fromFlags map[string]any) map[string]any {
	merged := make(map[string]any, len(fromFile)+len(fromFlags))
	for k, v := range fromFile {
		merged[k] = v
	}
	for k, v := range fromFlags {
		merged[k] = v
	}
	return merged
}
