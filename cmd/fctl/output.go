// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

// writeValue prints a call result as JSON or YAML, or the results of a jq
// expression over it.
func writeValue(w io.Writer, value any, format, jqExpr string) error {
	if jqExpr != "" {
		return writeJQ(w, value, jqExpr)
	}
	switch format {
	case "", "json":
		out, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported output format %q; want json or yaml", format)
}

func writeJQ(w io.Writer, value any, jqExpr string) error {
	query, err := gojq.Parse(jqExpr)
	if err != nil {
		return err
	}
	// gojq only accepts plain JSON types.
	var tree any
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &tree); err != nil {
		return err
	}
	iter := query.Run(tree)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := v.(error); ok {
			if err, ok := err.(*gojq.HaltError); ok && err.Value() == nil {
				return nil
			}
			return err
		}
		switch v := v.(type) {
		case string, int, bool:
			fmt.Fprintf(w, "%v\n", v)
		default:
			out, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(w, string(out))
		}
	}
}
