// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/confighub/remotefunc/function/client"
)

var (
	argsFile     string
	outputFormat string
	jq           string
)

func newCallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <owner/name or name> [name=value ...]",
		Short: "Call one function",
		Long: `Call one function and print its result.
Values are parsed as JSON when possible, so a=2 sends an integer and a='"2"' a string.
Arguments may also be read from a JSON or YAML object with --args-file; command-line
arguments take precedence.`,
		Example: `  fctl call add a=2 b=3
  fctl call counter/increase amount=5 -o yaml
  fctl call echo 'value={"x":[1,2]}' --jq .x`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			callArgs, err := collectArguments(afero.NewOsFs(), argsFile, args[1:])
			failOnError(err)

			c, release, err := newClient()
			failOnError(err)
			defer release()

			outcome, err := c.Call(cmd.Context(), args[0], callArgs)
			failOnError(err)
			if outcome.Kind == client.CalleeException {
				red := color.New(color.FgRed)
				red.Fprintln(os.Stderr, outcome.Trace)
				release()
				os.Exit(1)
			}
			failOnError(outcome.Err())
			failOnError(writeValue(os.Stdout, outcome.Value, outputFormat, jq))
		},
	}
	cmd.Flags().StringVar(&argsFile, "args-file", "", "JSON or YAML file holding an arguments object")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")
	cmd.Flags().StringVar(&jq, "jq", "", "jq expression applied to the result")

	return cmd
}

func collectArguments(fs afero.Fs, file string, args []string) (map[string]any, error) {
	fromFlags, err := parseArguments(args)
	if err != nil {
		return nil, err
	}
	if file == "" {
		return fromFlags, nil
	}
	fromFile, err := readArgsFile(fs, file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return mergeArgs(fromFile, fromFlags), nil
}
