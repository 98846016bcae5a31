// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/confighub/remotefunc/function/api"
	"github.com/confighub/remotefunc/function/client"
)

var details bool

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available functions",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, _ []string) {
			if details {
				if natsURL != "" {
					failOnError(errors.New("--details is only available over HTTP"))
				}
				infos, err := client.NewHTTPTransport(transportConfig).ListFunctions(cmd.Context())
				failOnError(err)
				table := detailView()
				table.SetHeader([]string{"Path", "Parameters", "EnforceTypes", "Authenticated", "Description"})
				for _, row := range functionRows(infos) {
					table.Append(row)
				}
				table.Render()
				return
			}

			c, release, err := newClient()
			failOnError(err)
			defer release()
			paths, err := c.Discover(cmd.Context())
			failOnError(err)
			table := tableView()
			for _, p := range paths {
				table.Append([]string{p})
			}
			table.Render()
		},
	}
	cmd.Flags().BoolVar(&details, "details", false, "show parameters and descriptions")

	return cmd
}

func functionRows(infos []api.FunctionInfo) [][]string {
	rows := make([][]string, 0, len(infos))
	for _, f := range infos {
		rows = append(rows, []string{
			f.Path,
			formatParameters(f.Parameters),
			fmt.Sprintf("%v", f.EnforceTypes),
			fmt.Sprintf("%v", f.Authenticated),
			f.Description,
		})
	}
	return rows
}

func formatParameters(params []api.FunctionParameter) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.DataType == api.DataTypeNone {
			parts = append(parts, p.ParameterName)
			continue
		}
		parts = append(parts, p.ParameterName+":"+string(p.DataType))
	}
	return strings.Join(parts, ", ")
}
