// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/confighub/remotefunc/function/api"
	"github.com/confighub/remotefunc/function/client"
)

func newOkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ok",
		Short: "Check whether the function server responds",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, _ []string) {
			err := client.NewHTTPTransport(transportConfig).Ok(cmd.Context())
			failOnError(err)
		},
	}

	return cmd
}

func newInfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Describe the function server",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, _ []string) {
			info, err := client.NewHTTPTransport(transportConfig).Info(cmd.Context())
			failOnError(err)
			detail := detailView()
			for _, row := range infoRows(info) {
				detail.Append(row)
			}
			detail.Render()
		},
	}

	return cmd
}

func infoRows(info *api.ServerInfo) [][]string {
	rows := [][]string{
		{"VERSION", info.Version},
		{"CODEC", info.Codec},
		{"FUNCTIONS", strconv.Itoa(info.Functions)},
		{"AUTHREQUIRED", strconv.FormatBool(info.AuthRequired)},
		{"GOROUTINES", strconv.Itoa(info.Goroutines)},
	}
	if info.TotalMemory > 0 {
		rows = append(rows,
			[]string{"TOTALMEMORY", fmt.Sprintf("%d MiB", info.TotalMemory>>20)},
			[]string{"AVAILABLEMEMORY", fmt.Sprintf("%d MiB", info.AvailableMemory>>20)},
		)
	}
	return rows
}
