// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/spf13/cobra"

	"github.com/confighub/remotefunc/function/client"
)

func newShutdownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shutdown",
		Short: "Shutdown a localhost-only function server",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, _ []string) {
			err := client.NewHTTPTransport(transportConfig).Shutdown(cmd.Context())
			failOnError(err)
		},
	}

	return cmd
}
