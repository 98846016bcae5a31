// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/nats-io/nats.go"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/confighub/remotefunc/function/client"
	"github.com/confighub/remotefunc/function/codec"
)

const defaultHost = "http://localhost:9080"

var (
	transportConfig *client.TransportConfig
	credential      string
	codecName       string
	natsURL         string
	natsPrefix      string
)

// This CLI is for calling functions on a remote function server.
func main() {
	host := os.Getenv("REMOTEFUNC_HOST")
	if host == "" {
		host = defaultHost
	}
	var err error
	transportConfig, err = parseHost(host)
	failOnError(err)

	rootCmd := &cobra.Command{
		Use:   "fctl",
		Short: "remote function client tool",
		Long: `Command line tool for a remote function server
To change the default host, set the REMOTEFUNC_HOST environment variable.
The credential and codec default to REMOTEFUNC_SECRET and REMOTEFUNC_CODEC.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&credential, "credential", os.Getenv("REMOTEFUNC_SECRET"), "value sent in the Authorization header")
	rootCmd.PersistentFlags().StringVar(&codecName, "codec", os.Getenv("REMOTEFUNC_CODEC"), "codec for replies that do not name one; cbor by default")
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats-url", "", "call over NATS at this URL instead of HTTP")
	rootCmd.PersistentFlags().StringVar(&natsPrefix, "nats-prefix", client.DefaultNATSPrefix, "NATS subject prefix")

	rootCmd.AddCommand(newCallCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newOkCommand())
	rootCmd.AddCommand(newInfoCommand())
	rootCmd.AddCommand(newShutdownCommand())

	failOnError(rootCmd.Execute())
}

// parseHost splits scheme://host[:port]. A bare host means http.
func parseHost(host string) (*client.TransportConfig, error) {
	scheme, rest, found := strings.Cut(strings.TrimSuffix(host, "/"), "://")
	if !found {
		scheme, rest = "http", scheme
	}
	if rest == "" || (scheme != "http" && scheme != "https") {
		return nil, fmt.Errorf("invalid host %q; want http[s]://host[:port]", host)
	}
	return &client.TransportConfig{
		Host:      rest,
		Scheme:    scheme,
		UserAgent: "fctl",
	}, nil
}

// newClient returns a client over NATS when --nats-url is set, else over
// HTTP, and a func to release it.
func newClient() (*client.Client, func(), error) {
	cd, err := codec.Lookup(codecName)
	if err != nil {
		return nil, nil, err
	}
	opts := []client.Option{client.WithCredential(credential), client.WithCodec(cd)}
	if natsURL == "" {
		return client.New(client.NewHTTPTransport(transportConfig), opts...), func() {}, nil
	}
	nc, err := nats.Connect(natsURL, nats.Name("fctl"))
	if err != nil {
		return nil, nil, err
	}
	tr := client.NewNATSTransport(nc, natsPrefix, transportConfig.Timeout)
	return client.New(tr, opts...), nc.Close, nil
}

func failOnError(err error) {
	if err != nil {
		red := color.New(color.FgRed).Add(color.Bold)
		redf := red.SprintFunc()
		errstring := redf(err.Error())
		rederr := errors.New(errstring)
		log.Fatal(rederr)
	}
}

func newTable(headerLine bool) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(headerLine)
	table.SetBorder(false)
	table.SetTablePadding("    ")
	table.SetNoWhiteSpace(true)
	return table
}

func detailView() *tablewriter.Table {
	return newTable(true)
}

func tableView() *tablewriter.Table {
	return newTable(false)
}
