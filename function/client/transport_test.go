// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package client

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/confighub/remotefunc/function/codec"
	"github.com/confighub/remotefunc/function/handler"
	"github.com/confighub/remotefunc/function/server"
)

func add(a, b int) int {
	return a + b
}

func divide(a, b int) (int, error) {
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	return a / b, nil
}

func newTestFunctionHandler(t *testing.T) *handler.FunctionHandler {
	t.Helper()
	registry := handler.NewRegistry(zaptest.NewLogger(t))
	_, err := registry.RegisterFunc(add, []string{"a", "b"})
	require.NoError(t, err)
	_, err = registry.RegisterFunc(divide, []string{"a", "b"}, handler.WithOwner("math"))
	require.NoError(t, err)
	d := handler.NewDispatcher(registry, handler.WithSecret("s3cret"), handler.WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(d.Close)
	return handler.NewFunctionHandler(d, codec.Default())
}

// exercise runs the same calls through any transport.
func exercise(t *testing.T, tr Transport) {
	ctx := context.Background()
	c := New(tr, WithCredential("s3cret"))

	paths, err := c.Discover(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main/add", "math/divide"}, paths)

	outcome, err := c.Call(ctx, "add", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	require.Equal(t, Success, outcome.Kind, outcome.Err())
	var sum int
	require.NoError(t, outcome.Decode(&sum))
	assert.Equal(t, 3, sum)

	outcome, err = c.Call(ctx, "main/add", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, CallerError, outcome.Kind)
	assert.Equal(t, "add() missing 1 required argument: 'b'", outcome.Message)

	outcome, err = c.Call(ctx, "main/add", map[string]any{"a": 1, "b": "2"})
	require.NoError(t, err)
	assert.Equal(t, CallerError, outcome.Kind)
	assert.Contains(t, outcome.Message, "b requires int")

	outcome, err = c.Call(ctx, "math/divide", map[string]any{"a": 1, "b": 0})
	require.NoError(t, err)
	assert.Equal(t, CalleeException, outcome.Kind)
	assert.Contains(t, outcome.Trace, "math/divide")
	assert.Contains(t, outcome.Trace, "division by zero")

	outcome, err = New(tr, WithCredential("wrong")).Call(ctx, "main/add", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, Forbidden, outcome.Kind)
	assert.Equal(t, handler.ForbiddenMessage, outcome.Message)
}

func TestHTTPTransport(t *testing.T) {
	srv := httptest.NewServer(server.NewTestHTTPRouter(newTestFunctionHandler(t)))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	tr := NewHTTPTransport(&TransportConfig{Host: u.Host, Scheme: u.Scheme, UserAgent: "test", Timeout: 5 * time.Second})
	exercise(t, tr)

	ctx := context.Background()
	require.NoError(t, tr.Ok(ctx))
	info, err := tr.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Functions)
	assert.True(t, info.AuthRequired)
	assert.Equal(t, "cbor", info.Codec)

	infos, err := tr.ListFunctions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "divide", infos[1].FunctionName)
}

func TestNATSTransport(t *testing.T) {
	ns, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(10*time.Second))
	defer ns.Shutdown()

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	ctx := server.NewContext(context.Background(), zaptest.NewLogger(t))
	s, err := server.ServeNATS(ctx, nc, "test", newTestFunctionHandler(t))
	require.NoError(t, err)
	defer s.Close()

	exercise(t, NewNATSTransport(nc, "test", 5*time.Second))
}

func TestHTTPTransportUnreachable(t *testing.T) {
	tr := NewHTTPTransport(&TransportConfig{Host: "127.0.0.1:1", Scheme: "http", Timeout: time.Second})
	_, err := New(tr, WithDiscoveryTries(1)).Call(context.Background(), "add", nil)
	assert.Error(t, err)
}
