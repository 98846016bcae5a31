// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/confighub/remotefunc/function/api"
	"github.com/confighub/remotefunc/function/codec"
	"github.com/confighub/remotefunc/function/handler"
)

func add(a, b int) int {
	return a + b
}

func newTestHandler(t *testing.T, opts ...handler.DispatcherOption) *handler.FunctionHandler {
	t.Helper()
	registry := handler.NewRegistry(zaptest.NewLogger(t))
	_, err := registry.RegisterFunc(add, []string{"a", "b"})
	require.NoError(t, err)
	d := handler.NewDispatcher(registry, opts...)
	t.Cleanup(d.Close)
	return handler.NewFunctionHandler(d, codec.Default())
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	e := NewTestHTTPRouter(newTestHandler(t))

	rec := do(e, http.MethodGet, "/functions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["main/add"]`, rec.Body.String())

	rec = do(e, http.MethodPost, "/function/main/add", `{"args":{"a":20,"b":22}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var env api.CallResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var n int
	require.NoError(t, codec.DecodeString(codec.Default(), env.Result, &n))
	assert.Equal(t, 42, n)

	rec = do(e, http.MethodPost, "/functions/add", `{"args":{"a":1,"b":1}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/function/ok", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorsAreEnvelopes(t *testing.T) {
	e := NewTestHTTPRouter(newTestHandler(t))

	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		wantCode int
	}{
		{name: "unknown route", method: http.MethodGet, target: "/nowhere", wantCode: http.StatusNotFound},
		{name: "wrong method", method: http.MethodGet, target: "/functions/add", wantCode: http.StatusMethodNotAllowed},
		{name: "malformed body", method: http.MethodPost, target: "/function/main/add", body: `{"args":[`, wantCode: http.StatusBadRequest},
		{name: "shutdown needs localhost mode", method: http.MethodPost, target: "/function/shutdown", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			var env api.CallResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, api.StatusCallerError, env.Status)
			assert.NotEmpty(t, env.Exception)
			assert.Equal(t, "cbor", rec.Header().Get(api.HeaderCodec))
		})
	}
}

func TestPanicsInMiddlewareAreCalleeExceptions(t *testing.T) {
	h := envelopeErrorHandler(codec.JSON())
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	h(echo.NewHTTPError(http.StatusInternalServerError, "boom"), c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env api.CallResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, api.StatusCalleeException, env.Status)
	var trace string
	require.NoError(t, codec.DecodeString(codec.JSON(), env.Exception, &trace))
	assert.Contains(t, trace, "boom")
}

func TestInfo(t *testing.T) {
	e := NewTestHTTPRouter(newTestHandler(t, handler.WithSecret("s3cret")))

	rec := do(e, http.MethodGet, "/function/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var info api.ServerInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "test", info.Version)
	assert.Equal(t, "cbor", info.Codec)
	assert.Equal(t, 1, info.Functions)
	assert.True(t, info.AuthRequired)
	assert.Positive(t, info.Goroutines)
}

func TestMetricsEndpoint(t *testing.T) {
	e := NewTestHTTPRouter(newTestHandler(t))
	rec := do(e, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRunServerShutdown(t *testing.T) {
	ctx := NewContext(context.Background(), zaptest.NewLogger(t))
	grp, ctx := errgroup.WithContext(ctx)
	httpServer := RunServer(ctx, grp, Config{Port: "0", LocalhostOnly: true}, newTestHandler(t))
	require.Eventually(t, func() bool { return httpServer.ListenerAddr() != nil }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, httpServer.Shutdown(context.Background()))
	assert.NoError(t, grp.Wait())
}

func TestConfigBindAddr(t *testing.T) {
	assert.Equal(t, ":9080", Config{}.bindAddr())
	assert.Equal(t, "127.0.0.1:8000", Config{Port: "8000", LocalhostOnly: true}.bindAddr())
}
