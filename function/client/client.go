// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package client calls functions exposed by a remote function server over HTTP
// or NATS and maps each reply to a typed Outcome.
package client

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/confighub/remotefunc/function/api"
)

var (
	// ErrUnknownFunction is returned when the path is not in the server's listing.
	ErrUnknownFunction = errors.New("unknown function")
	// ErrUnexpectedStatus is returned for transport status codes outside the protocol.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrMalformedResponse is returned when a reply cannot be parsed or decoded.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrCodecMismatch is returned when the server names a codec this client lacks.
	ErrCodecMismatch = errors.New("codec mismatch")
)

// Response is a raw reply: the HTTP-equivalent status, the codec named by the
// server, and the body.
type Response struct {
	StatusCode int
	Codec      string
	Body       []byte
}

// Transport carries discovery and call requests to a server.
type Transport interface {
	ListPaths(ctx context.Context) ([]string, error)
	Call(ctx context.Context, path string, req *api.CallRequest, credential string) (*Response, error)
}

const DefaultTimeout = 60 * time.Second

type TransportConfig struct {
	Host      string
	BasePath  string
	Scheme    string
	UserAgent string
	// Timeout bounds each HTTP request; zero means DefaultTimeout.
	Timeout time.Duration
}

func (tc *TransportConfig) GetBaseURL() string {
	return tc.Scheme + "://" + tc.Host + tc.BasePath
}

func (tc *TransportConfig) GetUserAgent() string {
	if tc.UserAgent == "" {
		return "unknown-client"
	}
	return tc.UserAgent
}

func (tc *TransportConfig) GetContentType() string {
	return "application/json"
}

func (tc *TransportConfig) getTimeout() time.Duration {
	if tc.Timeout <= 0 {
		return DefaultTimeout
	}
	return tc.Timeout
}

// HTTPTransport speaks the HTTP binding.
type HTTPTransport struct {
	config *TransportConfig
	client *http.Client
}

func NewHTTPTransport(config *TransportConfig) *HTTPTransport {
	return &HTTPTransport{
		config: config,
		client: &http.Client{Timeout: config.getTimeout()},
	}
}

var _ Transport = (*HTTPTransport)(nil)

func (t *HTTPTransport) newRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, url, http.NoBody) //nolint:G107 // dynamic URL
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, bytesReader(body)) //nolint:G107 // dynamic URL
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", t.config.GetContentType())
	req.Header.Set("User-Agent", t.config.GetUserAgent())
	return req, nil
}
