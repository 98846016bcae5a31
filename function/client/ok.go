// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package client

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/confighub/remotefunc/function/api"
)

// Ok checks that the server responds.
func (t *HTTPTransport) Ok(ctx context.Context) error {
	var ok string
	return t.getJSON(ctx, "/function/ok", &ok)
}

// Info fetches the server description.
func (t *HTTPTransport) Info(ctx context.Context) (*api.ServerInfo, error) {
	var info api.ServerInfo
	if err := t.getJSON(ctx, "/function/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Shutdown asks a localhost-only server to stop.
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	req, err := t.newRequest(ctx, http.MethodPost, t.config.GetBaseURL()+"/function/shutdown", nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrUnexpectedStatus, "shutdown: %s", http.StatusText(resp.StatusCode))
	}
	return nil
}
