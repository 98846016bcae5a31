// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/confighub/remotefunc/function/api"
)

// ListPaths fetches the registered paths from GET /functions.
func (t *HTTPTransport) ListPaths(ctx context.Context) ([]string, error) {
	var paths []string
	if err := t.getJSON(ctx, "/functions", &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

// ListFunctions fetches full function descriptions from GET /functions?details=true.
func (t *HTTPTransport) ListFunctions(ctx context.Context) ([]api.FunctionInfo, error) {
	var infos []api.FunctionInfo
	if err := t.getJSON(ctx, "/functions?details=true", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (t *HTTPTransport) getJSON(ctx context.Context, path string, out any) error {
	req, err := t.newRequest(ctx, http.MethodGet, t.config.GetBaseURL()+path, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrUnexpectedStatus, "GET %s: %d %s", path, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.WithStack(err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Mark(errors.Wrapf(err, "GET %s", path), ErrMalformedResponse)
	}
	return nil
}
