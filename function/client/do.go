// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"

	"github.com/confighub/remotefunc/function/api"
)

// maxResponseBytes bounds reply bodies.
const maxResponseBytes = 64 << 20

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// Call posts req to /function/<owner>/<name> and returns the raw reply,
// whatever its status.
func (t *HTTPTransport) Call(ctx context.Context, path string, callReq *api.CallRequest, credential string) (*Response, error) {
	owner, name, ok := api.SplitPath(path)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFunction, "%q is not an owner/name path", path)
	}
	marshaled, err := json.Marshal(callReq)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	target := t.config.GetBaseURL() + "/function/" + url.PathEscape(owner) + "/" + url.PathEscape(name)
	req, err := t.newRequest(ctx, http.MethodPost, target, marshaled)
	if err != nil {
		return nil, err
	}
	if credential != "" {
		req.Header.Set(api.HeaderAuthorization, credential)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Codec:      resp.Header.Get(api.HeaderCodec),
		Body:       respBody,
	}, nil
}
