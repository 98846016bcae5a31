// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/nats-io/nats.go"

	"github.com/confighub/remotefunc/function/api"
)

// DefaultNATSPrefix matches the server's default subject prefix.
const DefaultNATSPrefix = "remotefunc"

// NATSTransport speaks the NATS binding: request/reply on
// <prefix>.functions and <prefix>.function.<owner>.<name>.
type NATSTransport struct {
	nc      *nats.Conn
	prefix  string
	timeout time.Duration
}

var _ Transport = (*NATSTransport)(nil)

// NewNATSTransport uses nc for requests. A zero timeout means DefaultTimeout;
// it only applies when ctx carries no deadline of its own.
func NewNATSTransport(nc *nats.Conn, prefix string, timeout time.Duration) *NATSTransport {
	if prefix == "" {
		prefix = DefaultNATSPrefix
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &NATSTransport{nc: nc, prefix: prefix, timeout: timeout}
}

// nats requests need a deadline.
func (t *NATSTransport) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.timeout)
}

func (t *NATSTransport) ListPaths(ctx context.Context) ([]string, error) {
	ctx, cancel := t.withDeadline(ctx)
	defer cancel()

	reply, err := t.nc.RequestWithContext(ctx, t.prefix+".functions", nil)
	if err != nil {
		return nil, errors.Wrap(err, "listing functions over NATS")
	}
	if status := statusOf(reply); status != http.StatusOK {
		return nil, errors.Wrapf(ErrUnexpectedStatus, "listing functions: %d", status)
	}
	var paths []string
	if err := json.Unmarshal(reply.Data, &paths); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "listing functions"), ErrMalformedResponse)
	}
	return paths, nil
}

func (t *NATSTransport) Call(ctx context.Context, path string, callReq *api.CallRequest, credential string) (*Response, error) {
	owner, name, ok := api.SplitPath(path)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFunction, "%q is not an owner/name path", path)
	}
	data, err := json.Marshal(callReq)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	msg := nats.NewMsg(t.prefix + ".function." + owner + "." + name)
	msg.Data = data
	if credential != "" {
		msg.Header.Set(api.HeaderAuthorization, credential)
	}

	ctx, cancel := t.withDeadline(ctx)
	defer cancel()
	reply, err := t.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s over NATS", path)
	}
	return &Response{
		StatusCode: statusOf(reply),
		Codec:      reply.Header.Get(api.HeaderCodec),
		Body:       reply.Data,
	}, nil
}

// statusOf returns 0 when the reply carries no parsable status.
func statusOf(msg *nats.Msg) int {
	if msg.Header == nil {
		return 0
	}
	status, err := strconv.Atoi(msg.Header.Get(api.HeaderStatusCode))
	if err != nil {
		return 0
	}
	return status
}
