// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cockroachdb/errors"

	"github.com/confighub/remotefunc/function/api"
	"github.com/confighub/remotefunc/function/codec"
)

const DefaultDiscoveryTries = 3

// Client calls remote functions through a Transport.
type Client struct {
	transport      Transport
	credential     string
	codec          codec.Codec
	discoveryTries uint
}

type Option func(*Client)

// WithCredential sets the value sent in the Authorization header.
func WithCredential(credential string) Option {
	return func(c *Client) {
		c.credential = credential
	}
}

// WithCodec sets the codec used when a reply does not name one.
func WithCodec(cd codec.Codec) Option {
	return func(c *Client) {
		if cd != nil {
			c.codec = cd
		}
	}
}

// WithDiscoveryTries bounds discovery attempts. Zero disables retries.
func WithDiscoveryTries(n uint) Option {
	return func(c *Client) {
		c.discoveryTries = max(n, 1)
	}
}

func New(transport Transport, opts ...Option) *Client {
	c := &Client{
		transport:      transport,
		codec:          codec.Default(),
		discoveryTries: DefaultDiscoveryTries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discover lists the server's function paths, retrying transport failures.
func (c *Client) Discover(ctx context.Context) ([]string, error) {
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     200 * time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         2 * time.Second,
	}
	return backoff.Retry(ctx, func() ([]string, error) {
		paths, err := c.transport.ListPaths(ctx)
		if errors.Is(err, ErrUnexpectedStatus) || errors.Is(err, ErrMalformedResponse) {
			return nil, backoff.Permanent(err)
		}
		return paths, err
	}, backoff.WithBackOff(eb), backoff.WithMaxTries(c.discoveryTries))
}

// Call invokes the function named by nameOrPath, a full owner/name path or a
// bare name owned by main. The path is checked against discovery first, so
// an unknown function fails without a call being sent.
//
// An error is returned only when no Outcome could be produced: unknown
// function, transport failure, or an unparsable reply.
func (c *Client) Call(ctx context.Context, nameOrPath string, args map[string]any) (*Outcome, error) {
	path := api.NormalizePath(nameOrPath)
	if _, _, ok := api.SplitPath(path); !ok {
		return nil, errors.Wrapf(ErrUnknownFunction, "%q", nameOrPath)
	}
	paths, err := c.Discover(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "discovering functions")
	}
	if !slices.Contains(paths, path) {
		return nil, errors.Wrapf(ErrUnknownFunction, "%s", path)
	}

	if args == nil {
		args = map[string]any{}
	}
	resp, err := c.transport.Call(ctx, path, &api.CallRequest{Args: args}, c.credential)
	if err != nil {
		return nil, err
	}
	return c.interpret(path, resp)
}

func (c *Client) interpret(path string, resp *Response) (*Outcome, error) {
	cd := c.codec
	if resp.Codec != "" && resp.Codec != cd.Name() {
		found, err := codec.Lookup(resp.Codec)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "%s replied with codec %q", path, resp.Codec), ErrCodecMismatch)
		}
		cd = found
	}

	outcome := &Outcome{Path: path, StatusCode: resp.StatusCode, codec: cd}
	var env api.CallResult
	parseErr := json.Unmarshal(resp.Body, &env)
	malformed := func(format string, args ...any) error {
		return errors.Mark(errors.Newf("%s: "+format, append([]any{path}, args...)...), ErrMalformedResponse)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if parseErr != nil {
			return nil, malformed("unparsable envelope: %v", parseErr)
		}
		if env.Status != api.StatusSuccess {
			return nil, malformed("status %d in a 200 reply", env.Status)
		}
		payload, err := base64.StdEncoding.DecodeString(env.Result)
		if err != nil {
			return nil, malformed("result is not base64: %v", err)
		}
		var value any
		if err := cd.Decode(payload, &value); err != nil {
			return nil, malformed("undecodable result: %v", err)
		}
		outcome.Kind = Success
		outcome.Value = value
		outcome.payload = payload

	case http.StatusBadRequest:
		if parseErr != nil {
			return nil, malformed("unparsable envelope: %v", parseErr)
		}
		outcome.Kind = CallerError
		outcome.Message = env.Exception

	case http.StatusInternalServerError:
		if parseErr != nil {
			return nil, malformed("unparsable envelope: %v", parseErr)
		}
		var trace string
		if err := codec.DecodeString(cd, env.Exception, &trace); err != nil {
			return nil, malformed("undecodable trace: %v", err)
		}
		outcome.Kind = CalleeException
		outcome.Trace = trace

	case http.StatusForbidden, http.StatusNotFound:
		outcome.Kind = Forbidden
		if resp.StatusCode == http.StatusNotFound {
			outcome.Kind = NotFound
		}
		outcome.Message = http.StatusText(resp.StatusCode)
		if parseErr == nil && env.Exception != "" {
			outcome.Message = env.Exception
		}

	default:
		return nil, errors.Wrapf(ErrUnexpectedStatus, "%s: %d", path, resp.StatusCode)
	}
	return outcome, nil
}
