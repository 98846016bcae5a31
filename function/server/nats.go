// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cockroachdb/errors"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/confighub/remotefunc/function/api"
	"github.com/confighub/remotefunc/function/handler"
)

// DefaultNATSPrefix is the subject prefix of the NATS binding.
const DefaultNATSPrefix = "remotefunc"

// NATSServer answers discovery on <prefix>.functions and calls on
// <prefix>.function.<owner>.<name>, with the same bodies as the HTTP binding.
// The HTTP-equivalent status travels in the Status-Code header.
type NATSServer struct {
	nc     *nats.Conn
	fh     *handler.FunctionHandler
	prefix string
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	subs   []*nats.Subscription
}

// ConnectNATS connects to url, retrying with exponential backoff until ctx ends
// or maxTries attempts fail.
func ConnectNATS(ctx context.Context, url, name string, maxTries uint) (*nats.Conn, error) {
	logger := FromContext(ctx).Named("nats")
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     500 * time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         10 * time.Second,
	}
	nc, err := backoff.Retry(ctx, func() (*nats.Conn, error) {
		nc, err := nats.Connect(url,
			nats.Name(name),
			nats.Timeout(10*time.Second),
			nats.ReconnectWait(2*time.Second),
			nats.MaxReconnects(60),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("reconnected", zap.String("url", nc.ConnectedUrl()))
			}),
		)
		if err != nil {
			logger.Warn("connect failed; retrying", zap.String("url", url), zap.Error(err))
		}
		return nc, err
	}, backoff.WithBackOff(eb), backoff.WithMaxTries(maxTries))
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to NATS at %s", url)
	}
	logger.Info("connected", zap.String("url", nc.ConnectedUrl()))
	return nc, nil
}

// ServeNATS subscribes the handler's dispatcher on nc. Calls are load-balanced
// across every server using the same prefix.
func ServeNATS(ctx context.Context, nc *nats.Conn, prefix string, fh *handler.FunctionHandler) (*NATSServer, error) {
	if prefix == "" {
		prefix = DefaultNATSPrefix
	}
	s := &NATSServer{
		nc:     nc,
		fh:     fh,
		prefix: prefix,
		logger: FromContext(ctx).Named("nats"),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	listSub, err := nc.Subscribe(prefix+".functions", s.handleList)
	if err != nil {
		s.cancel()
		return nil, errors.Wrap(err, "subscribing to discovery")
	}
	s.subs = append(s.subs, listSub)

	callSub, err := nc.QueueSubscribe(prefix+".function.*.*", prefix, func(msg *nats.Msg) {
		// Message callbacks are serialized per subscription; calls must not
		// wait on each other.
		go s.handleCall(msg)
	})
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "subscribing to calls")
	}
	s.subs = append(s.subs, callSub)
	s.logger.Info("serving functions over NATS", zap.String("prefix", prefix))
	return s, nil
}

func (s *NATSServer) handleList(msg *nats.Msg) {
	data, err := json.Marshal(s.fh.Dispatcher().Registry().ListPaths())
	if err != nil {
		s.logger.Error("encoding function list", zap.Error(err))
		return
	}
	s.respond(msg, http.StatusOK, data)
}

func (s *NATSServer) handleCall(msg *nats.Msg) {
	owner, name, ok := strings.Cut(strings.TrimPrefix(msg.Subject, s.prefix+".function."), ".")
	if !ok {
		s.respondEnvelope(msg, http.StatusNotFound, &api.CallResult{
			Status: api.StatusCallerError, Exception: "function not found: " + msg.Subject,
		})
		return
	}
	req, err := api.DecodeCallRequest(msg.Data)
	if err != nil {
		s.respondEnvelope(msg, http.StatusBadRequest, &api.CallResult{Status: api.StatusCallerError, Exception: err.Error()})
		return
	}
	credential := ""
	if msg.Header != nil {
		credential = msg.Header.Get(api.HeaderAuthorization)
	}
	outcome := s.fh.Dispatcher().Dispatch(s.ctx, api.JoinPath(owner, name), req.Args, credential)
	status, envelope := outcome.Render(s.fh.Codec())
	s.respondEnvelope(msg, status, envelope)
}

func (s *NATSServer) respondEnvelope(msg *nats.Msg, status int, envelope *api.CallResult) {
	data, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Error("encoding envelope", zap.Error(err))
		return
	}
	s.respond(msg, status, data)
}

func (s *NATSServer) respond(msg *nats.Msg, status int, data []byte) {
	reply := &nats.Msg{
		Subject: msg.Reply,
		Header: nats.Header{
			api.HeaderStatusCode: []string{strconv.Itoa(status)},
			api.HeaderCodec:      []string{s.fh.Codec().Name()},
		},
		Data: data,
	}
	if err := msg.RespondMsg(reply); err != nil {
		s.logger.Warn("unable to reply", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

// Close unsubscribes and abandons calls still in flight.
func (s *NATSServer) Close() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	s.cancel()
}
