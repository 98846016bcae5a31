// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package function is the main entry point for serving remote functions.
// It wires a registry, a dispatcher and an HTTP handler together.
//
// Example:
//
//	func main() {
//		executor, err := function.NewEmptyExecutor(function.Options{Secret: "s3cret"})
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer executor.Close()
//		_, err = executor.Register(func(a, b int) int { return a * b }, []string{"a", "b"},
//			handler.WithName("multiply"))
//	}
//
// Once built, the executor's Handler can be served with server.RunServer or
// server.ServeNATS.
package function

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/confighub/remotefunc/function/codec"
	"github.com/confighub/remotefunc/function/handler"
	"github.com/confighub/remotefunc/function/internal/logging"
)

// Options configure an executor. Zero values select the defaults.
type Options struct {
	// Secret is the default credential; empty means calls are not checked.
	Secret      string
	Codec       string
	CallTimeout time.Duration
	Workers     int
	Queue       int
	// DisableTypeEnforcement turns off argument type checks for every
	// registration that does not set WithEnforceTypes itself.
	DisableTypeEnforcement bool
	Logger                 *zap.Logger
}

type FunctionExecutor struct {
	registry   *handler.Registry
	dispatcher *handler.Dispatcher
	handler    *handler.FunctionHandler
}

// NewEmptyExecutor creates a FunctionExecutor with no functions registered.
func NewEmptyExecutor(opts Options) (*FunctionExecutor, error) {
	cd, err := codec.Lookup(opts.Codec)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var defaults []handler.RegisterOption
	if opts.DisableTypeEnforcement {
		defaults = append(defaults, handler.WithEnforceTypes(false))
	}
	registry := handler.NewRegistry(logger, defaults...)

	dispatcherOpts := []handler.DispatcherOption{
		handler.WithSecret(opts.Secret),
		handler.WithLogger(logger),
	}
	if opts.CallTimeout > 0 {
		dispatcherOpts = append(dispatcherOpts, handler.WithCallTimeout(opts.CallTimeout))
	}
	if opts.Workers > 0 || opts.Queue > 0 {
		workers, queue := opts.Workers, opts.Queue
		if workers <= 0 {
			workers = handler.DefaultMaxWorkers
		}
		if queue <= 0 {
			queue = handler.DefaultMaxQueue
		}
		dispatcherOpts = append(dispatcherOpts, handler.WithWorkers(workers, queue))
	}
	dispatcher := handler.NewDispatcher(registry, dispatcherOpts...)

	return &FunctionExecutor{
		registry:   registry,
		dispatcher: dispatcher,
		handler:    handler.NewFunctionHandler(dispatcher, cd),
	}, nil
}

// NewStandardExecutor creates a FunctionExecutor with the built-in functions
// registered.
func NewStandardExecutor(opts Options) (*FunctionExecutor, error) {
	executor, err := NewEmptyExecutor(opts)
	if err != nil {
		return nil, err
	}
	if err := RegisterBuiltins(executor.registry); err != nil {
		executor.Close()
		return nil, err
	}
	return executor, nil
}

// NewLogger builds the process logger: JSON unless development is set, and
// additionally to a rotated file when file is not empty.
func NewLogger(level string, development bool, file string) (*zap.Logger, error) {
	return logging.New(logging.Config{Level: level, Development: development, File: file})
}

// Register binds fn and registers it; see handler.Bind for the accepted shapes.
func (e *FunctionExecutor) Register(fn any, paramNames []string, opts ...handler.RegisterOption) (*handler.Registration, error) {
	return e.registry.RegisterFunc(fn, paramNames, opts...)
}

// RegisterAll registers every exported method of instance.
func (e *FunctionExecutor) RegisterAll(instance any, opts ...handler.RegisterOption) ([]*handler.Registration, error) {
	return e.registry.RegisterAll(instance, opts...)
}

// RegisteredFunctions lists paths in registration order.
func (e *FunctionExecutor) RegisteredFunctions() []string {
	return e.registry.ListPaths()
}

func (e *FunctionExecutor) Invoke(ctx context.Context, path string, args handler.Arguments, credential string) *handler.Outcome {
	return e.dispatcher.Dispatch(ctx, path, args, credential)
}

func (e *FunctionExecutor) Handler() *handler.FunctionHandler {
	return e.handler
}

// Close waits for running calls and stops the worker pool.
func (e *FunctionExecutor) Close() {
	e.dispatcher.Close()
}
