// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package handler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/alitto/pond"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	DefaultCallTimeout = 30 * time.Second
	DefaultMaxWorkers  = 50
	DefaultMaxQueue    = 500
)

type dispatcherConfig struct {
	auth       *AuthConfig
	timeout    time.Duration
	maxWorkers int
	maxQueue   int
	logger     *zap.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*dispatcherConfig)

// WithSecret sets the secret every function requires unless its registration
// has its own. An empty secret disables authorization.
func WithSecret(secret string) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.auth = NewAuthConfig(secret)
	}
}

// WithCallTimeout bounds each invocation. Zero means no bound.
func WithCallTimeout(timeout time.Duration) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.timeout = timeout
	}
}

// WithWorkers sizes the pool that runs invocations.
func WithWorkers(maxWorkers, maxQueue int) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.maxWorkers = maxWorkers
		c.maxQueue = maxQueue
	}
}

func WithLogger(logger *zap.Logger) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.logger = logger
	}
}

// Dispatcher runs calls against a Registry: authorization, resolution,
// argument validation, then invocation on a worker pool. It never lets a
// callee failure escape as a Go error or panic.
type Dispatcher struct {
	registry *Registry
	auth     *AuthConfig
	timeout  time.Duration
	pool     *pond.WorkerPool
	logger   *zap.Logger
	metrics  *dispatchMetrics
}

func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	cfg := dispatcherConfig{
		timeout:    DefaultCallTimeout,
		maxWorkers: DefaultMaxWorkers,
		maxQueue:   DefaultMaxQueue,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	logger := cfg.logger.Named("dispatcher")
	return &Dispatcher{
		registry: registry,
		auth:     cfg.auth,
		timeout:  cfg.timeout,
		pool:     pond.New(cfg.maxWorkers, cfg.maxQueue),
		logger:   logger,
		metrics:  newDispatchMetrics(logger),
	}
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Auth returns the default authorization config, nil when none is required.
func (d *Dispatcher) Auth() *AuthConfig {
	return d.auth
}

// Close stops accepting calls and waits for running invocations.
func (d *Dispatcher) Close() {
	d.pool.StopAndWait()
}

// Dispatch runs one call. The credential is checked against the function's
// own secret, or the dispatcher's when it has none, before anything else, so
// an unauthorized caller cannot tell whether a path exists.
func (d *Dispatcher) Dispatch(ctx context.Context, path string, args Arguments, credential string) *Outcome {
	start := time.Now()
	o := d.dispatch(ctx, path, args, credential)
	o.Path = path
	o.Duration = time.Since(start)

	d.metrics.record(ctx, o)
	fields := []zap.Field{
		zap.String("path", path),
		zap.Stringer("outcome", o.Kind),
		zap.Duration("duration", o.Duration),
	}
	switch o.Kind {
	case OutcomeCalleeException:
		d.logger.Warn("call raised", append(fields, zap.String("error", o.Message))...)
	case OutcomeSuccess:
		d.logger.Debug("call completed", fields...)
	default:
		d.logger.Info("call rejected", append(fields, zap.String("reason", o.Message))...)
	}
	return o
}

func (d *Dispatcher) dispatch(ctx context.Context, path string, args Arguments, credential string) *Outcome {
	reg, found := d.registry.Resolve(path)
	auth := d.auth
	if found && reg.Auth != nil {
		auth = reg.Auth
	}
	if !Authorize(credential, auth) {
		return &Outcome{Kind: OutcomeForbidden, Message: ForbiddenMessage}
	}
	if !found {
		return &Outcome{Kind: OutcomeNotFound, Message: "function not found: " + path}
	}
	if args == nil {
		args = Arguments{}
	}

	if len(reg.Parameters) > 0 {
		if res := CheckPresence(reg.FunctionName, reg.Parameters, args); !res.Valid {
			return &Outcome{Kind: OutcomeCallerError, Message: res.Message}
		}
		if reg.EnforceTypes {
			if res := CheckTypes(reg.Parameters, args); !res.Valid {
				return &Outcome{Kind: OutcomeCallerError, Message: res.Message}
			}
		}
	}

	r := d.invoke(ctx, reg, args)
	if r.err != nil {
		return &Outcome{Kind: OutcomeCalleeException, Message: r.err.Error(), Trace: formatTrace(reg, r)}
	}
	return &Outcome{Kind: OutcomeSuccess, Value: r.value}
}

type callResult struct {
	value any
	err   error
	stack []byte
}

// ErrSaturated marks a call rejected because every worker is busy and the
// queue is full.
var ErrSaturated = errors.New("dispatcher saturated")

// invoke runs the implementation on the pool and waits for it, the caller's
// context, or the call timeout. A call is never queued behind a full pool,
// and a queued call whose context ended before a worker picked it up is
// skipped. A callee that outlives its timeout keeps its worker until it
// returns.
func (d *Dispatcher) invoke(ctx context.Context, reg *Registration, args Arguments) callResult {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if d.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
	}
	defer cancel()

	done := make(chan callResult, 1)
	submitted, err := d.submit(func() {
		if callCtx.Err() != nil {
			return
		}
		done <- call(callCtx, reg, args)
	})
	if err != nil {
		return callResult{err: err}
	}
	if !submitted {
		return callResult{err: errors.Wrapf(ErrSaturated, "%s not started: %d calls running and %d waiting",
			reg.Path, d.pool.RunningWorkers(), d.pool.WaitingTasks())}
	}

	select {
	case r := <-done:
		return r
	case <-callCtx.Done():
		err := callCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return callResult{err: errors.Wrapf(err, "%s exceeded the call timeout of %s", reg.Path, d.timeout)}
		}
		return callResult{err: errors.Wrapf(err, "%s abandoned by the caller", reg.Path)}
	}
}

// submit hands task to the pool without blocking. It reports false when the
// pool has no idle worker and no room in its queue.
func (d *Dispatcher) submit(task func()) (submitted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("dispatcher is closed: %v", r)
		}
	}()
	if d.pool.Stopped() {
		return false, errors.New("dispatcher is closed")
	}
	return d.pool.TrySubmit(task), nil
}

func call(ctx context.Context, reg *Registration, args Arguments) (r callResult) {
	defer func() {
		if p := recover(); p != nil {
			r = callResult{err: errors.Newf("panic in %s: %v", reg.Path, p), stack: debug.Stack()}
		}
	}()
	v, err := reg.Implementation(ctx, args)
	return callResult{value: v, err: err}
}

func formatTrace(reg *Registration, r callResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Traceback (calling %s):\n", reg.Path)
	fmt.Fprintf(&b, "%+v\n", r.err)
	if len(r.stack) > 0 {
		b.WriteString("\n")
		b.Write(r.stack)
	}
	return b.String()
}
