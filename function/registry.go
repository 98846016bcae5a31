// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package function

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/confighub/remotefunc/function/handler"
)

// Add returns a + b.
func Add(a, b int) int {
	return a + b
}

// Echo returns its argument unchanged.
func Echo(value any) any {
	return value
}

// Fail always fails with message.
func Fail(message string) error {
	return errors.New(message)
}

// Sleep waits for the given number of seconds, or until the call is abandoned.
func Sleep(ctx context.Context, seconds float64) (float64, error) {
	start := time.Now()
	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
	case <-ctx.Done():
		return 0, errors.Wrap(ctx.Err(), "sleep interrupted")
	}
	return time.Since(start).Seconds(), nil
}

// Counter is a piece of server-side state exposed as counter/increase and
// counter/value.
type Counter struct {
	mu    sync.Mutex
	count int
}

func (c *Counter) Increase(amount int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count += amount
	return c.count
}

func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *Counter) RemoteParameters() map[string][]string {
	return map[string][]string{"Increase": {"amount"}}
}

// RegisterBuiltins registers the demonstration functions served by functionsrv.
func RegisterBuiltins(r *handler.Registry) error {
	builtins := []struct {
		fn     any
		params []string
		opts   []handler.RegisterOption
	}{
		{Add, []string{"a", "b"}, []handler.RegisterOption{handler.WithDescription("Adds two integers.")}},
		{Echo, []string{"value"}, []handler.RegisterOption{handler.WithDescription("Returns its argument.")}},
		{Fail, []string{"message"}, []handler.RegisterOption{handler.WithDescription("Always raises an exception with the given message.")}},
		// Accepts whole seconds as well as fractions.
		{Sleep, []string{"seconds"}, []handler.RegisterOption{
			handler.WithDescription("Sleeps for the given number of seconds and returns the time slept."),
			handler.WithEnforceTypes(false),
		}},
	}
	for _, b := range builtins {
		if _, err := r.RegisterFunc(b.fn, b.params, b.opts...); err != nil {
			return err
		}
	}
	_, err := r.RegisterAll(&Counter{}, handler.WithDescription("Shared counter."))
	return err
}
