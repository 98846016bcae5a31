// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package handler

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func add(a, b int) int {
	return a + b
}

func scale(value float64, factor float64) float64 {
	return value * factor
}

func ping() string {
	return "pong"
}

func fail(message string) error {
	return errors.Newf("fail: %s", message)
}

func explode() int {
	var m map[string]int
	m["boom"]++
	return 0
}

func join(ctx context.Context, words []string, sep string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.Join(words, sep), nil
}

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

func newTestDispatcher(t *testing.T, opts ...DispatcherOption) (*Registry, *Dispatcher) {
	t.Helper()
	registry := NewRegistry(nil)
	d := NewDispatcher(registry, opts...)
	t.Cleanup(d.Close)
	return registry, d
}

func mustRegister(t *testing.T, registry *Registry, fn any, params []string, opts ...RegisterOption) *Registration {
	t.Helper()
	reg, err := registry.RegisterFunc(fn, params, opts...)
	require.NoError(t, err)
	return reg
}
