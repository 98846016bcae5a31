// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package handler

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const meterName = "github.com/confighub/remotefunc/function/handler"

type dispatchMetrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// newDispatchMetrics uses the global meter provider, so instruments are no-ops
// until the process installs one.
func newDispatchMetrics(logger *zap.Logger) *dispatchMetrics {
	meter := otel.Meter(meterName)
	calls, err := meter.Int64Counter("remotefunc.calls",
		metric.WithDescription("Function calls by path and outcome"))
	if err != nil {
		logger.Warn("unable to create call counter", zap.Error(err))
	}
	duration, err := meter.Float64Histogram("remotefunc.call.duration",
		metric.WithDescription("Function call duration, including validation"),
		metric.WithUnit("s"))
	if err != nil {
		logger.Warn("unable to create call duration histogram", zap.Error(err))
	}
	return &dispatchMetrics{calls: calls, duration: duration}
}

func (m *dispatchMetrics) record(ctx context.Context, o *Outcome) {
	// Unresolved paths are caller-controlled; keep them out of the label set.
	path := o.Path
	if o.Kind == OutcomeNotFound || o.Kind == OutcomeForbidden {
		path = "-"
	}
	attrs := metric.WithAttributes(
		attribute.String("path", path),
		attribute.String("outcome", o.Kind.String()),
	)
	if m.calls != nil {
		m.calls.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, o.Duration.Seconds(), attrs)
	}
}
