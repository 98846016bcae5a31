// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/confighub/remotefunc/function"
	"github.com/confighub/remotefunc/function/server"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

// natsConnectTries bounds the startup connection attempts.
const natsConnectTries = 10

var logger *zap.Logger

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err = function.NewLogger(cfg.LogLevel, cfg.LogDevelopment, cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := server.NewContext(context.Background(), logger)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	grp, ctx := errgroup.WithContext(ctx)

	if err := setupMetrics(); err != nil {
		logger.Fatal("unable to create a prometheus exporter", zap.Error(err))
	}

	opts := cfg.executorOptions()
	opts.Logger = logger
	executor, err := function.NewStandardExecutor(opts)
	if err != nil {
		logger.Fatal("unable to build the executor", zap.Error(err))
	}
	defer executor.Close()
	logger.Info("registered functions", zap.Strings("paths", executor.RegisteredFunctions()))

	httpServer := server.RunServer(ctx, grp, server.Config{
		Port:          cfg.Port,
		LocalhostOnly: cfg.LocalhostOnly,
		Version:       version,
	}, executor.Handler())

	var natsServer *server.NATSServer
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = server.ConnectNATS(ctx, cfg.NATSURL, "functionsrv", natsConnectTries)
		if err != nil {
			logger.Fatal("unable to connect to NATS", zap.Error(err))
		}
		natsServer, err = server.ServeNATS(ctx, nc, cfg.NATSPrefix, executor.Handler())
		if err != nil {
			logger.Fatal("unable to serve over NATS", zap.Error(err))
		}
	}

	handleIntercepts(ctx, grp, cfg, httpServer, natsServer, nc)

	if errGrp := grp.Wait(); errGrp != nil {
		logger.Error("application unexpectedly shut down", zap.Error(errGrp))
		os.Exit(1)
	}

	logger.Info("application gracefully shut down")
}

func setupMetrics() error {
	exporter, err := prometheus.New()
	if err != nil {
		return errors.WithStack(err)
	}
	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("remotefunc"),
			semconv.ServiceVersionKey.String(version),
		)),
	)
	otel.SetMeterProvider(provider)
	return nil
}

func interceptSignals(ctx context.Context) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer signal.Stop(sigc)

	select {
	case <-ctx.Done():
	case sig := <-sigc:
		logger.Info("intercepted signal", zap.Stringer("signal", sig))
	}
}

func handleIntercepts(ctx context.Context, grp *errgroup.Group, cfg *Config, httpServer *echo.Echo, natsServer *server.NATSServer, nc *nats.Conn) {
	grp.Go(func() error {
		interceptSignals(ctx)

		go func() {
			interceptSignals(ctx)
			logger.Error("forcibly shutting down on second signal")
			os.Exit(1)
		}()

		// The parent may already be canceled by a failing group member.
		shutdownCtx, shutCancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownGrace)
		defer shutCancel()

		return shutdown(shutdownCtx, httpServer, natsServer, nc)
	})
}

func shutdown(ctx context.Context, httpServer *echo.Echo, natsServer *server.NATSServer, nc *nats.Conn) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	collect := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = errors.Join(errs, err)
		mu.Unlock()
	}

	if httpServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collect(errors.WithStack(httpServer.Shutdown(ctx)))
		}()
	}
	if natsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			natsServer.Close()
			collect(errors.WithStack(nc.Drain()))
		}()
	}

	wg.Wait()
	return errs
}
