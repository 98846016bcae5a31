// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/confighub/remotefunc/function/api"
	"github.com/confighub/remotefunc/function/codec"
	"github.com/confighub/remotefunc/function/handler"
)

const DefaultPort = "9080"

type contextKey struct{}

var loggerKey = contextKey{}

// FromContext extracts the logger from ctx, falling back to a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// NewContext returns a context carrying logger.
func NewContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Config controls the HTTP listener.
type Config struct {
	Port          string
	LocalhostOnly bool
	Version       string
}

func (c Config) bindAddr() string {
	port := c.Port
	if port == "" {
		port = DefaultPort
	}
	addr := ""
	if c.LocalhostOnly {
		addr = "127.0.0.1"
	}
	return addr + ":" + port
}

// RunServer starts the HTTP server in grp and returns it for shutdown.
func RunServer(ctx context.Context, grp *errgroup.Group, cfg Config, fh *handler.FunctionHandler) *echo.Echo {
	logger := FromContext(ctx)
	httpServer := newHTTPServer(ctx, cfg, fh)
	bindAddr := cfg.bindAddr()

	grp.Go(func() error {
		logger.Info("starting HTTP server", zap.String("address", bindAddr))
		err := httpServer.Start(bindAddr)
		// We need to check ErrServerClosed because otherwise it will cause the whole group to be canceled
		// on the first shutdown call.
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server unexpected failure")
		}
		return nil
	})

	return httpServer
}

func newHTTPServer(ctx context.Context, cfg Config, fh *handler.FunctionHandler) *echo.Echo {
	rootRouter := echo.New()
	rootRouter.HideBanner = true
	rootRouter.HidePort = true
	rootRouter.Logger.SetLevel(log.WARN)
	rootRouter.HTTPErrorHandler = envelopeErrorHandler(fh.Codec())
	useGlobalMiddlewares(ctx, rootRouter)

	// Calls are bounded by the dispatcher's timeout; the write timeout leaves
	// room for encoding the result.
	rootRouter.Server.ReadTimeout = time.Second * 30
	rootRouter.Server.WriteTimeout = time.Second * 120
	rootRouter.Server.IdleTimeout = time.Second * 60
	rootRouter.Server.ReadHeaderTimeout = time.Second * 5

	echoSetup(rootRouter, cfg, fh)

	return rootRouter
}

// NewTestHTTPRouter returns a router with the routes and error handling of the
// server but no middlewares.
func NewTestHTTPRouter(fh *handler.FunctionHandler) *echo.Echo {
	rootRouter := echo.New()
	rootRouter.HTTPErrorHandler = envelopeErrorHandler(fh.Codec())
	echoSetup(rootRouter, Config{Version: "test"}, fh)
	return rootRouter
}

func useGlobalMiddlewares(ctx context.Context, router *echo.Echo) {
	logger := FromContext(ctx).Named("http")

	router.Use(
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			Generator: uuid.NewString,
		}),
		middleware.Recover(),
		middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogURI:       true,
			LogStatus:    true,
			LogMethod:    true,
			LogLatency:   true,
			LogError:     true,
			LogRequestID: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				fields := []zap.Field{
					zap.String("method", v.Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Duration("latency", v.Latency),
					zap.String("request_id", v.RequestID),
				}
				if v.Error != nil {
					logger.Error("request failed", append(fields, zap.Error(v.Error))...)
				} else {
					logger.Info("request completed", fields...)
				}
				return nil
			},
		}),
	)
}

// envelopeErrorHandler renders every echo error, including unknown routes and
// malformed bodies, in the call envelope shape so clients only parse one form.
func envelopeErrorHandler(c codec.Codec) echo.HTTPErrorHandler {
	return func(err error, ec echo.Context) {
		if ec.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		message := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			message = fmt.Sprint(he.Message)
		}

		env := &api.CallResult{Status: api.StatusCallerError, Exception: message}
		if code >= http.StatusInternalServerError {
			trace, encErr := codec.EncodeString(c, fmt.Sprintf("%+v", err))
			if encErr == nil {
				env = &api.CallResult{Status: api.StatusCalleeException, Exception: trace}
			}
		}
		ec.Response().Header().Set(api.HeaderCodec, c.Name())

		var writeErr error
		if ec.Request().Method == http.MethodHead {
			writeErr = ec.NoContent(code)
		} else {
			writeErr = ec.JSON(code, env)
		}
		if writeErr != nil {
			ec.Logger().Error(writeErr)
		}
	}
}
