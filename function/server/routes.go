// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package server

import (
	"net/http"
	"os"
	"runtime"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/confighub/remotefunc/function/api"
	"github.com/confighub/remotefunc/function/handler"
)

func echoSetup(rootRouter *echo.Echo, cfg Config, fh *handler.FunctionHandler) {
	rootRouter.GET("/functions", fh.List)
	rootRouter.POST("/functions/:name", fh.InvokeMain)

	apiRouter := rootRouter.Group("/function")
	setupAPIRootAPI(apiRouter, cfg, fh)
	apiRouter.POST("/:owner/:name", fh.Invoke)

	rootRouter.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func setupAPIRootAPI(apiRouter *echo.Group, cfg Config, fh *handler.FunctionHandler) {
	apiRouter.GET("/ok", basicOk())
	apiRouter.GET("/info", infoHandler(cfg, fh))
	if cfg.LocalhostOnly {
		apiRouter.POST("/shutdown", shutdownHandler())
	}
}

func infoHandler(cfg Config, fh *handler.FunctionHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		d := fh.Dispatcher()
		info := api.ServerInfo{
			Version:      cfg.Version,
			Codec:        fh.Codec().Name(),
			Functions:    d.Registry().Len(),
			AuthRequired: d.Auth().Required(),
			Goroutines:   runtime.NumGoroutine(),
		}
		if vmStat, err := mem.VirtualMemory(); err == nil {
			info.TotalMemory = vmStat.Total
			info.AvailableMemory = vmStat.Available
		}
		return c.JSON(http.StatusOK, info) //nolint:wrapcheck // basic return
	}
}

func shutdownHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		process, _ := os.FindProcess(os.Getpid())
		_ = process.Signal(syscall.SIGINT)
		return c.JSON(http.StatusOK, "OK")
	}
}

func basicOk() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, "OK")
	}
}
