// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/confighub/remotefunc/function/api"
	"github.com/confighub/remotefunc/function/codec"
)

// maxRequestBytes bounds call request bodies.
const maxRequestBytes = 8 << 20

// FunctionHandler binds a Dispatcher to echo routes.
type FunctionHandler struct {
	dispatcher *Dispatcher
	codec      codec.Codec
}

func NewFunctionHandler(dispatcher *Dispatcher, c codec.Codec) *FunctionHandler {
	if c == nil {
		c = codec.Default()
	}
	return &FunctionHandler{dispatcher: dispatcher, codec: c}
}

func (fh *FunctionHandler) Codec() codec.Codec {
	return fh.codec
}

func (fh *FunctionHandler) Dispatcher() *Dispatcher {
	return fh.dispatcher
}

// Invoke serves POST /function/:owner/:name.
func (fh *FunctionHandler) Invoke(c echo.Context) error {
	return fh.invoke(c, api.JoinPath(c.Param("owner"), c.Param("name")))
}

// InvokeMain serves POST /functions/:name, the single-level form for free functions.
func (fh *FunctionHandler) InvokeMain(c echo.Context) error {
	return fh.invoke(c, api.JoinPath(api.MainOwner, c.Param("name")))
}

func (fh *FunctionHandler) invoke(c echo.Context, path string) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxRequestBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest,
			errors.Wrap(err, "unable to read call request").Error())
	}
	req, err := api.DecodeCallRequest(body)
	if err != nil {
		log.Info(err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	credential := c.Request().Header.Get(api.HeaderAuthorization)
	outcome := fh.dispatcher.Dispatch(c.Request().Context(), path, req.Args, credential)
	status, envelope := outcome.Render(fh.codec)
	c.Response().Header().Set(api.HeaderCodec, fh.codec.Name())
	return c.JSON(status, envelope) //nolint:wrapcheck // basic return
}

// List serves GET /functions: the registered paths in registration order, or
// full descriptions with ?details=true.
func (fh *FunctionHandler) List(c echo.Context) error {
	registry := fh.dispatcher.Registry()
	details, _ := strconv.ParseBool(c.QueryParam("details"))
	if !details {
		return c.JSON(http.StatusOK, registry.ListPaths()) //nolint:wrapcheck // basic return
	}
	regs := registry.Registrations()
	infos := make([]api.FunctionInfo, len(regs))
	for i, reg := range regs {
		infos[i] = reg.Info(fh.dispatcher.Auth())
	}
	return c.JSON(http.StatusOK, infos) //nolint:wrapcheck // basic return
}
