// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kelseyhightower/envconfig"

	"github.com/confighub/remotefunc/function"
	"github.com/confighub/remotefunc/function/codec"
)

const envPrefix = "REMOTEFUNC"

// Config is read from REMOTEFUNC_* environment variables.
type Config struct {
	Port          string `envconfig:"PORT" default:"9080"`
	LocalhostOnly bool   `envconfig:"LOCALHOST_ONLY" default:"false"`
	// Secret is the default credential; empty leaves functions public.
	Secret string `envconfig:"SECRET"`
	Codec  string `envconfig:"CODEC" default:"cbor"`

	CallTimeout  time.Duration `envconfig:"CALL_TIMEOUT" default:"30s"`
	Workers      int           `envconfig:"WORKERS" default:"50"`
	Queue        int           `envconfig:"QUEUE" default:"500"`
	EnforceTypes bool          `envconfig:"ENFORCE_TYPES" default:"true"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
	LogFile        string `envconfig:"LOG_FILE"`

	// NATSURL enables the NATS binding when set.
	NATSURL    string `envconfig:"NATS_URL"`
	NATSPrefix string `envconfig:"NATS_PREFIX" default:"remotefunc"`

	ShutdownGrace time.Duration `envconfig:"SHUTDOWN_GRACE" default:"10s"`
}

func loadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process(envPrefix, &c); err != nil {
		return nil, errors.Wrap(err, "reading configuration")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if _, err := codec.Lookup(c.Codec); err != nil {
		return errors.Wrapf(err, "%s_CODEC", envPrefix)
	}
	if c.CallTimeout <= 0 {
		return errors.Newf("%s_CALL_TIMEOUT must be positive", envPrefix)
	}
	if c.Workers <= 0 || c.Queue < 0 {
		return errors.Newf("%s_WORKERS must be positive and %s_QUEUE not negative", envPrefix, envPrefix)
	}
	return nil
}

func (c *Config) executorOptions() function.Options {
	return function.Options{
		Secret:                 c.Secret,
		Codec:                  c.Codec,
		CallTimeout:            c.CallTimeout,
		Workers:                c.Workers,
		Queue:                  c.Queue,
		DisableTypeEnforcement: !c.EnforceTypes,
	}
}
