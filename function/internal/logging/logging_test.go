// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(Config{Level: "warn"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
}

func TestBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.ErrorContains(t, err, "loud")
}

func TestDevelopmentIsConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(Config{Development: true, Level: "debug"}, &buf)
	require.NoError(t, err)
	logger.Debug("hello")
	assert.Contains(t, buf.String(), "DEBUG")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestFileOutput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "remotefunc.log")
	var buf bytes.Buffer
	logger, err := newLogger(Config{File: file}, &buf)
	require.NoError(t, err)
	logger.Info("to both")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}
