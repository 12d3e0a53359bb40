// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/plexreshare/internal/domain"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "TRACE", want: zerolog.TraceLevel},
		{in: "debug", want: zerolog.DebugLevel},
		{in: " WARN ", want: zerolog.WarnLevel},
		{in: "ERROR", want: zerolog.ErrorLevel},
		{in: "INFO", want: zerolog.InfoLevel},
		{in: "", want: zerolog.InfoLevel},
		{in: "bogus", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

// Setup mutates global logger state, so these tests do not run in parallel.
func TestSetup_WritesRotatedFile(t *testing.T) {
	oldLogger, oldLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = oldLogger
		zerolog.SetGlobalLevel(oldLevel)
	})

	dir := t.TempDir()
	var stdout bytes.Buffer
	closer, err := setup(&domain.Config{
		LogLevel:      "DEBUG",
		LogPath:       "log/plexreshare.log",
		LogMaxSize:    1,
		LogMaxBackups: 1,
		DataDir:       dir,
	}, &stdout)
	require.NoError(t, err)

	log.Debug().Str("node", "abc").Msg("reshare: hello")
	require.NoError(t, closer.Close())

	content, err := os.ReadFile(filepath.Join(dir, "log", "plexreshare.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), `"node":"abc"`)
	assert.Contains(t, string(content), `"message":"reshare: hello"`)
	assert.Contains(t, stdout.String(), "reshare: hello")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestSetup_StdoutOnly(t *testing.T) {
	oldLogger, oldLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = oldLogger
		zerolog.SetGlobalLevel(oldLevel)
	})

	var stdout bytes.Buffer
	closer, err := setup(&domain.Config{LogLevel: "WARN"}, &stdout)
	require.NoError(t, err)
	require.NotNil(t, closer)

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	assert.NotContains(t, stdout.String(), "hidden")
	assert.Contains(t, stdout.String(), "shown")
	assert.NoError(t, closer.Close())
}
