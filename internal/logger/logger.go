// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/autobrr/plexreshare/internal/domain"
)

// Setup configures the global logger. Output goes to a colored console writer on stdout
// and, when cfg.LogPath is set, to a rotated JSON log file as well.
// The returned closer flushes the file writer; it is never nil.
func Setup(cfg *domain.Config) (io.Closer, error) {
	return setup(cfg, os.Stdout)
}

func setup(cfg *domain.Config, stdout io.Writer) (io.Closer, error) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(ParseLevel(cfg.LogLevel))

	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        stdout,
		TimeFormat: time.DateTime,
	}}

	var closer io.Closer = nopCloser{}
	if cfg.LogPath != "" {
		path := cfg.LogPath
		if !filepath.IsAbs(path) && cfg.DataDir != "" {
			path = filepath.Join(cfg.DataDir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create log directory for %s", path)
		}

		file := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
		}
		writers = append(writers, file)
		closer = file
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	return closer, nil
}

// ParseLevel maps the configured level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
