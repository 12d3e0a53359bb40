// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"text/template"
	"unicode"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/internal/ignorestore"
)

const (
	appName   = "plexreshare"
	envPrefix = "PLEXRESHARE__"
)

var configTemplate = `# config.toml - Auto-generated on first run

# Plex account token used for resource discovery
# Required
plexToken = "{{ .plexToken }}"

# Redis holding the queue and the published tree
redisHost = "{{ .redisHost }}"
redisPort = {{ .redisPort }}
#redisDb = 0
#redisPassword = ""

# Directory for the ignore store and the persisted client identifier
# Default: next to this file
#dataDir = ""

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/plexreshare.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: 50
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
# Default: 3
#logMaxBackups = 3

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "{{ .logLevel }}"

# Crawl shared servers you own as well
#includeOwned = false

# Playlist on owned servers listing files that must never be published
#ignorePlaylist = ""

# Daily publish cap: (days since dateStart) * filesPerDay items per reconcile
#dateStart = ""
#filesPerDay = 25

# Number of concurrent queue workers
#workerConcurrency = {{ .workerConcurrency }}

# Prometheus metrics
#metricsEnabled = false
#metricsHost = "127.0.0.1"
#metricsPort = 9074
# Comma separated user:password pairs
#metricsBasicAuthUsers = ""
`

type AppConfig struct {
	Config *domain.Config
	viper  *viper.Viper
	path   string
}

// New loads defaults, then the TOML file at configPath, then PLEXRESHARE__ env vars.
// configPath may be a directory or empty; a missing file is created from the template.
func New(configPath string) (*AppConfig, error) {
	c := &AppConfig{
		Config: &domain.Config{},
		viper:  viper.New(),
	}

	c.defaults()

	if err := c.load(configPath); err != nil {
		return nil, err
	}

	c.loadFromEnv()

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal config")
	}

	c.hydrate()

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("dataDir", "")

	c.viper.SetDefault("redisHost", "localhost")
	c.viper.SetDefault("redisPort", 6379)
	c.viper.SetDefault("redisDb", 0)
	c.viper.SetDefault("redisPassword", "")

	c.viper.SetDefault("plexToken", "")
	c.viper.SetDefault("plexTimeout", 15)
	c.viper.SetDefault("plexRequestsPerSec", 2.0)
	c.viper.SetDefault("includeOwned", false)
	c.viper.SetDefault("ignorePlaylist", "")

	c.viper.SetDefault("refreshInterval", 3*60*60)
	c.viper.SetDefault("pathTtl", 24*60*60)
	c.viper.SetDefault("hashTtl", 60*60)
	c.viper.SetDefault("discoveryJitterMax", 60)

	c.viper.SetDefault("dateStart", "")
	c.viper.SetDefault("filesPerDay", 25)

	c.viper.SetDefault("workerConcurrency", 4)

	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9074)
	c.viper.SetDefault("metricsBasicAuthUsers", "")
}

func (c *AppConfig) load(configPath string) error {
	c.viper.SetConfigType("toml")

	path, err := resolveConfigPath(configPath)
	if err != nil {
		return err
	}
	c.path = path

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := c.writeDefaultConfig(path); err != nil {
			return err
		}
	}

	c.viper.SetConfigFile(path)
	if err := c.viper.ReadInConfig(); err != nil {
		return pkgerrors.Wrapf(err, "failed to read config %s", path)
	}

	log.Debug().Str("path", path).Msg("config: loaded config file")
	return nil
}

func resolveConfigPath(configPath string) (string, error) {
	if configPath == "" {
		return filepath.Join(getDefaultConfigDir(), "config.toml"), nil
	}

	info, err := os.Stat(configPath)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(configPath, "config.toml"), nil
	case err == nil, errors.Is(err, os.ErrNotExist):
		if filepath.Ext(configPath) == "" {
			return filepath.Join(configPath, "config.toml"), nil
		}
		return configPath, nil
	default:
		return "", pkgerrors.Wrapf(err, "failed to stat config path %s", configPath)
	}
}

func (c *AppConfig) writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create config directory for %s", path)
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to parse config template")
	}

	var buf bytes.Buffer
	data := map[string]any{
		"plexToken":         c.viper.GetString("plexToken"),
		"redisHost":         c.viper.GetString("redisHost"),
		"redisPort":         c.viper.GetInt("redisPort"),
		"logLevel":          c.viper.GetString("logLevel"),
		"workerConcurrency": c.viper.GetInt("workerConcurrency"),
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return pkgerrors.Wrap(err, "failed to render config template")
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return pkgerrors.Wrapf(err, "failed to write config %s", path)
	}

	log.Info().Str("path", path).Msg("config: created default config file")
	return nil
}

// loadFromEnv binds every known key to PLEXRESHARE__UPPER_SNAKE.
func (c *AppConfig) loadFromEnv() {
	for _, key := range tagsByLowerKey {
		_ = c.viper.BindEnv(key, envName(key))
	}
}

// envName maps a camelCase key such as plexRequestsPerSec to PLEXRESHARE__PLEX_REQUESTS_PER_SEC.
// Lower-cased keys are mapped back to their struct tag first.
func envName(key string) string {
	if tag, ok := tagsByLowerKey[key]; ok {
		key = tag
	}

	var b strings.Builder
	b.WriteString(envPrefix)
	for i, r := range key {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

var tagsByLowerKey = func() map[string]string {
	tags := make(map[string]string)
	t := reflect.TypeOf(domain.Config{})
	for i := range t.NumField() {
		if tag := t.Field(i).Tag.Get("mapstructure"); tag != "" {
			tags[strings.ToLower(tag)] = tag
		}
	}
	return tags
}()

func (c *AppConfig) hydrate() {
	if c.Config.DataDir == "" {
		c.Config.DataDir = filepath.Dir(c.path)
	}
	c.Config.IgnorePlaylistStripPrefixes = dropEmpty(c.Config.IgnorePlaylistStripPrefixes)
	c.Config.IgnoreResolutions = dropEmpty(c.Config.IgnoreResolutions)
	c.Config.IgnoreContainers = dropEmpty(c.Config.IgnoreContainers)
}

func dropEmpty(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Path returns the config file in use.
func (c *AppConfig) Path() string {
	return c.path
}

// GetIgnoreStorePath returns the SQLite file backing the ignore set.
func (c *AppConfig) GetIgnoreStorePath() string {
	return filepath.Join(c.Config.DataDir, ignorestore.FileName)
}

// getDefaultConfigDir honours XDG_CONFIG_HOME=/config as used by the container image.
func getDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg == "/config" {
		return xdg
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		log.Warn().Err(err).Msg("config: could not determine user config dir, using working directory")
		return "."
	}
	return filepath.Join(dir, appName)
}

func (c *AppConfig) String() string {
	return fmt.Sprintf("config{path=%s dataDir=%s redis=%s plexToken=%s}",
		c.path, c.Config.DataDir, c.Config.RedisAddr(), domain.RedactString(c.Config.PlexToken))
}
