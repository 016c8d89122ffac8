// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package config loads terraplug configuration from a YAML file overlaid
// by command line flags.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/terraplug/terraplug/internal/logging"
	"github.com/terraplug/terraplug/internal/xdg"
)

// Keys shared by the config file and the flags.
const (
	KeyPluginsDir  = "plugins-dir"
	KeyPatterns    = "patterns"
	KeySearchPaths = "search-paths"
	KeyHostName    = "host-name"
	KeyHostVersion = "host-version"
	KeyLoadTimeout = "load-timeout"
	KeyLogFormat   = "log-format"
	KeyLogLevel    = "log-level"
	KeyMetricsAddr = "metrics-addr"
	KeyNoStart     = "no-start"
)

// CodeInvalidConfig is the error code of configuration errors.
const CodeInvalidConfig = "INVALID_CONFIG"

// Defaults.
const (
	DefaultHostName    = "terraplug"
	DefaultLoadTimeout = 30 * time.Second
	DefaultLogFormat   = logging.FormatJSON
	DefaultLogLevel    = "info"
	DefaultMetricsAddr = "127.0.0.1:9110"
)

// DefaultPatterns are the descriptor file globs searched for by default.
var DefaultPatterns = []string{"*.teplg.json", "*.teplg.yaml", "plugin.json", "plugin.yaml"}

// Config is the resolved configuration.
type Config struct {
	PluginsDir  string        `koanf:"plugins-dir"`
	Patterns    []string      `koanf:"patterns"`
	SearchPaths []string      `koanf:"search-paths"`
	HostName    string        `koanf:"host-name"`
	HostVersion string        `koanf:"host-version"`
	LoadTimeout time.Duration `koanf:"load-timeout"`
	LogFormat   string        `koanf:"log-format"`
	LogLevel    string        `koanf:"log-level"`
	MetricsAddr string        `koanf:"metrics-addr"`
	NoStart     bool          `koanf:"no-start"`
}

// RegisterFlags adds every configuration flag with its default to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	pluginsDir, err := xdg.PluginsDir()
	if err != nil {
		pluginsDir = "plugins"
	}
	flags.String(KeyPluginsDir, pluginsDir, "directory searched for plugin descriptors")
	flags.StringSlice(KeyPatterns, DefaultPatterns, "descriptor file name globs")
	flags.StringSlice(KeySearchPaths, nil, "extra directories searched for plugin libraries")
	flags.String(KeyHostName, DefaultHostName, "host application name plugins are checked against")
	flags.String(KeyHostVersion, "", "host application version plugins are checked against")
	flags.Duration(KeyLoadTimeout, DefaultLoadTimeout, "time allowed for loading one plugin (0 = unlimited)")
	flags.String(KeyLogFormat, DefaultLogFormat, "log format (json or text)")
	flags.String(KeyLogLevel, DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String(KeyMetricsAddr, DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.Bool(KeyNoStart, false, "load plugins without starting them")
}

// Load reads path (when non-empty) and overlays flags. Flags the user did
// not set only fill keys the file leaves unset. A missing file is an error
// only when explicit is true.
func Load(path string, explicit bool, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, oops.Code(CodeInvalidConfig).With("path", path).Wrapf(err, "failed to read config file")
			}
		case explicit || !errors.Is(err, fs.ErrNotExist):
			return nil, oops.Code(CodeInvalidConfig).With("path", path).Wrapf(err, "failed to read config file")
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code(CodeInvalidConfig).Wrapf(err, "failed to read flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code(CodeInvalidConfig).Wrapf(err, "failed to decode config")
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	errb := oops.Code(CodeInvalidConfig)

	if strings.TrimSpace(c.PluginsDir) == "" {
		return errb.Errorf("%s is required", KeyPluginsDir)
	}
	if len(c.Patterns) == 0 {
		return errb.Errorf("%s must list at least one pattern", KeyPatterns)
	}
	for _, p := range c.Patterns {
		if _, err := glob.Compile(p, '/'); err != nil {
			return errb.With("pattern", p).Wrapf(err, "invalid pattern %q", p)
		}
	}
	if c.LoadTimeout < 0 {
		return errb.Errorf("%s cannot be negative", KeyLoadTimeout)
	}
	if c.LogFormat != logging.FormatJSON && c.LogFormat != logging.FormatText {
		return errb.Errorf("%s must be 'json' or 'text', got %q", KeyLogFormat, c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return errb.Wrap(err)
	}
	return nil
}
