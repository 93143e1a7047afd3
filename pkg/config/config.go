// Package config loads the pidrive INI configuration.
package config

import (
	"os"
	"path/filepath"

	"github.com/gookit/ini/v2"

	defs "pidrive/definitions"
	log "pidrive/logger"
	"pidrive/pkg/utils"
)

// System holds device-wide behavior switches.
type System struct {
	// AutoFstrim issues a best-effort fstrim on every partition
	// mounted during state restore.
	AutoFstrim bool
}

// Tracing holds the optional OTLP exporter settings.
type Tracing struct {
	Enabled  bool
	Endpoint string
	Insecure bool
}

type Config struct {
	Log     log.Config
	System  System
	Tracing Tracing

	// rename maps a logical volume name to its display label.
	rename map[string]string
}

// Default returns a Config with everything off and no rename table.
func Default() *Config {
	return &Config{rename: map[string]string{}}
}

// Discover resolves the config file path: env override first, then the
// default location. An empty string means no config file is present.
func Discover() string {
	if override := os.Getenv(defs.ConfEnv); override != "" {
		return override
	}
	path := filepath.Join(defs.ConfDir, defs.DefaultConf)
	if utils.FileExist(path) {
		return path
	}
	return ""
}

// Load parses the INI file at path. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	parser := ini.New()
	if err := parser.LoadFiles(path); err != nil {
		return nil, err
	}

	cfg.Log.Level = parser.String("log.level")
	cfg.Log.Format = parser.String("log.format")
	cfg.Log.Output = parser.String("log.output")
	cfg.Log.Debug = parser.Bool("log.debug", false)

	cfg.System.AutoFstrim = parser.Bool("system.auto_fstrim", false)

	cfg.Tracing.Enabled = parser.Bool("tracing.enabled", false)
	cfg.Tracing.Endpoint = parser.String("tracing.endpoint")
	cfg.Tracing.Insecure = parser.Bool("tracing.insecure", true)

	if renames := parser.StringMap("display"); len(renames) > 0 {
		cfg.rename = renames
	}

	return cfg, nil
}

// TranslateName maps a volume name to its user-facing display label.
// Names without a rename entry pass through unchanged.
func (c *Config) TranslateName(name string) string {
	if c == nil || c.rename == nil {
		return name
	}
	if label, ok := c.rename[name]; ok && label != "" {
		return label
	}
	return name
}

// SetRename overrides one display label. Used by tests and by the
// settings menu when the user renames a drive.
func (c *Config) SetRename(name, label string) {
	if c.rename == nil {
		c.rename = map[string]string{}
	}
	c.rename[name] = label
}
