// Package config loads tealoop settings from defaults, a tealoop.toml file,
// TEALOOP_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vito/tealoop/pkg/tea"
)

// EnvPrefix prefixes every environment override, e.g. TEALOOP_WORKERS.
const EnvPrefix = "TEALOOP"

// Config is the effective configuration.
type Config struct {
	Workers    int           `mapstructure:"workers"`
	CPRTimeout time.Duration `mapstructure:"cpr-timeout"`
	EscTimeout time.Duration `mapstructure:"esc-timeout"`
	MinWidth   int           `mapstructure:"min-width"`
	MinHeight  int           `mapstructure:"min-height"`
	LogFile    string        `mapstructure:"log-file"`
	Debug      bool          `mapstructure:"debug"`
	StorePath  string        `mapstructure:"store-path"`

	// File is the configuration file that was read, if any.
	File string `mapstructure:"-"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("workers", 4)
	v.SetDefault("cpr-timeout", tea.DefaultCursorReportTimeout)
	v.SetDefault("esc-timeout", time.Duration(0))
	v.SetDefault("min-width", tea.DefaultMinWidth)
	v.SetDefault("min-height", tea.DefaultMinHeight)
	v.SetDefault("log-file", "")
	v.SetDefault("debug", false)
	v.SetDefault("store-path", "~/.tealoop")
}

// AddFlags registers the flags Load understands on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default ./tealoop.toml or ~/.config/tealoop/tealoop.toml)")
	fs.Int("workers", 4, "maximum number of commands executing at once")
	fs.Duration("cpr-timeout", tea.DefaultCursorReportTimeout, "how long to wait for the cursor position report (0 waits forever)")
	fs.Duration("esc-timeout", 0, "flush an incomplete escape sequence after this long (0 disables)")
	fs.Int("min-width", tea.DefaultMinWidth, "minimum width reported to the model")
	fs.Int("min-height", tea.DefaultMinHeight, "minimum height reported to the model")
	fs.String("log-file", "", "write logs here instead of discarding them")
	fs.Bool("debug", false, "log at debug level")
	fs.String("store-path", "~/.tealoop", "directory for saved scratch buffers")
}

// Load resolves the configuration. fs may be nil; flags it contains that
// were set explicitly override every other source.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigType("toml")
	explicit := os.Getenv(EnvPrefix + "_CONFIG")
	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Changed {
			explicit = f.Value.String()
		}
	}
	if explicit != "" {
		path, err := homedir.Expand(explicit)
		if err != nil {
			return nil, fmt.Errorf("config path: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tealoop")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "tealoop"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	for _, p := range []*string{&cfg.LogFile, &cfg.StorePath} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return &cfg, cfg.Validate()
}

// Validate rejects settings the runtime cannot honour.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	case c.CPRTimeout < 0:
		return fmt.Errorf("cpr-timeout must not be negative, got %s", c.CPRTimeout)
	case c.EscTimeout < 0:
		return fmt.Errorf("esc-timeout must not be negative, got %s", c.EscTimeout)
	case c.MinWidth < 0 || c.MinHeight < 0:
		return fmt.Errorf("minimum size must not be negative, got %dx%d", c.MinWidth, c.MinHeight)
	}
	return nil
}

// ProgramOptions translates the configuration into runtime options.
func (c *Config) ProgramOptions() []tea.Option {
	return []tea.Option{
		tea.WithWorkers(c.Workers),
		tea.WithCursorReportTimeout(c.CPRTimeout),
		tea.WithEscapeTimeout(c.EscTimeout),
		tea.WithMinSize(c.MinWidth, c.MinHeight),
	}
}

// file mirrors Config as it is written to tealoop.toml.
type file struct {
	Workers    int    `toml:"workers"`
	CPRTimeout string `toml:"cpr-timeout"`
	EscTimeout string `toml:"esc-timeout"`
	MinWidth   int    `toml:"min-width"`
	MinHeight  int    `toml:"min-height"`
	LogFile    string `toml:"log-file"`
	Debug      bool   `toml:"debug"`
	StorePath  string `toml:"store-path"`
}

// WriteTOML writes c in the format Load reads.
func (c *Config) WriteTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(file{
		Workers:    c.Workers,
		CPRTimeout: c.CPRTimeout.String(),
		EscTimeout: c.EscTimeout.String(),
		MinWidth:   c.MinWidth,
		MinHeight:  c.MinHeight,
		LogFile:    c.LogFile,
		Debug:      c.Debug,
		StorePath:  c.StorePath,
	})
}
