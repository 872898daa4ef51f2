// Package config resolves kiosk settings from flags, the environment and an
// optional config file, in that order of priority.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/kiosk/internal/dialect"
	"github.com/roach88/kiosk/internal/logging"
	"github.com/roach88/kiosk/internal/store"
)

// EnvPrefix prefixes every environment variable: --max-open-conns is read
// from KIOSK_MAX_OPEN_CONNS.
const EnvPrefix = "KIOSK"

// Output formats of the CLI.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds every setting. Each field is backed by one flag.
type Config struct {
	ConfigFile   string
	Dialect      string
	DSN          string
	MaxOpenConns int
	LogLevel     string
	LogFormat    string
	Format       string
	Verbose      bool
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Dialect:      dialect.SQLite,
		DSN:          "kiosk.db",
		MaxOpenConns: 10,
		LogLevel:     "info",
		LogFormat:    logging.FormatJSON,
		Format:       FormatText,
	}
}

// RegisterFlags defines one flag per setting on flags, pointing at c.
// The current values of c become the flag defaults.
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&c.ConfigFile, "config", "c", c.ConfigFile, "config file (toml, yaml or json)")
	flags.StringVar(&c.Dialect, "dialect", c.Dialect, "database dialect (sqlite|postgres|mysql)")
	flags.StringVar(&c.DSN, "dsn", c.DSN, "database DSN or SQLite file path")
	flags.IntVar(&c.MaxOpenConns, "max-open-conns", c.MaxOpenConns, "connection pool size (SQLite always uses 1)")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug|info|warn|error)")
	flags.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format (json|console)")
	flags.StringVar(&c.Format, "format", c.Format, "output format (text|json)")
	flags.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "verbose output")
}

// Load fills every flag that was not set on the command line from the
// environment, then from the config file named by --config. Keys in the
// config file that match no flag are an error.
func Load(flags *pflag.FlagSet) error {
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	validKeys := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) {
		validKeys[f.Name] = true
	})

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %q: %w", file, err)
		}
		for _, key := range v.AllKeys() {
			if !validKeys[key] {
				return fmt.Errorf("invalid option in config file: %v", key)
			}
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}
		if err := f.Value.Set(v.GetString(f.Name)); err != nil {
			flagErr = fmt.Errorf("option %s: %w", f.Name, err)
		}
	})
	return flagErr
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if _, err := dialect.ForName(c.Dialect); err != nil {
		return err
	}
	switch c.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("invalid format %q: must be %s or %s", c.Format, FormatText, FormatJSON)
	}
	if c.MaxOpenConns < 0 {
		return fmt.Errorf("max-open-conns must not be negative")
	}
	return nil
}

// StoreOptions returns the store settings.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Dialect:      c.Dialect,
		DSN:          c.DSN,
		MaxOpenConns: c.MaxOpenConns,
	}
}
