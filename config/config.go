// Package config loads the plugin layer's own settings: logging and the
// optional metrics endpoint. Settings come from an optional YAML file named
// by MMIO_CONFIG, overridden by MMIO_* environment variables.
//
// A plugin must load even with a broken configuration, so Load always
// returns a usable Config alongside any error.
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
)

// Environment variables read by Load.
const (
	EnvConfigFile  = "MMIO_CONFIG"
	EnvLogLevel    = "MMIO_LOG_LEVEL"
	EnvLogFormat   = "MMIO_LOG_FORMAT"
	EnvMetricsAddr = "MMIO_METRICS_ADDR"
)

// envKeys maps environment variables to configuration keys.
var envKeys = map[string]string{
	EnvLogLevel:    "log.level",
	EnvLogFormat:   "log.format",
	EnvMetricsAddr: "metrics.addr",
}

// Config is the layer configuration.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `koanf:"addr" validate:"omitempty,hostname_port"`
}

// validate is a package-level singleton; creating a validator per call is expensive.
var validate = validator.New()

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// CodeInvalid is the oops code of every configuration error.
const CodeInvalid = "MMIO_CONFIG_INVALID"

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv(EnvConfigFile), os.LookupEnv)
}

// LoadFrom reads path (if non-empty) and applies overrides from lookup.
// On any error it returns Default() and the error.
func LoadFrom(path string, lookup func(string) (string, bool)) (Config, error) {
	errb := oops.In("config").Code(CodeInvalid)
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Default(), errb.With("path", path).Wrapf(err, "loading config file")
		}
	}

	for env, key := range envKeys {
		if v, ok := lookup(env); ok && v != "" {
			if err := k.Set(key, v); err != nil {
				return Default(), errb.With("env", env).Wrap(err)
			}
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Default(), errb.Wrapf(err, "decoding config")
	}
	if err := validate.Struct(cfg); err != nil {
		return Default(), errb.Wrapf(err, "validating config")
	}
	return cfg, nil
}
