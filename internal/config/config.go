// Package config loads the mathspeak configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/mathspeak/internal/logging"
	"github.com/aretw0/mathspeak/pkg/domain"
)

// Config is the file shape. Zero sections keep their defaults.
type Config struct {
	Domain   string      `yaml:"domain"`
	Style    string      `yaml:"style"`
	MaxDepth int         `yaml:"max_depth"`
	Rules    []string    `yaml:"rules"`
	Builtin  bool        `yaml:"builtin"`
	Cache    CacheConfig `yaml:"cache"`
	Redis    *Redis      `yaml:"redis,omitempty"`
	Log      Log         `yaml:"log"`
	Server   Server      `yaml:"server"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
}

// Redis switches the result cache to a shared Redis instance.
type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Server struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Domain:   domain.DefaultDomain,
		Style:    domain.DefaultStyle,
		MaxDepth: 256,
		Builtin:  true,
		Cache:    CacheConfig{Enabled: true, Size: 4096},
		Log:      Log{Level: "info", Format: "text"},
		Server:   Server{Addr: ":8080", Timeout: 5 * time.Second},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown keys are errors.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Domain == "" {
		errs = append(errs, errors.New("domain must not be empty"))
	}
	if c.Style == "" {
		errs = append(errs, errors.New("style must not be empty"))
	}
	if c.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth))
	}
	if c.Cache.Size < 0 {
		errs = append(errs, fmt.Errorf("cache.size must not be negative, got %d", c.Cache.Size))
	}
	if c.Redis != nil && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is set"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Constraint is the configured default constraint.
func (c Config) Constraint() domain.Constraint {
	return domain.Constraint{Domain: c.Domain, Style: c.Style}.Normalize()
}
