package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, an optional file, and env
// vars. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if GITEVAL_CONFIG is set
//  3. env (prefix GITEVAL_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("GITEVAL_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: GITEVAL_ADDR, GITEVAL_WEBHOOK_SECRET, ...
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("GITEVAL_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "giteval_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.WebhookSecret == "":
		return fmt.Errorf("%w: webhook_secret must be set", ErrInvalidConfig)
	case c.AdminTokenSecret == "":
		return fmt.Errorf("%w: admin_token_secret must be set", ErrInvalidConfig)
	case c.StorePath == "":
		return fmt.Errorf("%w: store_path must not be empty", ErrInvalidConfig)
	}
	switch c.StoreBackend {
	case StoreBackendFile, StoreBackendSQLite:
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}
	return nil
}
