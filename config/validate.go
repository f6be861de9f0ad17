package config

import (
	"fmt"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within
// acceptable ranges and returns the first error encountered, or nil if
// valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if err := cfg.Schedule().Validate(); err != nil {
		return err
	}

	if cfg.BaseCurrency != "" {
		if _, err := cfg.BaseCurrencyAddress(); err != nil {
			return fmt.Errorf("base currency: %w", err)
		}
	}
	if cfg.PermissionedCaller != "" {
		if _, err := cfg.PermissionedCallerAddress(); err != nil {
			return fmt.Errorf("permissioned caller: %w", err)
		}
	}

	return nil
}
