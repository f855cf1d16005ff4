package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// ApplyEnv overrides fields tagged with `env` from the process environment.
// Variables that are not set leave the file value untouched.
func ApplyEnv(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("config env: %w", err)
	}
	return nil
}
