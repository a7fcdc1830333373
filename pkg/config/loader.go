// Package config loads environment-driven configuration structs.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by configs that check their own invariants after
// parsing.
type Validator interface {
	Validate() error
}

// Load fills cfg, a pointer to a struct with `env` tags, from the
// environment. When cfg implements Validator it is validated too.
//
//	type Config struct {
//	    Port int `env:"CONSOLE_HTTP_PORT" envDefault:"8090"`
//	}
func Load(cfg any) error {
	return load(cfg, env.Options{})
}

// LoadFrom is Load reading variables from environ instead of the process
// environment. A nil environ is treated as empty.
func LoadFrom(cfg any, environ map[string]string) error {
	if environ == nil {
		environ = map[string]string{}
	}
	return load(cfg, env.Options{Environment: environ})
}

func load(cfg any, opts env.Options) error {
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}
