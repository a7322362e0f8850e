package feeders

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvFeeder overlays environment variables onto structs tagged with `env`.
// Nested structs use `envPrefix`; Prefix is prepended to every name.
type EnvFeeder struct {
	Prefix      string
	Environment map[string]string
}

// NewEnvFeeder creates a new EnvFeeder that reads variables starting with prefix
func NewEnvFeeder(prefix string) EnvFeeder {
	return EnvFeeder{Prefix: prefix}
}

// Feed sets every tagged field whose variable is present.
func (e EnvFeeder) Feed(target any) error {
	opts := env.Options{Prefix: e.Prefix}
	if e.Environment != nil {
		opts.Environment = e.Environment
	}
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
