package config

import "errors"

// Configuration errors
var (
	ErrConfigNil                 = errors.New("config is nil")
	ErrConfigNotPointer          = errors.New("config must be a pointer to a struct")
	ErrRequiredFieldMissing      = errors.New("required fields missing")
	ErrUnsupportedTypeForDefault = errors.New("unsupported type for default value")
	ErrInvalidValue              = errors.New("invalid configuration value")
	ErrKeyNotFound               = errors.New("configuration key not found")
	ErrNoConfigFile              = errors.New("no configuration file given")
)
