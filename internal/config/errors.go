package config

import "errors"

var (
	// ErrConfigNotFound indicates the requested YAML file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidYAML indicates the file could not be parsed as YAML.
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrValidationFailed indicates the merged configuration failed struct validation.
	ErrValidationFailed = errors.New("configuration validation failed")
)
