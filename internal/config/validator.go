package config

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

// sharedValidator is safe for concurrent use and caches struct metadata
// across calls, per the validator/v10 docs — callers should not construct
// a new instance per validation.
var (
	validatorOnce sync.Once
	sharedValidator *validator.Validate
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		sharedValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return sharedValidator
}

// Validate checks the merged configuration against its struct tags
// (required fields, URL shapes, and the remote-write-slots-below-
// remote-read-slots cross-field invariant from spec §8.1).
func Validate(cfg *Config) error {
	return getValidator().Struct(cfg)
}
