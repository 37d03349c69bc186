package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks a configuration for errors.
//
// Struct-tag constraints (required fields, value ranges, enumerations) are
// checked first, then cross-field rules that tags cannot express, such as
// backend-specific required settings.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return validateStorage(&cfg.Storage)
}

// validateStorage checks backend-specific requirements.
func validateStorage(cfg *StorageConfig) error {
	switch cfg.Backend {
	case "fs":
		if cfg.FS.Path == "" {
			return fmt.Errorf("storage backend %q requires fs.path to be set", cfg.Backend)
		}
	case "s3":
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("storage backend %q requires s3.bucket to be set", cfg.Backend)
		}
	case "badger":
		if cfg.Badger.Path == "" {
			return fmt.Errorf("storage backend %q requires badger.path to be set", cfg.Backend)
		}
	case "memory":
		// No settings required.
	}
	return nil
}
