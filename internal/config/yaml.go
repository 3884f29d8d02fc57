package config

import (
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
)

// MaxFileSize bounds a configuration file.
const MaxFileSize = 1 << 20

var (
	ErrEmptyFile    = errors.New("config file is empty")
	ErrFileTooLarge = errors.New("config file exceeds maximum size")
)

// decodeStrict unmarshals data into v, rejecting unknown keys.
func decodeStrict(data []byte, v any) error {
	if len(data) == 0 {
		return ErrEmptyFile
	}
	if len(data) > MaxFileSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(data), MaxFileSize)
	}
	if err := yaml.UnmarshalWithOptions(data, v, yaml.Strict()); err != nil {
		return err
	}
	return nil
}

// Marshal renders a configuration as YAML.
func Marshal(c *Config) ([]byte, error) {
	return yaml.Marshal(c)
}
