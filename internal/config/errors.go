package config

import "strings"

// ConfigurationError lists every invalid or missing setting found at load.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}
