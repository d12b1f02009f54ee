// Package config loads the service configuration from a YAML file.
package config

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

// Secret wraps a sensitive string to prevent accidental logging or
// marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted
// placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// MarshalYAML redacts the secret in YAML output.
func (s Secret) MarshalYAML() (any, error) { return "[REDACTED]", nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Settings holds all application configuration values.
type Settings struct {
	AppSettings       AppSettings       `yaml:"app_settings"`
	EmbeddingProvider EmbeddingProvider `yaml:"embedding_provider"`
	DBSettings        DBSettings        `yaml:"db_settings"`
}

// AppSettings configures the HTTP surface.
type AppSettings struct {
	Name         string `yaml:"name"`
	Port         int    `yaml:"port"`
	Host         string `yaml:"host"`
	MetaFilePath string `yaml:"meta_file_path"`
}

// EmbeddingProvider configures the external embedding endpoint.
type EmbeddingProvider struct {
	EndpointURL string `yaml:"endpoint_url"`
	AuthToken   Secret `yaml:"auth_token"`
}

// DBSettings configures the embedded database.
type DBSettings struct {
	PoolSize int    `yaml:"pool_size"`
	DBPath   string `yaml:"db_path"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &s, nil
}

// Addr returns the listen address in host:port format.
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.AppSettings.Host, s.AppSettings.Port)
}

func (s *Settings) validate() error {
	if s.AppSettings.Name == "" {
		return fmt.Errorf("app_settings.name is required")
	}

	if s.AppSettings.Port < 0 || s.AppSettings.Port > 65535 {
		return fmt.Errorf("app_settings.port must be between 0 and 65535, got %d", s.AppSettings.Port)
	}

	if s.AppSettings.Host != "" && net.ParseIP(s.AppSettings.Host) == nil {
		return fmt.Errorf("app_settings.host %q is not a valid IP address", s.AppSettings.Host)
	}

	if s.AppSettings.MetaFilePath == "" {
		return fmt.Errorf("app_settings.meta_file_path is required")
	}

	if s.EmbeddingProvider.EndpointURL == "" {
		return fmt.Errorf("embedding_provider.endpoint_url is required")
	}

	if s.DBSettings.PoolSize < 1 {
		return fmt.Errorf("db_settings.pool_size must be at least 1, got %d", s.DBSettings.PoolSize)
	}

	if s.DBSettings.DBPath == "" {
		return fmt.Errorf("db_settings.db_path is required")
	}

	return nil
}
