package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const validConfig = `
app_settings:
  name: faro
  port: 8080
  host: 127.0.0.1
  meta_file_path: meta.json
embedding_provider:
  endpoint_url: https://api.openai.com/v1/embeddings
  auth_token: sk-secret
db_settings:
  pool_size: 4
  db_path: faro.db
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	return path
}

func TestLoadValidConfig(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if cfg.AppSettings.Name != "faro" || cfg.AppSettings.Port != 8080 {
		t.Errorf("unexpected app settings: %+v", cfg.AppSettings)
	}

	if cfg.Addr() != "127.0.0.1:8080" {
		t.Errorf("unexpected address %q", cfg.Addr())
	}

	if cfg.EmbeddingProvider.AuthToken.Value() != "sk-secret" {
		t.Error("secret value lost in loading")
	}

	if cfg.DBSettings.PoolSize != 4 || cfg.DBSettings.DBPath != "faro.db" {
		t.Errorf("unexpected db settings: %+v", cfg.DBSettings)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidationFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(string) string
		blocked string
	}{
		{"missing name", func(c string) string { return strings.Replace(c, "name: faro", "name: ''", 1) }, "name"},
		{"bad port", func(c string) string { return strings.Replace(c, "port: 8080", "port: 99999", 1) }, "port"},
		{"bad host", func(c string) string { return strings.Replace(c, "host: 127.0.0.1", "host: not-an-ip", 1) }, "host"},
		{"zero pool", func(c string) string { return strings.Replace(c, "pool_size: 4", "pool_size: 0", 1) }, "pool_size"},
		{"missing db path", func(c string) string { return strings.Replace(c, "db_path: faro.db", "db_path: ''", 1) }, "db_path"},
		{"missing endpoint", func(c string) string {
			return strings.Replace(c, "endpoint_url: https://api.openai.com/v1/embeddings", "endpoint_url: ''", 1)
		}, "endpoint_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(writeConfig(t, tt.mutate(validConfig)))
			if err == nil {
				t.Fatalf("expected validation error for %s", tt.name)
			}

			if !strings.Contains(err.Error(), tt.blocked) {
				t.Errorf("expected error to mention %q, got %v", tt.blocked, err)
			}
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	t.Parallel()

	secret := Secret("sk-super-secret")

	if rendered := fmt.Sprintf("%v %s %#v", secret, secret, secret); strings.Contains(rendered, "super-secret") {
		t.Errorf("secret leaked through formatting: %q", rendered)
	}

	out, err := yaml.Marshal(secret)
	if err != nil {
		t.Fatalf("marshalling secret: %v", err)
	}

	if strings.Contains(string(out), "super-secret") {
		t.Errorf("secret leaked through YAML: %q", out)
	}

	if secret.Value() != "sk-super-secret" {
		t.Error("Value() must return the raw secret")
	}
}
