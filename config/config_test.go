package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func loader(env map[string]string) *Loader {
	l := NewLoader()
	l.getenv = func(k string) string { return env[k] }
	return l
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := loader(nil).Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultLVAPPPort, cfg.LVAPP.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Runtime.WatchdogInterval)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.False(t, cfg.NATS.Enabled())
	assert.True(t, cfg.ServiceEnabled("lvapp"))
	assert.False(t, cfg.ServiceEnabled("eventexport"))
}

func TestLayersMerge(t *testing.T) {
	base := writeFile(t, "base.yaml", `
vbsp:
  port: 6000
storage:
  driver: sqlite
  path: /var/lib/empower/empower.db
runtime:
  hello_fallback: 3s
services:
  eventexport:
    name: eventexport
    enabled: true
    config:
      buffer: 64
`)
	override := writeFile(t, "override.json", `{
  "vbsp": {"host": "127.0.0.1"},
  "nats": {"urls": ["nats://broker:4222"], "reconnect_wait": "500ms"},
  "api": {"cors_origins": ["http://dashboard"]}
}`)

	l := loader(nil)
	l.AddLayer(base)
	l.AddLayer(override)
	l.EnableValidation(true)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, ListenerConfig{Host: "127.0.0.1", Port: 6000}, cfg.VBSP)
	assert.Equal(t, DefaultLVAPPPort, cfg.LVAPP.Port, "untouched defaults survive")
	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, 3*time.Second, cfg.Runtime.HelloFallback)
	assert.Equal(t, 500*time.Millisecond, cfg.Runtime.WatchdogInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.NATS.ReconnectWait)
	assert.True(t, cfg.NATS.Enabled())
	assert.Equal(t, []string{"http://dashboard"}, cfg.API.CORSOrigins)
	assert.Equal(t, DefaultAPIPort, cfg.API.Port)
	assert.True(t, cfg.ServiceEnabled("eventexport"))
	assert.JSONEq(t, `{"buffer":64}`, string(cfg.Services["eventexport"].Config))
	assert.True(t, cfg.ServiceEnabled("lvapp"), "service maps merge per key")
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := loader(map[string]string{
		"EMPOWER_API_PORT":       "8080",
		"EMPOWER_NATS_URLS":      "nats://a:4222,nats://b:4222",
		"EMPOWER_STORAGE_DRIVER": "sqlite",
		"EMPOWER_STORAGE_PATH":   "empower.db",
		"EMPOWER_ADMIN_PASSWORD": "s3cret",
	}).Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.NATS.URLs)
	assert.Equal(t, "empower.db", cfg.Storage.Path)
	assert.Equal(t, "s3cret", cfg.Admin.Password)
	assert.NotContains(t, cfg.String(), "s3cret")

	_, err = loader(map[string]string{"EMPOWER_LVAPP_PORT": "many"}).Load()
	assert.True(t, errors.IsInvalid(err))
	_, err = loader(map[string]string{"EMPOWER_NATS_TOKEN": "a\x00b"}).Load()
	assert.True(t, errors.IsInvalid(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.API.Port = 70000 }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Storage.Driver = StorageSQLite }},
		{"bad subject", func(c *Config) {
			c.NATS.URLs = []string{"nats://localhost:4222"}
			c.NATS.SubjectPrefix = "empower.>"
		}},
		{"zero watchdog", func(c *Config) { c.Runtime.WatchdogInterval = 0 }},
		{"no admin", func(c *Config) { c.Admin.Password = "" }},
		{"bad service config", func(c *Config) {
			c.Services["api"] = ServiceConfig{Name: "api", Config: []byte("{")}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.True(t, errors.IsInvalid(cfg.Validate()))
		})
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	_, err := loader(nil).LoadFile(writeFile(t, "empower.toml", "x = 1"))
	assert.Error(t, err)

	_, err = loader(nil).LoadFile(writeFile(t, "bad.json", `{"runtime": {"hello_fallback": "soon"}}`))
	assert.Error(t, err)

	_, err = loader(nil).LoadFile("../../outside.json")
	assert.Error(t, err)
}

func TestValidateJSONDepth(t *testing.T) {
	assert.NoError(t, validateJSONDepth([]byte(`{"a":["{", "]"]}`)))
	assert.Error(t, validateJSONDepth([]byte(`{"a":[}`)))
	deep := make([]byte, 0, 2*(maxJSONDepth+1))
	for i := 0; i <= maxJSONDepth; i++ {
		deep = append(deep, '[')
	}
	for i := 0; i <= maxJSONDepth; i++ {
		deep = append(deep, ']')
	}
	assert.Error(t, validateJSONDepth(deep))
}
