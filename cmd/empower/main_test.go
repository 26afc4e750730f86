package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "empower version "+Version)
}

func TestValidateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empower.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  port: 8080\nstorage:\n  driver: memory\n"), 0o600))

	out, err := execute(t, "--config", path, "--validate", "--log-format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	out, err = execute(t, "run", "--config", path, "--validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}

func TestValidateRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empower.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: sqlite\n"), 0o600))

	_, err := execute(t, "--config", path, "--validate")
	assert.Error(t, err)
}

func TestFlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing config file", []string{"--config", "/nonexistent/empower.yaml", "--validate"}},
		{"bad log level", []string{"--log-level", "loud", "--validate"}},
		{"bad log format", []string{"--log-format", "xml", "--validate"}},
		{"unexpected argument", []string{"serve"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"service":"empower"`)
}
