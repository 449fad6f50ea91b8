package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "memory", cfg.Results.Backend)
	assert.Equal(t, "MedicalResultsQueue", cfg.Channels.ArchiveTopic)
	assert.Equal(t, "MedicalAlertsQueue", cfg.Channels.AlertTopic)
	assert.Equal(t, 2*time.Second, cfg.Channels.PublishTimeout)
	assert.Equal(t, 10, cfg.Results.RecentDefault)
}

func TestLoadFileReadsSections(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
results:
  backend: stub
channels:
  transport: memory
  publish_timeout: 500ms
smtp:
  enabled: true
  host: smtp.example.org
  to: [oncall@example.org, lab@example.org]
`))
	require.NoError(t, err)

	assert.Equal(t, "stub", cfg.Results.Backend)
	assert.Equal(t, "memory", cfg.Channels.Transport)
	assert.Equal(t, 500*time.Millisecond, cfg.Channels.PublishTimeout)
	assert.True(t, cfg.SMTP.Enabled)
	assert.Equal(t, []string{"oncall@example.org", "lab@example.org"}, cfg.SMTP.To)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("LABALERT_RESULTS_BACKEND", "postgres")
	t.Setenv("LABALERT_AUTH_JWT_SECRET", "s3cret")

	cfg, err := LoadFile(writeConfig(t, "results:\n  backend: memory\n"))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Results.Backend)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "results:\n  backend: mongo\n"},
		{"unknown transport", "channels:\n  transport: kafka\n"},
		{"same topics", "channels:\n  archive_topic: q\n  alert_topic: q\n"},
		{"bad rate limit", "rate_limit:\n  enabled: true\n  burst: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "labalert", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=labalert sslmode=disable", c.DSN())
}
