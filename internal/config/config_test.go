package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
agent:
  id: "agent-1"

polling:
  poll_interval_secs: 15
  stop_check_interval_secs: 2
  receive_wait_secs: 5

storage:
  aws_region: "us-west-2"
  s3_bucket: "campaign-html"

queue:
  url: "https://sqs.us-west-2.amazonaws.com/123/commands"

smtp:
  server: "smtp.example.com"
  port: 587
  default_from_name: "Retreats"

send:
  email_burst_size: 25
  smtp_24_hour_send_limit: 10000

tables:
  work_orders: "work_orders"
  students: "students"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "agent-1", cfg.Agent.ID)
	assert.Equal(t, 15, cfg.Polling.PollIntervalSecs)
	assert.Equal(t, "us-west-2", cfg.Storage.AWSRegion)
	assert.Equal(t, "campaign-html", cfg.Storage.S3Bucket)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Server)
	assert.Equal(t, 25, cfg.Send.EmailBurstSize)
	assert.Equal(t, "work_orders", cfg.Tables.WorkOrders)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("agent:\n  id: \"a\"\n"), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Polling.PollIntervalSecs)
	assert.Equal(t, 1, cfg.Polling.StopCheckIntervalSec)
	assert.Equal(t, 5, cfg.Polling.ReceiveWaitSecs)
	assert.Equal(t, 60, cfg.Polling.HeartbeatIntervalSec)
	assert.Equal(t, "us-east-1", cfg.Storage.AWSRegion)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, 50, cfg.Send.EmailBurstSize)
	assert.Equal(t, 8, cfg.Send.SleepQueueLimit)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("smtp:\n  server: \"file-smtp\"\n"), 0644)
	require.NoError(t, err)

	os.Setenv("SMTP_SERVER", "env-smtp")
	os.Setenv("SMTP_PORT", "2525")
	defer func() {
		os.Unsetenv("SMTP_SERVER")
		os.Unsetenv("SMTP_PORT")
	}()

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "env-smtp", cfg.SMTP.Server)
	assert.Equal(t, 2525, cfg.SMTP.Port)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestPollingDurations(t *testing.T) {
	p := PollingConfig{PollIntervalSecs: 10, StopCheckIntervalSec: 2, ReceiveWaitSecs: 5, HeartbeatIntervalSec: 60}
	assert.Equal(t, 10_000_000_000, int(p.PollInterval().Nanoseconds()))
	assert.Equal(t, 2_000_000_000, int(p.StopCheckInterval().Nanoseconds()))
}
