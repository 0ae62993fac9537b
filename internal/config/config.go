// Package config loads the Email Campaign Agent's configuration from a YAML
// file, an optional .env file, and environment variable overrides.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the agent process.
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Polling PollingConfig `yaml:"polling"`
	Storage StorageConfig `yaml:"storage"`
	Queue   QueueConfig   `yaml:"queue"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	Send    SendConfig    `yaml:"send"`
	Tables  TablesConfig  `yaml:"tables"`
	Render  RenderConfig  `yaml:"render"`
}

// AgentConfig holds process-identity settings.
type AgentConfig struct {
	ID string `yaml:"id"`
}

// PollingConfig holds the main-loop and in-step cadence settings.
type PollingConfig struct {
	PollIntervalSecs     int `yaml:"poll_interval_secs"`
	StopCheckIntervalSec int `yaml:"stop_check_interval_secs"`
	ReceiveWaitSecs      int `yaml:"receive_wait_secs"`
	HeartbeatIntervalSec int `yaml:"heartbeat_interval_secs"`
}

// PollInterval returns the poll interval as a duration.
func (p PollingConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalSecs) * time.Second
}

// StopCheckInterval returns the in-step stop-check cadence as a duration.
func (p PollingConfig) StopCheckInterval() time.Duration {
	return time.Duration(p.StopCheckIntervalSec) * time.Second
}

// ReceiveWait returns the long-poll wait time as a duration.
func (p PollingConfig) ReceiveWait() time.Duration {
	return time.Duration(p.ReceiveWaitSecs) * time.Second
}

// HeartbeatInterval returns the push heartbeat cadence as a duration.
func (p PollingConfig) HeartbeatInterval() time.Duration {
	return time.Duration(p.HeartbeatIntervalSec) * time.Second
}

// StorageConfig holds DynamoDB/S3 connection settings.
type StorageConfig struct {
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // empty uses default credential chain (IAM role on ECS)
	S3Bucket   string `yaml:"s3_bucket"`
	S3Prefix   string `yaml:"s3_prefix"`
}

// GetAWSProfile returns the AWS profile, with environment variable override,
// mirroring the lineage codebase's ECS-aware resolution.
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// QueueConfig holds SQS command-queue settings.
type QueueConfig struct {
	URL string `yaml:"url"`
}

// SMTPConfig holds SMTP submission parameters.
type SMTPConfig struct {
	Server           string `yaml:"server"`
	Port             int    `yaml:"port"`
	DefaultPreview   string `yaml:"default_preview"`
	DefaultFromName  string `yaml:"default_from_name"`
	TemplateBaseURL  string `yaml:"template_base_url"`
	CredentialCache  int    `yaml:"credential_cache_size"`
}

// SendConfig holds burst/quota/continuous-send tunables.
type SendConfig struct {
	EmailBurstSize            int `yaml:"email_burst_size"`
	EmailRecoverySleepSecs    int `yaml:"email_recovery_sleep_secs"`
	EmailContinuousSleepSecs  int `yaml:"email_continuous_sleep_secs"`
	SMTP24HourSendLimit       int `yaml:"smtp_24_hour_send_limit"`
	SleepQueueLimit           int `yaml:"sleep_queue_limit"`
}

// RecoverySleep returns the post-burst sleep duration.
func (s SendConfig) RecoverySleep() time.Duration {
	return time.Duration(s.EmailRecoverySleepSecs) * time.Second
}

// ContinuousSleep returns the default continuous re-send interval.
func (s SendConfig) ContinuousSleep() time.Duration {
	return time.Duration(s.EmailContinuousSleepSecs) * time.Second
}

// TablesConfig names the DynamoDB tables the adapter reads and writes.
type TablesConfig struct {
	WorkOrders       string `yaml:"work_orders"`
	Events           string `yaml:"events"`
	Students         string `yaml:"students"`
	Pools            string `yaml:"pools"`
	Prompts          string `yaml:"prompts"`
	Stages           string `yaml:"stages"`
	Credentials      string `yaml:"credentials"`
	DryrunRecipients string `yaml:"dryrun_recipients"`
	SendRecipients   string `yaml:"send_recipients"`
	PushSubscriptions string `yaml:"push_subscriptions"`
}

// RenderConfig holds merge-tag/QA rendering parameters not otherwise
// sourced from work-order or event data.
type RenderConfig struct {
	CoordinatorEmail string `yaml:"coordinator_email"`
}

// Load reads and parses the YAML configuration at path, then applies
// applyDefaults, which fills in a default for each field it covers that
// was left at its zero value; other fields keep the parsed value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Polling.PollIntervalSecs == 0 {
		cfg.Polling.PollIntervalSecs = 10
	}
	if cfg.Polling.StopCheckIntervalSec == 0 {
		cfg.Polling.StopCheckIntervalSec = 1
	}
	if cfg.Polling.ReceiveWaitSecs == 0 {
		cfg.Polling.ReceiveWaitSecs = 5
	}
	if cfg.Polling.HeartbeatIntervalSec == 0 {
		cfg.Polling.HeartbeatIntervalSec = 60
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.SMTP.CredentialCache == 0 {
		cfg.SMTP.CredentialCache = 64
	}
	if cfg.Send.EmailBurstSize == 0 {
		cfg.Send.EmailBurstSize = 50
	}
	if cfg.Send.EmailRecoverySleepSecs == 0 {
		cfg.Send.EmailRecoverySleepSecs = 30
	}
	if cfg.Send.EmailContinuousSleepSecs == 0 {
		cfg.Send.EmailContinuousSleepSecs = 1800
	}
	if cfg.Send.SleepQueueLimit == 0 {
		cfg.Send.SleepQueueLimit = 8
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It first loads a .env file (if present) so secrets can live in .env
// locally and in real environment variables on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("SQS_QUEUE_URL"); v != "" {
		cfg.Queue.URL = v
	}
	if v := os.Getenv("SMTP_SERVER"); v != "" {
		cfg.SMTP.Server = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, perr := strconv.Atoi(v); perr == nil {
			cfg.SMTP.Port = port
		}
	}
	if v := os.Getenv("DEFAULT_FROM_NAME"); v != "" {
		cfg.SMTP.DefaultFromName = v
	}
	if v := os.Getenv("DEFAULT_PREVIEW"); v != "" {
		cfg.SMTP.DefaultPreview = v
	}
	if v := os.Getenv("AGENT_ID"); v != "" {
		cfg.Agent.ID = v
	}

	return cfg, nil
}
