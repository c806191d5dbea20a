package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Capture   CaptureConfig   `yaml:"capture"`
	Minio     MinioConfig     `yaml:"minio"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// GatewayConfig points at the remote risk, face and transaction services
type GatewayConfig struct {
	APIURL         string `yaml:"api_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ExtractorConfig points at the face detection / descriptor model server
type ExtractorConfig struct {
	APIURL         string  `yaml:"api_url"`
	MinConfidence  float64 `yaml:"min_confidence"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// CaptureConfig holds the stability policies and loop cadence
type CaptureConfig struct {
	StepUpStableFrames    int `yaml:"stepup_stable_frames"`
	EnrollStableFrames    int `yaml:"enroll_stable_frames"`
	FrameIntervalMs       int `yaml:"frame_interval_ms"`
	MaxEnrollAttempts     int `yaml:"max_enroll_attempts"`
	SessionTimeoutSeconds int `yaml:"session_timeout_seconds"`
}

// FrameInterval returns the sampling cadence
func (c CaptureConfig) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMs) * time.Millisecond
}

// SessionTimeout returns how long a session may stay open
func (c CaptureConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// MinioConfig configures the outcome receipt archive. Archiving is off when Endpoint is empty.
type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	Region     string `yaml:"region"`
	ExpireDays int    `yaml:"expire_days"`
}

// Enabled reports whether receipts should be archived
func (c MinioConfig) Enabled() bool {
	return c.Endpoint != ""
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	MaxSessions int `yaml:"max_sessions"`
}

type RateLimitConfig struct {
	Requests      int `yaml:"requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Gateway.TimeoutSeconds == 0 {
		c.Gateway.TimeoutSeconds = 30
	}
	if c.Extractor.TimeoutSeconds == 0 {
		c.Extractor.TimeoutSeconds = 10
	}
	if c.Extractor.MinConfidence == 0 {
		c.Extractor.MinConfidence = 0.5
	}
	if c.Capture.StepUpStableFrames == 0 {
		c.Capture.StepUpStableFrames = 3
	}
	if c.Capture.EnrollStableFrames == 0 {
		c.Capture.EnrollStableFrames = 6
	}
	if c.Capture.FrameIntervalMs == 0 {
		c.Capture.FrameIntervalMs = 33
	}
	if c.Capture.MaxEnrollAttempts == 0 {
		c.Capture.MaxEnrollAttempts = 3
	}
	if c.Capture.SessionTimeoutSeconds == 0 {
		c.Capture.SessionTimeoutSeconds = 120
	}
	if c.Minio.Region == "" {
		c.Minio.Region = "us-east-1"
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.MaxSessions == 0 {
		c.Store.MaxSessions = 100
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 100
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
}

// Validate checks the settings the agent cannot run without
func (c *Config) Validate() error {
	var errs []error
	if c.Gateway.APIURL == "" {
		errs = append(errs, errors.New("gateway.api_url is required"))
	}
	if c.Extractor.APIURL == "" {
		errs = append(errs, errors.New("extractor.api_url is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Capture.StepUpStableFrames < 1 || c.Capture.EnrollStableFrames < 1 {
		errs = append(errs, fmt.Errorf("stable frame thresholds must be positive, got %d/%d",
			c.Capture.StepUpStableFrames, c.Capture.EnrollStableFrames))
	} else if c.Capture.EnrollStableFrames <= c.Capture.StepUpStableFrames {
		errs = append(errs, fmt.Errorf("capture.enroll_stable_frames (%d) must be greater than capture.stepup_stable_frames (%d)",
			c.Capture.EnrollStableFrames, c.Capture.StepUpStableFrames))
	}
	if c.Extractor.MinConfidence < 0 || c.Extractor.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("extractor.min_confidence must be within [0,1], got %v", c.Extractor.MinConfidence))
	}
	if c.Minio.Enabled() && c.Minio.Bucket == "" {
		errs = append(errs, errors.New("minio.bucket is required when minio.endpoint is set"))
	}
	return multierr.Combine(errs...)
}
