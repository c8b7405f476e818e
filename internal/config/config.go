// Package config handles application configuration loading from YAML and environment variables.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "safereport/internal/utils"

	"gopkg.in/yaml.v3"
)

// ConfigFileEnvVar names the environment variable pointing at the YAML config file
const ConfigFileEnvVar = "SAFEREPORT_CONFIG_FILE"

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Scoring oracle the intake path calls for every report
	Oracle OracleConfig `json:"oracle" yaml:"oracle"`

	// Reference oracle process (cmd/oracle)
	OracleServer OracleServerConfig `json:"oracle_server" yaml:"oracle_server"`

	// Report intake limits
	Intake IntakeConfig `json:"intake" yaml:"intake"`

	// Media object storage
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Triage queue defaults
	Triage TriageConfig `json:"triage" yaml:"triage"`

	// Per-client request throttling
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// High-priority report notifications
	Alerts AlertsConfig `json:"alerts" yaml:"alerts"`

	System *SystemConfig `json:"system,omitempty" yaml:"system,omitempty"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Email Configuration
	Email EmailConfig `json:"email" yaml:"email"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port           string   `json:"port" yaml:"port"`
	AdminUsername  string   `json:"admin_username" yaml:"admin_username"`
	AdminPassword  string   `json:"admin_password" yaml:"admin_password"`
	SessionSecret  string   `json:"session_secret" yaml:"session_secret"`
	SecureCookies  bool     `json:"secure_cookies" yaml:"secure_cookies"`
	Debug          bool     `json:"debug" yaml:"debug"`
	LogLevel       string   `json:"log_level" yaml:"log_level"`
	BackendBaseURL string   `json:"backend_base_url" yaml:"backend_base_url"`
	AppBaseURL     string   `json:"app_base_url" yaml:"app_base_url"`
	CORSOrigins    []string `json:"cors_origins" yaml:"cors_origins"`
}

// AuthConfig represents authentication-related configuration
type AuthConfig struct {
	SignupsDisabled bool `json:"signups_disabled" yaml:"signups_disabled"`
}

// SystemConfig represents system-wide configuration
type SystemConfig struct {
	Auth AuthConfig `json:"auth" yaml:"auth"`
}

// OracleConfig configures the outbound call to the scoring oracle.
type OracleConfig struct {
	URL     string        `json:"url" yaml:"url"`
	APIKey  string        `json:"api_key" yaml:"api_key"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// HistorySize bounds how many earlier descriptions from the same reporter are sent along
	HistorySize int `json:"history_size" yaml:"history_size"`
	// MaxResponseBytes caps the body read from the oracle
	MaxResponseBytes int64 `json:"max_response_bytes" yaml:"max_response_bytes"`

	BreakerDisabled     bool          `json:"breaker_disabled" yaml:"breaker_disabled"`
	BreakerMinRequests  uint32        `json:"breaker_min_requests" yaml:"breaker_min_requests"`
	BreakerFailureRatio float64       `json:"breaker_failure_ratio" yaml:"breaker_failure_ratio"`
	BreakerTimeout      time.Duration `json:"breaker_timeout" yaml:"breaker_timeout"`
}

// OracleServerConfig configures the reference scoring oracle
type OracleServerConfig struct {
	Port string `json:"port" yaml:"port"`
	// APIKey, when set, must be presented as a bearer token
	APIKey string `json:"api_key" yaml:"api_key"`
	// MediaRoot restricts which local files the image analyzer may open; empty allows any path
	MediaRoot string `json:"media_root" yaml:"media_root"`
}

// IntakeConfig holds report submission limits
type IntakeConfig struct {
	MaxMediaFiles        int   `json:"max_media_files" yaml:"max_media_files"`
	MaxMediaBytes        int64 `json:"max_media_bytes" yaml:"max_media_bytes"`
	MinDescriptionLength int   `json:"min_description_length" yaml:"min_description_length"`
	MaxDescriptionLength int   `json:"max_description_length" yaml:"max_description_length"`
	UploadConcurrency    int   `json:"upload_concurrency" yaml:"upload_concurrency"`
}

// MaxRequestBytes is the multipart body ceiling: every media part at its limit plus room for form fields
func (c IntakeConfig) MaxRequestBytes() int64 {
	return int64(c.MaxMediaFiles)*c.MaxMediaBytes + 1<<20
}

// StorageConfig selects and configures the media store
type StorageConfig struct {
	// Backend is "local" or "s3"
	Backend  string   `json:"backend" yaml:"backend"`
	LocalDir string   `json:"local_dir" yaml:"local_dir"`
	S3       S3Config `json:"s3" yaml:"s3"`
}

// S3Config represents an S3-compatible bucket (MinIO, R2, AWS)
type S3Config struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	Region          string `json:"region" yaml:"region"`
	UseSSL          bool   `json:"use_ssl" yaml:"use_ssl"`
}

// TriageConfig holds queue read defaults
type TriageConfig struct {
	DefaultLimit int `json:"default_limit" yaml:"default_limit"`
	MaxLimit     int `json:"max_limit" yaml:"max_limit"`
}

// RateLimitConfig configures per-IP throttling of submissions and logins
type RateLimitConfig struct {
	Enabled           bool          `json:"enabled" yaml:"enabled"`
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int           `json:"burst_size" yaml:"burst_size"`
	StrikeLimit       int           `json:"strike_limit" yaml:"strike_limit"`
	BlockDuration     time.Duration `json:"block_duration" yaml:"block_duration"`
	IdleTTL           time.Duration `json:"idle_ttl" yaml:"idle_ttl"`
}

// AlertsConfig controls the high-priority report mail
type AlertsConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	Threshold  float64  `json:"threshold" yaml:"threshold"`
	Recipients []string `json:"recipients" yaml:"recipients"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "safereport-api"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"` // Default: 1.0 (100%)
	UseAutoSDK     bool              `json:"use_auto_sdk" yaml:"use_auto_sdk"`
	LogLevel       string            `json:"-" yaml:"-"` // Copied from server.log_level
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`       // Maximum number of open connections to the database
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`       // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"` // Maximum amount of time a connection may be reused
	MigrationsDir   string        `json:"migrations_dir" yaml:"migrations_dir"`
}

// EmailConfig represents email/SMTP configuration
type EmailConfig struct {
	SMTP    SMTPConfig `json:"smtp" yaml:"smtp"`
	Enabled bool       `json:"enabled" yaml:"enabled"`
}

// SMTPConfig represents SMTP server configuration
type SMTPConfig struct {
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	FromAddress string `json:"from_address" yaml:"from_address"`
	FromName    string `json:"from_name" yaml:"from_name"`
}

// IsSignupDisabled returns whether signups are disabled based on configuration
func (c *Config) IsSignupDisabled() bool {
	if c.System == nil {
		return false
	}
	return c.System.Auth.SignupsDisabled
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.overrideFromEnv()
	config.applyDefaults()

	return config, nil
}

// applyDefaults fills values left empty by both the file and the environment
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	c.OpenTelemetry.LogLevel = c.Server.LogLevel

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}

	if c.Oracle.Timeout <= 0 {
		c.Oracle.Timeout = DefaultOracleTimeout
	}
	if c.Oracle.HistorySize == 0 {
		c.Oracle.HistorySize = DefaultOracleHistorySize
	}
	if c.Oracle.MaxResponseBytes <= 0 {
		c.Oracle.MaxResponseBytes = DefaultOracleMaxResponseBytes
	}
	if c.Oracle.BreakerMinRequests == 0 {
		c.Oracle.BreakerMinRequests = 5
	}
	if c.Oracle.BreakerFailureRatio <= 0 {
		c.Oracle.BreakerFailureRatio = 0.6
	}
	if c.Oracle.BreakerTimeout <= 0 {
		c.Oracle.BreakerTimeout = 30 * time.Second
	}

	if c.OracleServer.Port == "" {
		c.OracleServer.Port = "8000"
	}

	if c.Intake.MaxMediaFiles <= 0 {
		c.Intake.MaxMediaFiles = DefaultMaxMediaFiles
	}
	if c.Intake.MaxMediaBytes <= 0 {
		c.Intake.MaxMediaBytes = DefaultMaxMediaBytes
	}
	if c.Intake.MinDescriptionLength <= 0 {
		c.Intake.MinDescriptionLength = DefaultMinDescriptionLength
	}
	if c.Intake.MaxDescriptionLength <= 0 {
		c.Intake.MaxDescriptionLength = DefaultMaxDescriptionLength
	}
	if c.Intake.UploadConcurrency <= 0 {
		c.Intake.UploadConcurrency = c.Intake.MaxMediaFiles
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "uploads"
	}

	if c.Triage.DefaultLimit <= 0 {
		c.Triage.DefaultLimit = DefaultTriageLimit
	}
	if c.Triage.MaxLimit <= 0 {
		c.Triage.MaxLimit = MaxTriageLimit
	}

	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = 1
	}
	if c.RateLimit.BurstSize <= 0 {
		c.RateLimit.BurstSize = 5
	}
	if c.RateLimit.StrikeLimit <= 0 {
		c.RateLimit.StrikeLimit = 10
	}
	if c.RateLimit.BlockDuration <= 0 {
		c.RateLimit.BlockDuration = 5 * time.Minute
	}
	if c.RateLimit.IdleTTL <= 0 {
		c.RateLimit.IdleTTL = 10 * time.Minute
	}

	if c.Alerts.Threshold <= 0 {
		c.Alerts.Threshold = DefaultAlertThreshold
	}

	if c.OpenTelemetry.ServiceName == "" {
		c.OpenTelemetry.ServiceName = "safereport-api"
	}
	if c.OpenTelemetry.SamplingRate == 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnvWithPrefix(c, "")
}

var durationType = reflect.TypeOf(time.Duration(0))

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables.
// The variable name is the upper-cased yaml tag joined to its parents with "_".
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := strings.SplitN(fieldType.Tag.Get("yaml"), ",", 2)[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		if field.Type() == durationType {
			if envVal := os.Getenv(envKey); envVal != "" {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if uintVal, err := strconv.ParseUint(envVal, 10, 64); err == nil {
					field.SetUint(uintVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type().Elem().Kind() == reflect.String {
					parts := strings.Split(envVal, ",")
					for i := range parts {
						parts[i] = strings.TrimSpace(parts[i])
					}
					field.Set(reflect.ValueOf(parts))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		case reflect.Ptr:
			if field.Type().Elem().Kind() == reflect.Struct {
				// Allocate optional sections when any of their variables are set
				if field.IsNil() {
					if !hasEnvWithPrefix(envKey + "_") {
						continue
					}
					field.Set(reflect.New(field.Type().Elem()))
				}
				overrideStructFromEnvWithPrefix(field.Interface(), envKey)
			}
		}
	}
}

func hasEnvWithPrefix(prefix string) bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, prefix) {
			return true
		}
	}
	return false
}

// loadConfigWithOverrides loads the config file named by SAFEREPORT_CONFIG_FILE, or config.yaml.
// A missing default config.yaml is not an error: environment variables and defaults suffice.
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv(ConfigFileEnvVar); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	config, err := loadConfigFromFile("config.yaml")
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	return config, err
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
