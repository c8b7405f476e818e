package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout    = 60 * time.Second
	ServerShutdownTimeout = 30 * time.Second
	ReadHeaderTimeout     = 10 * time.Second

	// DefaultOracleTimeout bounds a single scoring call; expiry is handled as an oracle failure
	DefaultOracleTimeout = 8 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute
	HealthCheckTimeout      = 3 * time.Second

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days
)

// Intake and queue limits
const (
	DefaultMaxMediaFiles        = 5
	DefaultMaxMediaBytes        = 10 << 20 // 10 MiB per file, the single server-side ceiling
	DefaultMinDescriptionLength = 20
	DefaultMaxDescriptionLength = 5000

	DefaultTriageLimit = 20
	MaxTriageLimit     = 100

	DefaultOracleHistorySize      = 10
	DefaultOracleMaxResponseBytes = 1 << 20

	DefaultAlertThreshold = 6.0
)

// Session configuration constants
const (
	SessionPath     = "/"
	SessionHTTPOnly = true

	SessionName = "safereport-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self'; img-src 'self' data: blob:; media-src 'self' blob:;"
)
