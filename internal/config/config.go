// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var (
	configPath = "config.toml"
	configFile = altsrc.NewStringPtrSourcer(&configPath)
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server       ServerConfig
	Log          LogConfig
	Database     DatabaseConfig
	Session      SessionConfig
	SMTP         SMTPConfig
	Storage      StorageConfig
	Verification VerificationConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int    // in MB
	CertFile    string // TLS certificate, plain HTTP if empty
	KeyFile     string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

type StorageConfig struct { //nolint:govet // fieldalignment not critical
	Driver     string // local, s3
	LocalDir   string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3KeyID    string
	S3Secret   string
	PresignTTL time.Duration
}

// VerificationConfig controls the check-in and executor unlock workflow.
type VerificationConfig struct { //nolint:govet // fieldalignment not critical
	DefaultFrequencyDays int
	DefaultGraceDays     int
	RequestTTL           time.Duration
	AccessTTL            time.Duration
	RevokeAfterDownload  time.Duration
	DistributeOnDetect   bool
	SchedulerEnabled     bool
	ScannerToken         string
	TestHarness          bool
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
			CertFile:    cmd.String("tls-cert-file"),
			KeyFile:     cmd.String("tls-key-file"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Storage: StorageConfig{
			Driver:     cmd.String("storage-driver"),
			LocalDir:   cmd.String("storage-dir"),
			S3Bucket:   cmd.String("s3-bucket"),
			S3Region:   cmd.String("s3-region"),
			S3Endpoint: cmd.String("s3-endpoint"),
			S3KeyID:    cmd.String("s3-access-key"),
			S3Secret:   cmd.String("s3-secret-key"),
			PresignTTL: cmd.Duration("s3-presign-ttl"),
		},
		Verification: VerificationConfig{
			DefaultFrequencyDays: int(cmd.Int("checkin-frequency-days")),
			DefaultGraceDays:     int(cmd.Int("grace-period-days")),
			RequestTTL:           cmd.Duration("verification-ttl"),
			AccessTTL:            cmd.Duration("access-ttl"),
			RevokeAfterDownload:  cmd.Duration("access-revoke-after-download"),
			DistributeOnDetect:   cmd.Bool("distribute-on-detect"),
			SchedulerEnabled:     cmd.Bool("scheduler"),
			ScannerToken:         cmd.String("scanner-token"),
			TestHarness:          cmd.Bool("test-harness"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")

	return cfg
}

// UseTLS reports whether the server terminates TLS itself.
func (c *ServerConfig) UseTLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// MailEnabled reports whether outgoing mail is configured.
func (c *SMTPConfig) MailEnabled() bool {
	return c.Host != "" && c.From != ""
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	scheme := "http"
	if cfg.Server.UseTLS() {
		scheme = "https"
	}
	if host == "" {
		host = "localhost"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func src(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Value:       "config.toml",
			Usage:       "Path to configuration file",
			Destination: &configPath,
			Sources:     cli.EnvVars("CONFIG"),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: src("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: src("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application (used in emails)",
			Sources: src("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   25,
			Usage:   "Maximum request body size in MB",
			Sources: src("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file",
			Sources: src("TLS_CERT_FILE", "server.tls_cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file",
			Sources: src("TLS_KEY_FILE", "server.tls_key_file"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: src("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: src("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/willtank.db",
			Usage:   "Database DSN",
			Sources: src("DATABASE_DSN", "database.dsn"),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_session",
			Usage:   "Session cookie name",
			Sources: src("SESSION_COOKIE_NAME", "session.cookie_name"),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   604800, // 7 days in seconds
			Usage:   "Session max age in seconds",
			Sources: src("SESSION_MAX_AGE", "session.max_age"),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: src("SESSION_HASH_KEY", "session.hash_key"),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: src("SESSION_BLOCK_KEY", "session.block_key"),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host (mail is logged instead of sent if empty)",
			Sources: src("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: src("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: src("SMTP_USERNAME", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: src("SMTP_PASSWORD", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address",
			Sources: src("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "WillTank",
			Usage:   "Sender display name",
			Sources: src("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: src("SMTP_TLS", "smtp.tls"),
		},
		// Storage flags
		&cli.StringFlag{
			Name:    "storage-driver",
			Value:   "local",
			Usage:   "Document storage driver (local, s3)",
			Sources: src("STORAGE_DRIVER", "storage.driver"),
		},
		&cli.StringFlag{
			Name:    "storage-dir",
			Value:   "./data/documents",
			Usage:   "Directory for the local storage driver",
			Sources: src("STORAGE_DIR", "storage.dir"),
		},
		&cli.StringFlag{
			Name:    "s3-bucket",
			Usage:   "S3 bucket for documents",
			Sources: src("S3_BUCKET", "storage.s3_bucket"),
		},
		&cli.StringFlag{
			Name:    "s3-region",
			Value:   "us-east-1",
			Usage:   "S3 region",
			Sources: src("S3_REGION", "storage.s3_region"),
		},
		&cli.StringFlag{
			Name:    "s3-endpoint",
			Usage:   "S3 endpoint (MinIO or other compatible service)",
			Sources: src("S3_ENDPOINT", "storage.s3_endpoint"),
		},
		&cli.StringFlag{
			Name:    "s3-access-key",
			Usage:   "S3 access key id",
			Sources: src("S3_ACCESS_KEY", "storage.s3_access_key"),
		},
		&cli.StringFlag{
			Name:    "s3-secret-key",
			Usage:   "S3 secret access key",
			Sources: src("S3_SECRET_KEY", "storage.s3_secret_key"),
		},
		&cli.DurationFlag{
			Name:    "s3-presign-ttl",
			Value:   15 * time.Minute,
			Usage:   "Lifetime of presigned download URLs",
			Sources: src("S3_PRESIGN_TTL", "storage.s3_presign_ttl"),
		},
		// Verification flags
		&cli.IntFlag{
			Name:    "checkin-frequency-days",
			Value:   30,
			Usage:   "Default days between check-ins for new users",
			Sources: src("CHECKIN_FREQUENCY_DAYS", "verification.checkin_frequency_days"),
		},
		&cli.IntFlag{
			Name:    "grace-period-days",
			Value:   7,
			Usage:   "Default grace period in days for new users",
			Sources: src("GRACE_PERIOD_DAYS", "verification.grace_period_days"),
		},
		&cli.DurationFlag{
			Name:    "verification-ttl",
			Value:   7 * 24 * time.Hour,
			Usage:   "Lifetime of a verification request and its PINs",
			Sources: src("VERIFICATION_TTL", "verification.request_ttl"),
		},
		&cli.DurationFlag{
			Name:    "access-ttl",
			Value:   time.Hour,
			Usage:   "Lifetime of an executor document access session",
			Sources: src("ACCESS_TTL", "verification.access_ttl"),
		},
		&cli.DurationFlag{
			Name:    "access-revoke-after-download",
			Value:   5 * time.Minute,
			Usage:   "Remaining access after a download-all package was served (0 revokes at once)",
			Sources: src("ACCESS_REVOKE_AFTER_DOWNLOAD", "verification.revoke_after_download"),
		},
		&cli.BoolFlag{
			Name:    "distribute-on-detect",
			Value:   true,
			Usage:   "Send PINs immediately when the scanner opens a request",
			Sources: src("DISTRIBUTE_ON_DETECT", "verification.distribute_on_detect"),
		},
		&cli.BoolFlag{
			Name:    "scheduler",
			Value:   true,
			Usage:   "Run the in-process due-time scheduler",
			Sources: src("SCHEDULER", "verification.scheduler"),
		},
		&cli.StringFlag{
			Name:    "scanner-token",
			Usage:   "Bearer token for the trigger and scan endpoints",
			Sources: src("SCANNER_TOKEN", "verification.scanner_token"),
		},
		&cli.BoolFlag{
			Name:    "test-harness",
			Usage:   "Enable the executor access test harness endpoint",
			Sources: src("TEST_HARNESS", "verification.test_harness"),
		},
	}
}
