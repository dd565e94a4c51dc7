package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/authkeeper/internal/logger"
)

const (
	defaultListenAddr    = "localhost:4000"
	defaultLoggingLevel  = logger.LevelInfo
	defaultEnvironment   = logger.EnvProduction
	defaultBaseURL       = "http://localhost:4000"
	defaultResetTokenTTL = time.Hour
	defaultAWSRegion     = "us-east-1"
)

var defaultAllowedOrigins = []string{"http://127.0.0.1:8081", "http://localhost:3000"}

type Config struct {
	// Default logging level
	LogLevel string

	// Rotated log file, logs go to stderr only if empty
	LogFile string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment (dev, prod)
	Environment string

	// Public site address, reset links point to it
	BaseURL string

	// Origins allowed to make cross origin requests
	AllowedOrigins []string

	// Directory with static pages, not served if empty
	StaticDir string

	// Reset token lifetime
	ResetTokenTTL time.Duration

	// Reset requests allowed per identifier per hour, disabled if zero or redis not configured
	ResetRateLimit int
	RedisURL       string

	// Expired reset tokens older than retention are deleted, sweeper disabled if zero
	ResetRetention time.Duration

	// Sender address for Amazon SES. Emails are only logged if empty
	MailFrom           string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		ListenAddr:     defaultListenAddr,
		Environment:    defaultEnvironment,
		BaseURL:        defaultBaseURL,
		AllowedOrigins: defaultAllowedOrigins,
		ResetTokenTTL:  defaultResetTokenTTL,
		AWSRegion:      defaultAWSRegion,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setList := func(o *[]string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = splitList(value)
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":           setString(&c.ListenAddr),
		"DATABASE_URI":          setString(&c.DatabaseDSN),
		"SECRET_KEY":            setString(&c.SecretKey),
		"LOG_LEVEL":             setString(&c.LogLevel),
		"LOG_FILE":              setString(&c.LogFile),
		"ENVIRONMENT":           setString(&c.Environment),
		"BASE_URL":              setString(&c.BaseURL),
		"ALLOWED_ORIGINS":       setList(&c.AllowedOrigins),
		"STATIC_DIR":            setString(&c.StaticDir),
		"RESET_TOKEN_TTL":       setDuration(&c.ResetTokenTTL),
		"RESET_RATE_LIMIT":      setInt(&c.ResetRateLimit),
		"REDIS_URL":             setString(&c.RedisURL),
		"RESET_RETENTION":       setDuration(&c.ResetRetention),
		"MAIL_FROM":             setString(&c.MailFrom),
		"AWS_REGION":            setString(&c.AWSRegion),
		"AWS_ACCESS_KEY_ID":     setString(&c.AWSAccessKeyID),
		"AWS_SECRET_ACCESS_KEY": setString(&c.AWSSecretAccessKey),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authkeeper", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Rotated log file")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.BaseURL, "base-url", "b", c.BaseURL, "Public site address used in reset links")
	fs.StringSliceVar(&c.AllowedOrigins, "allowed-origins", c.AllowedOrigins, "Origins allowed for CORS requests")
	fs.StringVar(&c.StaticDir, "static-dir", c.StaticDir, "Directory with static pages")
	fs.DurationVar(&c.ResetTokenTTL, "reset-token-ttl", c.ResetTokenTTL, "Reset token lifetime")
	fs.IntVar(&c.ResetRateLimit, "reset-rate-limit", c.ResetRateLimit, "Reset requests per identifier per hour (0 disables)")
	fs.StringVar(&c.RedisURL, "redis", c.RedisURL, "Redis url for rate limiting")
	fs.DurationVar(&c.ResetRetention, "reset-retention", c.ResetRetention, "Keep expired reset tokens that long (0 disables sweeping)")
	fs.StringVar(&c.MailFrom, "mail-from", c.MailFrom, "Sender address for Amazon SES")
	fs.StringVar(&c.AWSRegion, "aws-region", c.AWSRegion, "AWS region")

	return fs.Parse(args)
}

// Check required options
func (c *Config) Validate() error {
	var errs []error

	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key must be set"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database connection string must be set"))
	}
	if c.ResetTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("reset token ttl must be positive, got %s", c.ResetTokenTTL))
	}
	if c.ResetRateLimit < 0 || c.ResetRetention < 0 {
		errs = append(errs, errors.New("reset rate limit and retention must not be negative"))
	}

	return errors.Join(errs...)
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
