package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Verification
	CodeExpiry      time.Duration // CODE_EXPIRY_MINUTES (default: 10)
	ResendCooldown  time.Duration // RESEND_COOLDOWN_SECONDS (default: 30, 0 disables)
	MaxResends      int           // MAX_RESENDS_PER_HOUR, counted per challenge (default: 3)
	MaxAttempts     int           // MAX_VERIFY_ATTEMPTS (default: 5)
	ChallengeRetain time.Duration // CHALLENGE_RETENTION (default: 24h)

	// Guest grants
	DefaultAuthDays int // DEFAULT_GUEST_AUTH_DAYS (default: 7)
	MaxExtendDays   int // MAX_GUEST_EXTEND_DAYS (default: 30)

	// Network controller; an empty URL runs without one
	ControllerURL         string
	ControllerUsername    string
	ControllerPassword    string
	ControllerSite        string        // default: "default"
	ControllerTimeout     time.Duration // default: 5s
	ControllerInsecureTLS bool          // self-signed controller certificates

	// Email delivery; an empty token logs codes instead
	PostmarkToken string
	PostmarkFrom  string
	SiteName      string

	AdminEmail    string // Optional: admin bootstrapped on start
	AdminPassword string

	SessionKeyFile string // Ed25519 PEM, created when missing (default: ./session.key)
	SessionIssuer  string
	DatabaseFile   string // default: ./portal.db
	PepperFile     string // default: ./pepper
	SyncInterval   time.Duration

	Env                 string // dev, staging, prod (default: dev)
	LogLevel            string
	LogFormat           string
	Port                int
	ShutdownGracePeriod time.Duration
}

// LoadEnvFile loads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error
// unless required is true.
func LoadEnvFile(path string, required bool) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !required && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

func LoadConfig() Config {
	return Config{
		CodeExpiry:      time.Duration(getEnvIntOrDefault("CODE_EXPIRY_MINUTES", 10)) * time.Minute,
		ResendCooldown:  time.Duration(getEnvIntOrDefault("RESEND_COOLDOWN_SECONDS", 30)) * time.Second,
		MaxResends:      getEnvIntOrDefault("MAX_RESENDS_PER_HOUR", 3),
		MaxAttempts:     getEnvIntOrDefault("MAX_VERIFY_ATTEMPTS", 5),
		ChallengeRetain: getEnvDurationOrDefault("CHALLENGE_RETENTION", 24*time.Hour),

		DefaultAuthDays: getEnvIntOrDefault("DEFAULT_GUEST_AUTH_DAYS", 7),
		MaxExtendDays:   getEnvIntOrDefault("MAX_GUEST_EXTEND_DAYS", 30),

		ControllerURL:         os.Getenv("CONTROLLER_URL"),
		ControllerUsername:    os.Getenv("CONTROLLER_USERNAME"),
		ControllerPassword:    os.Getenv("CONTROLLER_PASSWORD"),
		ControllerSite:        getEnvOrDefault("CONTROLLER_SITE", "default"),
		ControllerTimeout:     getEnvDurationOrDefault("CONTROLLER_TIMEOUT", 5*time.Second),
		ControllerInsecureTLS: getEnvBoolOrDefault("CONTROLLER_INSECURE_TLS", false),

		PostmarkToken: os.Getenv("POSTMARK_SERVER_TOKEN"),
		PostmarkFrom:  os.Getenv("POSTMARK_FROM"),
		SiteName:      getEnvOrDefault("SITE_NAME", "Guest WiFi"),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		SessionKeyFile: getEnvOrDefault("SESSION_KEY_FILE", "session.key"),
		SessionIssuer:  getEnvOrDefault("SESSION_ISSUER", "guest-portal"),
		DatabaseFile:   getEnvOrDefault("PORTAL_DATABASE_FILE", "portal.db"),
		PepperFile:     getEnvOrDefault("PEPPER_FILE", "pepper"),
		SyncInterval:   getEnvDurationOrDefault("SYNC_INTERVAL", 5*time.Minute),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	if c.ControllerURL != "" && (c.ControllerUsername == "" || c.ControllerPassword == "") {
		errs = append(errs, errors.New("CONTROLLER_USERNAME and CONTROLLER_PASSWORD are required with CONTROLLER_URL"))
	}
	if c.PostmarkToken != "" && c.PostmarkFrom == "" {
		errs = append(errs, errors.New("POSTMARK_FROM is required with POSTMARK_SERVER_TOKEN"))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	if c.Env == "prod" && c.PostmarkToken == "" {
		errs = append(errs, errors.New("POSTMARK_SERVER_TOKEN is required in prod"))
	}
	if c.MaxExtendDays < 1 {
		errs = append(errs, errors.New("MAX_GUEST_EXTEND_DAYS must be at least 1"))
	}
	return errors.Join(errs...)
}

// resendCooldown translates the configured cooldown for the verification
// service, where zero means "use the default" and a negative value disables it.
func (c Config) resendCooldown() time.Duration {
	if c.ResendCooldown <= 0 {
		return -1
	}
	return c.ResendCooldown
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// "1h", "30m", "90s"
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
