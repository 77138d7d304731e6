package app

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Issuer string // Required: issuer claim for tokens

	AccessSecret  string // Secret for signing access tokens (>= 32 bytes in prod)
	RefreshSecret string // Secret for signing refresh tokens (>= 32 bytes in prod)
	AuditFieldKey string // AES-256 key for audit field encryption (64 hex chars)

	AdminUserIDs []string // User ids granted the audit:read scope

	AllowRawMessageSignatures bool // Accept signatures over undigested challenge bytes

	ChallengeTTL         time.Duration // Challenge lifetime (default: 5m)
	AccessTTL            time.Duration // Access token lifetime (default: 15m)
	RefreshTTL           time.Duration // Refresh token lifetime (default: 30 days)
	AuditQueueSize       int           // Audit channel capacity (default: 1024)
	DatabaseFile         string        // Path to SQLite database file (default: ./auth.db)
	PepperFile           string        // Path to file containing pepper for password hashing (default: ./pepper)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:                    getEnvOrDefault("AUTH_ISSUER", "picket-auth"),
		AccessSecret:              os.Getenv("AUTH_ACCESS_SECRET"),
		RefreshSecret:             os.Getenv("AUTH_REFRESH_SECRET"),
		AuditFieldKey:             os.Getenv("AUTH_AUDIT_FIELD_KEY"),
		AllowRawMessageSignatures: getEnvBoolOrDefault("AUTH_ALLOW_UNHASHED_SIGNATURES", false),
		ChallengeTTL:              getEnvDurationOrDefault("AUTH_CHALLENGE_TTL", 5*time.Minute),
		AccessTTL:                 getEnvDurationOrDefault("AUTH_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:                getEnvDurationOrDefault("AUTH_REFRESH_TTL", 30*24*time.Hour),
		AuditQueueSize:            getEnvIntOrDefault("AUTH_AUDIT_QUEUE_SIZE", 1024),
		DatabaseFile:              getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:                getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		Env:                       getEnvOrDefault("ENV", "dev"),
		LogLevel:                  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:                 getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                      getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:       getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval:      getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	if ids := os.Getenv("AUTH_ADMIN_USER_IDS"); ids != "" {
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.AdminUserIDs = append(cfg.AdminUserIDs, id)
			}
		}
	}

	return cfg
}

// Validate enforces the secret requirements. In dev, missing secrets
// are generated ephemerally so the service starts with zero setup; in
// prod the process refuses to start instead.
func (c *Config) Validate() error {
	prod := c.Env == "prod"

	if c.AccessSecret == "" {
		if prod {
			return fmt.Errorf("AUTH_ACCESS_SECRET is required in prod")
		}
		c.AccessSecret = randomSecret()
	}
	if c.RefreshSecret == "" {
		if prod {
			return fmt.Errorf("AUTH_REFRESH_SECRET is required in prod")
		}
		c.RefreshSecret = randomSecret()
	}
	if c.AuditFieldKey == "" {
		if prod {
			return fmt.Errorf("AUTH_AUDIT_FIELD_KEY is required in prod")
		}
		c.AuditFieldKey = randomFieldKey()
	}

	if prod {
		if len(c.AccessSecret) < 32 || isPlaceholderSecret(c.AccessSecret) {
			return fmt.Errorf("AUTH_ACCESS_SECRET must be at least 32 bytes and not a placeholder")
		}
		if len(c.RefreshSecret) < 32 || isPlaceholderSecret(c.RefreshSecret) {
			return fmt.Errorf("AUTH_REFRESH_SECRET must be at least 32 bytes and not a placeholder")
		}
	}
	if c.AccessSecret == c.RefreshSecret {
		return fmt.Errorf("access and refresh secrets must differ")
	}

	if len(c.AuditFieldKey) != 64 {
		return fmt.Errorf("AUTH_AUDIT_FIELD_KEY must be 64 hex characters, got %d", len(c.AuditFieldKey))
	}
	if _, err := hex.DecodeString(c.AuditFieldKey); err != nil {
		return fmt.Errorf("AUTH_AUDIT_FIELD_KEY must be valid hex: %w", err)
	}

	return nil
}

func isPlaceholderSecret(s string) bool {
	lowered := strings.ToLower(s)
	for _, bad := range []string{"changeme", "secret", "password", "default", "example"} {
		if strings.Contains(lowered, bad) {
			return true
		}
	}
	return false
}

func randomSecret() string {
	var b [32]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

func randomFieldKey() string {
	var b [32]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
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

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
