package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	SaltServiceURL string // Required: base URL of the salt service
	ProverURL      string // Required: base URL of the proving service
	RedirectURI    string // Optional: OAuth redirect URI (default: loopback callback)

	StoreMode     string // Optional: session store mode (memory, sqlite) (default: sqlite)
	DatabaseFile  string // Optional: path to SQLite database file (default: ./zkauth.db)
	MasterKeyPath string // Optional: path to master encryption key file

	EpochGenesis   time.Time     // Optional: epoch 0 start instant (default: 2020-01-01T00:00:00Z)
	EpochLength    time.Duration // Optional: epoch duration (default: 24h)
	ValidityEpochs uint64        // Optional: key pair lifetime past the current epoch (default: 2)

	SaltTimeout      time.Duration // Optional: per-request salt service timeout (default: 2s)
	SaltMaxRetries   uint64        // Optional: salt retry bound (default: 3)
	ProverTimeout    time.Duration // Optional: per-request prover timeout (default: 45s)
	ProverMaxRetries uint64        // Optional: prover retry bound (default: 2)

	Host                 string        // Bind address (default: 127.0.0.1, the daemon is loopback-only)
	Port                 int           // HTTP server port (default: 7170)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 15m)
}

func LoadConfig() Config {
	cfg := Config{
		SaltServiceURL: os.Getenv("ZKAUTH_SALT_SERVICE_URL"),
		ProverURL:      os.Getenv("ZKAUTH_PROVER_URL"),
		RedirectURI:    getEnvOrDefault("ZKAUTH_REDIRECT_URI", "http://127.0.0.1:7170/callback"),

		StoreMode:     getEnvOrDefault("ZKAUTH_STORE_MODE", "sqlite"),
		DatabaseFile:  getEnvOrDefault("ZKAUTH_DATABASE_FILE", "zkauth.db"),
		MasterKeyPath: os.Getenv("ZKAUTH_MASTER_KEY_PATH"),

		EpochGenesis:   getEnvTimeOrDefault("ZKAUTH_EPOCH_GENESIS", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
		EpochLength:    getEnvDurationOrDefault("ZKAUTH_EPOCH_LENGTH", 24*time.Hour),
		ValidityEpochs: getEnvUintOrDefault("ZKAUTH_VALIDITY_EPOCHS", 2),

		SaltTimeout:      getEnvDurationOrDefault("ZKAUTH_SALT_TIMEOUT", 2*time.Second),
		SaltMaxRetries:   getEnvUintOrDefault("ZKAUTH_SALT_MAX_RETRIES", 3),
		ProverTimeout:    getEnvDurationOrDefault("ZKAUTH_PROVER_TIMEOUT", 45*time.Second),
		ProverMaxRetries: getEnvUintOrDefault("ZKAUTH_PROVER_MAX_RETRIES", 2),

		Host:                 getEnvOrDefault("ZKAUTH_HOST", "127.0.0.1"),
		Port:                 getEnvIntOrDefault("ZKAUTH_PORT", 7170),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 15*time.Minute),
	}

	return cfg
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

func getEnvUintOrDefault(key string, defaultValue uint64) uint64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
		return uintValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}

func getEnvTimeOrDefault(key string, defaultValue time.Time) time.Time {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.UTC()
	}

	return defaultValue
}
