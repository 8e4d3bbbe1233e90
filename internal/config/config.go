// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-maintenance/internal/alerts"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	// HTTP
	Port string

	// Record store
	StoreDriver       string
	MongoURI          string
	MongoDB           string
	MongoTransactions bool
	DatabaseURL       string
	DBMaxConns        int32

	// Redis lock; empty address means in-process locking
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	// MQTT alert publishing; empty broker disables it
	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string

	// Catalog override
	CatalogFile string

	// Alert policy
	AlertTimeWindowDays  int
	AlertDistanceWindow  int64
	AlertUrgentDays      int
	AlertUrgentDistance  int64
	AlertEvalParallelism int

	// Auth
	AuthEnabled            bool
	JWTSecret              string
	JWTExpiry              time.Duration
	RateLimitRequests      int
	RateLimitWindowSeconds int
	AdminUsername          string
	AdminEmail             string
	AdminPassword          string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads a .env file when present and builds a Config from the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to load .env file")
	}

	return &Config{
		Port:                   getEnv("PORT", "8080"),
		StoreDriver:            getEnv("STORE_DRIVER", DriverMongo),
		MongoURI:               getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:                getEnv("MONGO_DB", "fleet"),
		MongoTransactions:      getEnvBool("MONGO_TRANSACTIONS", true),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		DBMaxConns:             int32(getEnvInt("DB_MAX_CONNS", 10)),
		RedisAddr:              getEnv("REDIS_ADDR", ""),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		RedisDB:                getEnvInt("REDIS_DB", 0),
		LockTTL:                getEnvDuration("LOCK_TTL", 10*time.Second),
		MQTTBroker:             getEnv("MQTT_BROKER", ""),
		MQTTClientID:           getEnv("MQTT_CLIENT_ID", "fleet-maintenance"),
		MQTTTopicPrefix:        getEnv("MQTT_TOPIC_PREFIX", "fleet/maintenance"),
		CatalogFile:            getEnv("CATALOG_FILE", ""),
		AlertTimeWindowDays:    getEnvInt("ALERT_TIME_WINDOW_DAYS", alerts.DefaultTimeWindowDays),
		AlertDistanceWindow:    int64(getEnvInt("ALERT_DISTANCE_WINDOW", alerts.DefaultDistanceWindow)),
		AlertUrgentDays:        getEnvInt("ALERT_URGENT_DAYS", alerts.DefaultUrgentDays),
		AlertUrgentDistance:    int64(getEnvInt("ALERT_URGENT_DISTANCE", alerts.DefaultUrgentDistance)),
		AlertEvalParallelism:   getEnvInt("ALERT_EVAL_PARALLELISM", 8),
		AuthEnabled:            getEnvBool("AUTH_ENABLED", true),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		JWTExpiry:              getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		RateLimitRequests:      getEnvInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindowSeconds: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		AdminUsername:          getEnv("ADMIN_USERNAME", ""),
		AdminEmail:             getEnv("ADMIN_EMAIL", ""),
		AdminPassword:          getEnv("ADMIN_PASSWORD", ""),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "text"),
	}
}

// Policy returns the default alert policy configured for the service.
func (c *Config) Policy() alerts.Policy {
	return alerts.Policy{
		TimeWindowDays: c.AlertTimeWindowDays,
		DistanceWindow: c.AlertDistanceWindow,
		UrgentDays:     c.AlertUrgentDays,
		UrgentDistance: c.AlertUrgentDistance,
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo store")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if err := c.Policy().Validate(); err != nil {
		return err
	}
	if c.AuthEnabled && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_ENABLED is true")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindowSeconds <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the standard logrus logger.
func (c *Config) ConfigureLogging() {
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("Unknown LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
