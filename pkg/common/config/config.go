package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	SyncEventsTopic   string
	SyncRequestsTopic string

	// OIDC
	OIDCIssuer string

	// Extractor pipeline
	WorkspaceRoot       string
	ConnectorRegistry   string
	PersistChunkSize    int
	ExtractorRunTimeout time.Duration
	SyncLockTTL         time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "datagem"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "datagem123"),
		PostgresDB:       getEnv("POSTGRES_DB", "datagem"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "datagem-extractor"),
		SyncEventsTopic:   getEnv("SYNC_EVENTS_TOPIC", "sync-events"),
		SyncRequestsTopic: getEnv("SYNC_REQUESTS_TOPIC", ""),

		OIDCIssuer: getEnv("OIDC_ISSUER", ""),

		WorkspaceRoot:       getEnv("WORKSPACE_ROOT", "users_private"),
		ConnectorRegistry:   getEnv("CONNECTOR_REGISTRY", ""),
		PersistChunkSize:    getIntEnv("PERSIST_CHUNK_SIZE", 500),
		ExtractorRunTimeout: getDuration("EXTRACTOR_RUN_TIMEOUT", 30*time.Minute),
		SyncLockTTL:         getDuration("SYNC_LOCK_TTL", time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
