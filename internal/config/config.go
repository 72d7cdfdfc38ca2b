package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration shared by all binaries.
// Each binary reads only the sections it needs.
type Config struct {
	ServiceName string
	Version     string
	Environment string
	LogLevel    string
	LogFormat   string
	Port        int

	// Kafka
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroupID  string
	ConsumerBatch int

	// Producer
	ProducerMaxRetries   int
	ProducerRetryBackoff time.Duration
	ProducerMaxInFlight  int
	ProducerLinger       time.Duration
	ProducerMaxMessage   int

	// Ingress
	QueueCapacity       int
	MaxEventsPerRequest int

	// Mongo
	MongoURI string
	MongoDB  string

	// ClickHouse
	ClickHouseAddr     string
	ClickHouseDB       string
	ClickHouseUser     string
	ClickHousePassword string

	// Aggregation scheduler
	LockTTL           time.Duration
	LockRetryInterval time.Duration
	CycleInterval     time.Duration

	// Live updates
	PushInterval time.Duration
}

// Load loads the configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists, but don't fail if it doesn't (could be real env vars)
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", serviceName),
		Version:     getEnv("VERSION", "dev"),
		Environment: getEnv("ENVIRONMENT", "dev"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),

		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "events_raw"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "event-processor"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "analytics"),

		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:       getEnv("CLICKHOUSE_DB", "analytics"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
	}

	var err error
	if cfg.Port, err = getEnvInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.ConsumerBatch, err = getEnvInt("CONSUMER_BATCH_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.ProducerMaxRetries, err = getEnvInt("PRODUCER_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.ProducerMaxInFlight, err = getEnvInt("PRODUCER_MAX_INFLIGHT", 1000); err != nil {
		return nil, err
	}
	if cfg.ProducerMaxMessage, err = getEnvInt("PRODUCER_MAX_MESSAGE_BYTES", 5*1024*1024); err != nil {
		return nil, err
	}
	if cfg.QueueCapacity, err = getEnvInt("ADMISSION_QUEUE_CAPACITY", 100); err != nil {
		return nil, err
	}
	if cfg.MaxEventsPerRequest, err = getEnvInt("MAX_EVENTS_PER_REQUEST", 10_000); err != nil {
		return nil, err
	}

	if cfg.ProducerRetryBackoff, err = getEnvDuration("PRODUCER_RETRY_BACKOFF", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.ProducerLinger, err = getEnvDuration("PRODUCER_LINGER", 50*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = getEnvDuration("SCHEDULER_LOCK_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockRetryInterval, err = getEnvDuration("SCHEDULER_LOCK_RETRY_INTERVAL", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.CycleInterval, err = getEnvDuration("SCHEDULER_CYCLE_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.PushInterval, err = getEnvDuration("WS_PUSH_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BOOTSTRAP_SERVERS must name at least one broker")
	}
	if cfg.QueueCapacity <= 0 {
		return nil, fmt.Errorf("ADMISSION_QUEUE_CAPACITY must be positive")
	}
	if cfg.ConsumerBatch <= 0 {
		return nil, fmt.Errorf("CONSUMER_BATCH_SIZE must be positive")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return d, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
