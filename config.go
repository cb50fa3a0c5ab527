package main

import (
	"os"
	"strings"
	"time"
)

// Config holds all configuration for the service.
type Config struct {
	Port             string
	Env              string
	MongoURL         string
	MongoDB          string
	RedisURL         string
	KafkaBrokers     []string
	KafkaTopic       string
	OrderSNSTopicARN string
	ReservationTTL   time.Duration
	SweepInterval    time.Duration
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Port:             getEnv("PORT", "8084"),
		Env:              getEnv("APP_ENV", "development"),
		MongoURL:         getEnv("MONGO_URL", "mongodb://localhost:27017"),
		MongoDB:          getEnv("MONGO_DB", "commerce"),
		RedisURL:         os.Getenv("REDIS_URL"),
		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:       getEnv("KAFKA_ORDER_TOPIC", "order-events"),
		OrderSNSTopicARN: os.Getenv("ORDER_SNS_TOPIC_ARN"),
		ReservationTTL:   getEnvDuration("RESERVATION_TTL", 30*time.Minute),
		SweepInterval:    getEnvDuration("RESERVATION_SWEEP_INTERVAL", time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
