// Package config loads the service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of gameday-api.
type Config struct {
	MongoURI              string
	MongoDatabase         string
	AggregationCollection string

	HTTPAddr       string
	RequestTimeout time.Duration
	MaxRouteDepth  int

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:              getEnv("GAMEDAY_MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:         getEnv("GAMEDAY_MONGO_DATABASE", "gameday"),
		AggregationCollection: getEnv("GAMEDAY_AGGREGATION_COLLECTION", "aggregations"),
		HTTPAddr:              getEnv("GAMEDAY_HTTP_ADDR", ":8080"),
		KafkaTopic:            getEnv("GAMEDAY_KAFKA_TOPIC", "gameday.entity-changes"),
		KafkaGroupID:          getEnv("GAMEDAY_KAFKA_GROUP_ID", "gameday-index"),
	}
	if brokers := getEnv("GAMEDAY_KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	var err error
	if cfg.RequestTimeout, err = getDuration("GAMEDAY_REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxRouteDepth, err = getInt("GAMEDAY_MAX_ROUTE_DEPTH", 6); err != nil {
		return nil, err
	}
	if cfg.MaxRouteDepth < 1 {
		return nil, fmt.Errorf("GAMEDAY_MAX_ROUTE_DEPTH must be at least 1")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s is not an integer: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s is not a duration: %w", key, err)
	}
	return d, nil
}
