package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "gameday", cfg.MongoDatabase)
	assert.Equal(t, "aggregations", cfg.AggregationCollection)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 6, cfg.MaxRouteDepth)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GAMEDAY_MONGO_URI", "mongodb://db:27017")
	t.Setenv("GAMEDAY_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("GAMEDAY_REQUEST_TIMEOUT", "30s")
	t.Setenv("GAMEDAY_MAX_ROUTE_DEPTH", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mongodb://db:27017", cfg.MongoURI)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4, cfg.MaxRouteDepth)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("GAMEDAY_REQUEST_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsZeroDepth(t *testing.T) {
	t.Setenv("GAMEDAY_MAX_ROUTE_DEPTH", "0")
	_, err := Load()
	assert.Error(t, err)
}
