package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, []string{"*"}, c.Server.CORSOrigins)
	assert.Equal(t, "sqlite", c.Store.Driver)
	assert.Equal(t, "direct", c.Backend.Type)
	assert.Equal(t, 10*time.Minute, c.Cache.RecommendTTL)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, "oddspulse.records.dlq", c.Kafka.Consumer.DLQTopic)
	assert.NoError(t, c.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
server:
  port: 9090
store:
  driver: memory
rate_limit:
  requests: 5
  window: 10s
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "memory", c.Store.Driver)
	assert.Equal(t, 5, c.RateLimit.Requests)
	assert.Equal(t, 10*time.Second, c.RateLimit.Window)
	// untouched sections keep their defaults
	assert.Equal(t, 10*time.Second, c.Server.ReadTimeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown store":       "store:\n  driver: postgres\n",
		"kafka needs brokers": "backend:\n  type: kafka\n",
		"unknown backend":     "backend:\n  type: rabbit\n",
		"bad port":            "server:\n  port: 70000\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	env := map[string]string{
		"ODDSPULSE_PORT": "7000",
		"BACKEND":        "kafka",
		"KAFKA_BROKERS":  "a:9092,b:9092",
		"REDIS_ADDR":     "cache:6379",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, 7000, c.Server.Port)
	assert.Equal(t, "kafka", c.Backend.Type)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "cache:6379", c.Redis.Addr)
	assert.NoError(t, c.Validate())
}
