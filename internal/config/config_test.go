package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ServerPort:        "3000",
		RequestTimeout:    30 * time.Second,
		LogFormat:         "pretty",
		DatabaseURL:       "postgres://localhost/iot",
		DBMaxConns:        10,
		DBMinConns:        1,
		JWTSecret:         "secret",
		RetentionInterval: time.Hour,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("accepts a complete config", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("requires a signing secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTSecret = "  "
		require.ErrorContains(t, cfg.Validate(), "JWT_SECRET")
	})

	t.Run("requires a database url", func(t *testing.T) {
		cfg := validConfig()
		cfg.DatabaseURL = ""
		require.ErrorContains(t, cfg.Validate(), "DATABASE_URL")
	})

	t.Run("rejects min conns above max conns", func(t *testing.T) {
		cfg := validConfig()
		cfg.DBMinConns = 20
		require.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown log format", func(t *testing.T) {
		cfg := validConfig()
		cfg.LogFormat = "xml"
		require.ErrorContains(t, cfg.Validate(), "LOG_FORMAT")
	})

	t.Run("checks mqtt qos only when broker is set", func(t *testing.T) {
		cfg := validConfig()
		cfg.MQTT.QoS = 7
		require.NoError(t, cfg.Validate())

		cfg.MQTT.BrokerURL = "tcp://localhost:1883"
		require.ErrorContains(t, cfg.Validate(), "MQTT_QOS")
	})

	t.Run("requires influx org and bucket when enabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Influx.URL = "http://localhost:8086"
		require.ErrorContains(t, cfg.Validate(), "INFLUX_ORG")

		cfg.Influx.Org = "home"
		cfg.Influx.Bucket = "sensors"
		require.NoError(t, cfg.Validate())
	})

	t.Run("rejects negative retention", func(t *testing.T) {
		cfg := validConfig()
		cfg.RetentionDays = -1
		require.Error(t, cfg.Validate())
	})
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("DATABASE_URL", "postgres://db/iot")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")
	t.Setenv("MQTT_TOPIC_PREFIX", "/plant/")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.JWTSecret)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, "plant", cfg.MQTT.TopicPrefix)
	require.False(t, cfg.Development())
}
