package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	AppEnv                  string
	LogLevel                string
	LogFormat               string
	DatabaseURL             string
	DBMaxConns              int32
	DBMinConns              int32
	JWTSecret               string
	CORSOrigins             []string
	RedisURL                string
	ControlCacheTTL         time.Duration
	MQTT                    MQTTConfig
	Influx                  InfluxConfig
	RetentionDays           int
	RetentionInterval       time.Duration
}

type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         int
}

func (c MQTTConfig) Enabled() bool {
	return c.BrokerURL != ""
}

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "3000"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		AppEnv:                  strings.ToLower(getEnv("APP_ENV", "production")),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               strings.ToLower(getEnv("LOG_FORMAT", "pretty")),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 1)),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET")),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RedisURL:                strings.TrimSpace(os.Getenv("REDIS_URL")),
		ControlCacheTTL:         getDuration("CONTROL_CACHE_TTL", 30*time.Second),
		MQTT: MQTTConfig{
			BrokerURL:   strings.TrimSpace(os.Getenv("MQTT_BROKER_URL")),
			ClientID:    getEnv("MQTT_CLIENT_ID", "iot-backend"),
			Username:    strings.TrimSpace(os.Getenv("MQTT_USERNAME")),
			Password:    os.Getenv("MQTT_PASSWORD"),
			TopicPrefix: strings.Trim(getEnv("MQTT_TOPIC_PREFIX", "iot"), "/"),
			QoS:         getInt("MQTT_QOS", 1),
		},
		Influx: InfluxConfig{
			URL:    strings.TrimSpace(os.Getenv("INFLUX_URL")),
			Token:  strings.TrimSpace(os.Getenv("INFLUX_TOKEN")),
			Org:    strings.TrimSpace(os.Getenv("INFLUX_ORG")),
			Bucket: strings.TrimSpace(os.Getenv("INFLUX_BUCKET")),
		},
		RetentionDays:     getInt("RETENTION_DAYS", 0),
		RetentionInterval: getDuration("RETENTION_INTERVAL", time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS out of range")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.LogFormat != "pretty" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be pretty or json")
	}

	if c.MQTT.Enabled() && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2")
	}

	if c.Influx.Enabled() && (c.Influx.Org == "" || c.Influx.Bucket == "") {
		return fmt.Errorf("INFLUX_ORG and INFLUX_BUCKET are required when INFLUX_URL is set")
	}

	if c.RetentionDays < 0 {
		return fmt.Errorf("RETENTION_DAYS cannot be negative")
	}

	if c.RetentionDays > 0 && c.RetentionInterval <= 0 {
		return fmt.Errorf("RETENTION_INTERVAL must be positive")
	}

	return nil
}

// Development reports whether internal error details may be sent to clients.
func (c *Config) Development() bool {
	return c.AppEnv == "development"
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
