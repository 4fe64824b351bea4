package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string            `yaml:"environment" default:"development"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Store       StoreConfig       `yaml:"store"`
	Backend     BackendConfig     `yaml:"backend"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	ClickHouse  ClickHouseConfig  `yaml:"clickhouse"`
	Redis       RedisConfig       `yaml:"redis"`
	Cache       CacheConfig       `yaml:"cache"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"500ms"`
	CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
}

type LogConfig struct {
	Level     string `yaml:"level" default:"info"`
	Format    string `yaml:"format" default:"console"`
	Output    string `yaml:"output" default:"stdout"`
	Collector struct {
		Enabled   bool          `yaml:"enabled"`
		Topic     string        `yaml:"topic" default:"oddspulse.logs"`
		Interval  time.Duration `yaml:"interval" default:"30s"`
		Threshold int           `yaml:"threshold" default:"100"`
	} `yaml:"collector"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// StoreConfig selects the record store driver: memory, sqlite or clickhouse.
type StoreConfig struct {
	Driver     string        `yaml:"driver" default:"sqlite"`
	SQLitePath string        `yaml:"sqlite_path" default:"data/oddspulse.db"`
	Timeout    time.Duration `yaml:"timeout" default:"5s"`
}

// BackendConfig selects how record mutations reach the store: direct or kafka.
type BackendConfig struct {
	Type           string        `yaml:"type" default:"direct"`
	PublishTimeout time.Duration `yaml:"publish_timeout" default:"5s"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	RecordsTopic string   `yaml:"records_topic" default:"oddspulse.records"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"20ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID     string        `yaml:"group_id" default:"oddspulse-records"`
		StartOffset string        `yaml:"start_offset" default:"earliest"`
		Workers     int           `yaml:"workers" default:"2"`
		BufferSize  int           `yaml:"buffer_size" default:"64"`
		RetryMax    int           `yaml:"retry_max" default:"3"`
		BackoffMin  time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax  time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic    string        `yaml:"dlq_topic" default:"oddspulse.records.dlq"`
		MinBytes    int           `yaml:"min_bytes" default:"1"`
		MaxBytes    int           `yaml:"max_bytes" default:"10000000"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"oddspulse"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert" default:"true"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
	MaxIdleConns     int           `yaml:"max_idle_conns" default:"5"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size" default:"10"`
	Prefix   string `yaml:"prefix" default:"oddspulse"`
	// Layered puts an in-process LRU in front of Redis for recommendation lookups.
	Layered bool `yaml:"layered" default:"true"`
}

type CacheConfig struct {
	RecommendTTL  time.Duration `yaml:"recommend_ttl" default:"10m"`
	MemoryMaxSize int           `yaml:"memory_max_size" default:"5000"`
}

// RateLimitConfig is a fixed window: at most Requests per Window per client and route.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled" default:"true"`
	Requests int           `yaml:"requests" default:"120"`
	Window   time.Duration `yaml:"window" default:"1m"`
}

type MaintenanceConfig struct {
	Enabled     bool   `yaml:"enabled" default:"true"`
	CompactCron string `yaml:"compact_cron" default:"0 30 4 * * *"`
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads a YAML file on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides selected fields from the environment.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("ODDSPULSE_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("ODDSPULSE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := getenv("ODDSPULSE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("ODDSPULSE_STORE"); v != "" {
		c.Store.Driver = v
	}
	if v := getenv("ODDSPULSE_SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_RECORDS_TOPIC"); v != "" {
		c.Kafka.RecordsTopic = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}

func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Store.Driver {
	case "memory", "clickhouse":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver must be 'memory', 'sqlite' or 'clickhouse', got '%s'", c.Store.Driver)
	}
	switch c.Backend.Type {
	case "direct":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when backend.type is 'kafka'")
		}
		if c.Kafka.RecordsTopic == "" {
			return fmt.Errorf("kafka.records_topic is required when backend.type is 'kafka'")
		}
	default:
		return fmt.Errorf("backend.type must be 'direct' or 'kafka', got '%s'", c.Backend.Type)
	}
	if c.Log.Collector.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("log.collector requires kafka.brokers")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate_limit.requests and rate_limit.window must be positive")
	}
	if c.Maintenance.Enabled && c.Maintenance.CompactCron == "" {
		return fmt.Errorf("maintenance.compact_cron is required when maintenance is enabled")
	}
	return nil
}
