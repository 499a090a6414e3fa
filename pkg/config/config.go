package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Market    MarketConfig    `mapstructure:"market"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Processor ProcessorConfig `mapstructure:"processor"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"` // "json" or "console"
	Development bool   `mapstructure:"development"`
}

// PriceRange is the [Min, Max) interval an instrument's first price is drawn from.
type PriceRange struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

type MarketConfig struct {
	Symbols       []string              `mapstructure:"symbols"` // ordered
	Ranges        map[string]PriceRange `mapstructure:"ranges"`  // keys are case-insensitive
	DefaultRange  PriceRange            `mapstructure:"default_range"`
	PriceFloor    float64               `mapstructure:"price_floor"`
	WalkMagnitude float64               `mapstructure:"walk_magnitude"`
	TickInterval  time.Duration         `mapstructure:"tick_interval"`
	FanoutWorkers int                   `mapstructure:"fanout_workers"`
}

type GatewayConfig struct {
	SendBuffer     int           `mapstructure:"send_buffer"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type ProcessorConfig struct {
	NumWorkers int `mapstructure:"num_workers"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Load .env file into System Environment (if it exists)
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	// 2. Set Defaults
	setDefaults(v)

	// 3. Map dot-notation to underscores (e.g., "app.port" -> "APP_PORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Explicitly bind env vars so flat names (APP_PORT) reach nested structs (App.Port)
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.encoding", "logger.development")
	bindEnv(v, "market.symbols", "market.price_floor", "market.walk_magnitude",
		"market.tick_interval", "market.fanout_workers",
		"market.default_range.min", "market.default_range.max")
	bindEnv(v, "gateway.send_buffer", "gateway.max_message_size",
		"gateway.write_wait", "gateway.pong_wait", "gateway.ping_period")
	bindEnv(v, "redis.addr", "redis.password", "redis.db", "redis.ttl")
	bindEnv(v, "kafka.enabled", "kafka.brokers", "kafka.topic", "kafka.group_id")
	bindEnv(v, "processor.num_workers")

	// 5. Unmarshal into Struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("logger.development", false)

	v.SetDefault("market.symbols", []string{"GOOG", "TSLA", "AMZN", "META", "NVDA"})
	v.SetDefault("market.ranges", map[string]any{
		"GOOG": map[string]any{"min": 2500.0, "max": 2800.0},
		"TSLA": map[string]any{"min": 600.0, "max": 900.0},
		"AMZN": map[string]any{"min": 3000.0, "max": 3500.0},
		"META": map[string]any{"min": 250.0, "max": 350.0},
		"NVDA": map[string]any{"min": 400.0, "max": 700.0},
	})
	v.SetDefault("market.default_range.min", 100.0)
	v.SetDefault("market.default_range.max", 500.0)
	v.SetDefault("market.price_floor", 1.0)
	v.SetDefault("market.walk_magnitude", 0.01)
	v.SetDefault("market.tick_interval", time.Second)
	v.SetDefault("market.fanout_workers", 4)

	v.SetDefault("gateway.send_buffer", 256)
	v.SetDefault("gateway.max_message_size", 512*1024)
	v.SetDefault("gateway.write_wait", 5*time.Second)
	v.SetDefault("gateway.pong_wait", 60*time.Second)
	v.SetDefault("gateway.ping_period", 50*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Hour)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "market_ticks")
	v.SetDefault("kafka.group_id", "stock-processor-group")

	v.SetDefault("processor.num_workers", 4)
}

// Validate rejects configurations the gateway cannot start with.
func (c *Config) Validate() error {
	m := c.Market
	if len(m.Symbols) == 0 {
		return fmt.Errorf("market symbols cannot be empty")
	}
	if m.TickInterval <= 0 {
		return fmt.Errorf("market tick_interval must be positive, got %s", m.TickInterval)
	}
	if m.PriceFloor <= 0 {
		return fmt.Errorf("market price_floor must be positive, got %v", m.PriceFloor)
	}
	if m.WalkMagnitude <= 0 || m.WalkMagnitude > 1 {
		return fmt.Errorf("market walk_magnitude must be in (0, 1], got %v", m.WalkMagnitude)
	}
	if m.FanoutWorkers < 1 {
		return fmt.Errorf("market fanout_workers must be at least 1, got %d", m.FanoutWorkers)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	if c.Processor.NumWorkers < 1 {
		return fmt.Errorf("processor num_workers must be at least 1, got %d", c.Processor.NumWorkers)
	}
	return nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
