package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/shubham-shewale/stock-quotes/pkg/models"
)

// Config holds all configuration for the quotes, processor and gateway binaries
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
}

type AppConfig struct {
	Port        string   `mapstructure:"port"`
	Env         string   `mapstructure:"env"` // e.g., "local", "prod"
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // "json" or "console"
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	GroupID    string   `mapstructure:"group_id"`
	Partitions int      `mapstructure:"partitions"`
}

// DatabaseConfig configures the quote persistence sink. An empty DSN disables it.
type DatabaseConfig struct {
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type SimulatorConfig struct {
	TickInterval      time.Duration `mapstructure:"tick_interval"`
	ReshuffleInterval time.Duration `mapstructure:"reshuffle_interval"`
	PinnedSymbol      string        `mapstructure:"pinned_symbol"`
	Seed              int64         `mapstructure:"seed"` // 0 seeds from the clock
}

type StreamConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	MaxWait  time.Duration `mapstructure:"max_wait"`
}

type ProcessorConfig struct {
	NumWorkers    int           `mapstructure:"num_workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type GatewayConfig struct {
	Port string `mapstructure:"port"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// .env values become real env vars so AutomaticEnv sees them
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	setDefaults(v)

	// "app.port" -> "APP_PORT"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees env vars for keys viper already knows about
	bindEnv(v, "app.port", "app.env", "app.cors_origins")
	bindEnv(v, "logger.level", "logger.encoding")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.enabled", "kafka.brokers", "kafka.topic", "kafka.group_id", "kafka.partitions")
	bindEnv(v, "database.dsn", "database.auto_migrate")
	bindEnv(v, "simulator.tick_interval", "simulator.reshuffle_interval", "simulator.pinned_symbol", "simulator.seed")
	bindEnv(v, "stream.interval", "stream.max_wait")
	bindEnv(v, "processor.num_workers", "processor.batch_size", "processor.flush_interval")
	bindEnv(v, "gateway.port")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.cors_origins", []string{"*"})

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "quotes")
	v.SetDefault("kafka.group_id", "quote-processor-group")
	v.SetDefault("kafka.partitions", 4)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("simulator.tick_interval", 3*time.Second)
	v.SetDefault("simulator.reshuffle_interval", 2*time.Minute)
	v.SetDefault("simulator.pinned_symbol", "RHT")
	v.SetDefault("simulator.seed", 0)

	v.SetDefault("stream.interval", 2*time.Second)
	v.SetDefault("stream.max_wait", 2*time.Second)

	v.SetDefault("processor.num_workers", 4)
	v.SetDefault("processor.batch_size", 100)
	v.SetDefault("processor.flush_interval", time.Second)

	v.SetDefault("gateway.port", ":8081")
}

func (c *Config) validate() error {
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	if c.Simulator.TickInterval <= 0 || c.Simulator.ReshuffleInterval <= 0 {
		return fmt.Errorf("simulator intervals must be positive")
	}
	if c.Stream.Interval <= 0 || c.Stream.MaxWait <= 0 {
		return fmt.Errorf("stream interval and max wait must be positive")
	}

	// empty disables the pin
	c.Simulator.PinnedSymbol = strings.ToUpper(strings.TrimSpace(c.Simulator.PinnedSymbol))
	if p := c.Simulator.PinnedSymbol; p != "" && !models.DefaultRegistry().Contains(p) {
		return fmt.Errorf("pinned symbol %q is not a listed symbol", p)
	}
	if c.Processor.NumWorkers <= 0 {
		return fmt.Errorf("processor needs at least one worker, got %d", c.Processor.NumWorkers)
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
