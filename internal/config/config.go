package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	BusLocal = "local"
	BusRedis = "redis"
)

type Config struct {
	Env     string        `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Bus     BusConfig     `yaml:"bus"`
	Catalog CatalogConfig `yaml:"catalog"`
	Chat    ChatConfig    `yaml:"chat"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-separator:","`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET_KEY"`
	Algorithm string `yaml:"algorithm" env-default:"HS256"`
}

type StorageConfig struct {
	Driver       string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	DSN          string `yaml:"dsn" env:"DATABASE_URL"`
	MaxIdleConns int    `yaml:"max_idle_conns" env-default:"10"`
	MaxOpenConns int    `yaml:"max_open_conns" env-default:"25"`
}

type BusConfig struct {
	Driver string      `yaml:"driver" env:"BUS_DRIVER" env-default:"local"`
	Redis  RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr          string `yaml:"addr" env:"REDIS_ADDR"`
	Password      string `yaml:"password" env:"REDIS_PASSWORD"`
	DB            int    `yaml:"db" env:"REDIS_DB"`
	PoolSize      int    `yaml:"pool_size" env-default:"10"`
	ChannelPrefix string `yaml:"channel_prefix" env-default:"chat:room:"`
}

type CatalogConfig struct {
	BaseURL        string        `yaml:"base_url" env:"CATALOG_BASE_URL"`
	Timeout        time.Duration `yaml:"timeout" env-default:"3s"`
	MaxRetries     uint          `yaml:"max_retries" env-default:"3"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env-default:"100ms"`
}

type ChatConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env-default:"30s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env-default:"10s"`
	SendBuffer        int           `yaml:"send_buffer" env-default:"64"`
	MaxMessageLength  int           `yaml:"max_message_length" env-default:"4000"`
	MaxFrameBytes     int64         `yaml:"max_frame_bytes" env-default:"65536"`
	RatePerSecond     float64       `yaml:"rate_per_second" env-default:"5"`
	RateBurst         int           `yaml:"rate_burst" env-default:"10"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	cfg.setDefaults()

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"http://localhost:5000"}
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageMemory
	}
	if c.Bus.Driver == "" {
		c.Bus.Driver = BusLocal
	}
	if c.Chat.HeartbeatInterval <= 0 {
		c.Chat.HeartbeatInterval = 30 * time.Second
	}
	if c.Chat.WriteTimeout <= 0 {
		c.Chat.WriteTimeout = 10 * time.Second
	}
	if c.Chat.SendBuffer <= 0 {
		c.Chat.SendBuffer = 64
	}
	if c.Chat.MaxMessageLength <= 0 {
		c.Chat.MaxMessageLength = 4000
	}
}
