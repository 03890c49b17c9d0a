package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/adrg/xdg"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/rocketscienceinc/tictactoe-ai/internal/entity"
)

const (
	StorageRedis  = "redis"
	StorageMemory = "memory"

	configFile = "tictactoe-ai/config.yml"
)

var (
	ErrUnknownStorage  = errors.New("unknown storage type")
	ErrUnknownLogLevel = errors.New("unknown log level")
)

type Config struct {
	LogLevel   string   `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string   `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string   `yaml:"socket-port" env:"SOCKET_PORT" env-default:"9091"`
	Storage    Storage  `yaml:"storage"`
	Redis      Redis    `yaml:"redis"`
	Opponent   Opponent `yaml:"opponent"`
	Gemini     Gemini   `yaml:"gemini"`
}

type Storage struct {
	Type        string        `yaml:"type" env:"STORAGE_TYPE" env-default:"redis"`
	SessionTTL  time.Duration `yaml:"session-ttl" env-default:"24h"`
	IdleTimeout time.Duration `yaml:"idle-timeout" env-default:"30m"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

type Opponent struct {
	Delay      time.Duration `yaml:"delay" env-default:"600ms"`
	Difficulty string        `yaml:"difficulty" env-default:"remote_ai"`
}

type Gemini struct {
	APIKey  string        `yaml:"api-key" env:"GEMINI_API_KEY"`
	Model   string        `yaml:"model" env-default:"gemini-3-flash-preview"`
	BaseURL string        `yaml:"base-url"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

// Load reads the file at path, overrides it with the environment and validates the result. An empty
// path reads the environment only.
func Load(path string) (*Config, error) {
	config := &Config{}

	var err error
	if path == "" {
		err = cleanenv.ReadEnv(config)
	} else {
		err = cleanenv.ReadConfig(path, config)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// FindConfigFile looks for tictactoe-ai/config.yml in the XDG config directories.
func FindConfigFile() (string, error) {
	path, err := xdg.SearchConfigFile(configFile)
	if err != nil {
		return "", fmt.Errorf("failed to find config file: %w", err)
	}

	return path, nil
}

func (that *Config) Validate() error {
	switch that.Storage.Type {
	case StorageRedis, StorageMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, that.Storage.Type)
	}

	switch that.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLogLevel, that.LogLevel)
	}

	if _, err := that.Opponent.ParseDifficulty(); err != nil {
		return err
	}

	return nil
}

func (that *Opponent) ParseDifficulty() (entity.Difficulty, error) {
	return entity.ParseDifficulty(that.Difficulty)
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
