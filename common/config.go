package common

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration. Every field maps to a YAML key and can be
// overridden by its env variable.
type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"dev" validate:"oneof=dev prod"`
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-default:"records.db" validate:"required"`

	HTTPServer HTTPServer   `yaml:"http_server"`
	Auth       AuthConfig   `yaml:"auth"`
	Import     ImportConfig `yaml:"import"`
}

// HTTPServer holds settings for the gin server.
type HTTPServer struct {
	Addr            string        `yaml:"address" env:"HTTP_SERVER_ADDR" env-default:":8080" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" validate:"required,min=16"`
	Issuer    string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"nonprofit-records"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL" env-default:"12h" validate:"gt=0"`
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	// MaxConcurrency bounds the number of volunteers persisted at once.
	MaxConcurrency int `yaml:"max_concurrency" env:"IMPORT_MAX_CONCURRENCY" env-default:"8" validate:"min=1,max=64"`
	// BatchSize is the CreateInBatches chunk used inside the import transaction.
	BatchSize int `yaml:"batch_size" env:"IMPORT_BATCH_SIZE" env-default:"500" validate:"min=1"`
}

// LoadConfig reads path (if non-empty) plus the environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ConfigPath prefers CONFIG_PATH over the --config flag value.
func ConfigPath(flagValue string) string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return flagValue
}
