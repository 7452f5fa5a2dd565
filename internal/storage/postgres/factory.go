package postgres

import (
	"fmt"
	"strconv"

	"github.com/quiltdata/benchling-webhook-sub011/internal/storage"
)

type Factory struct{}

func (f *Factory) Create(config storage.StorageConfig) (storage.Storage, error) {
	switch cfg := config.(type) {
	case *Config:
		return NewAdapter(cfg)
	case storage.GenericConfig:
		return NewAdapter(configFromGeneric(cfg))
	default:
		return nil, fmt.Errorf("invalid config type for PostgreSQL storage")
	}
}

func (f *Factory) GetType() string {
	return "postgres"
}

func configFromGeneric(generic storage.GenericConfig) *Config {
	config := &Config{}

	if host, ok := generic["host"].(string); ok {
		config.Host = host
	}
	if database, ok := generic["database"].(string); ok {
		config.Database = database
	}
	if username, ok := generic["username"].(string); ok {
		config.Username = username
	}
	if password, ok := generic["password"].(string); ok {
		config.Password = password
	}
	if sslMode, ok := generic["sslmode"].(string); ok {
		config.SSLMode = sslMode
	}

	// Port arrives as a string from environment configuration
	switch port := generic["port"].(type) {
	case int:
		config.Port = port
	case string:
		if parsed, err := strconv.Atoi(port); err == nil {
			config.Port = parsed
		}
	}

	return config
}

func init() {
	storage.Register("postgres", &Factory{})
}
