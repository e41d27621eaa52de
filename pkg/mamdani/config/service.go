package config

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// Service configures the inference dashboard and HTTP API.
type Service struct {
	ListenAddr       string   `toml:"listen_address" validate:"required,hostname_port"`
	// ModelPath is a TOML or YAML model file; empty selects the irrigation model.
	ModelPath        string   `toml:"model"`
	// RateLimit is compute requests per second across all clients; 0 disables limiting.
	RateLimit        float64  `toml:"rate_limit" validate:"gte=0"`
	RateBurst        int      `toml:"rate_burst" validate:"gte=1"`
	EventBuffer      int      `toml:"event_buffer" validate:"gte=1,lte=100000"`
	MaxClients       int      `toml:"max_clients" validate:"gte=1,lte=10000"`
	BatchParallelism int      `toml:"batch_parallelism" validate:"gte=0"`
	MaxBatchRows     int      `toml:"max_batch_rows" validate:"gte=1"`
	AllowedOrigins   []string `toml:"allowed_origins"`
}

// DefaultService returns the settings used when no file is given.
func DefaultService() Service {
	return Service{
		ListenAddr:       "127.0.0.1:9090",
		RateLimit:        100,
		RateBurst:        20,
		EventBuffer:      1000,
		MaxClients:       100,
		BatchParallelism: 0,
		MaxBatchRows:     10000,
		AllowedOrigins:   []string{"localhost", "127.0.0.1"},
	}
}

// LoadService reads a TOML service file over DefaultService and validates it.
func LoadService(path string) (Service, error) {
	cfg := DefaultService()
	if path == "" {
		return cfg, nil
	}
	raw, err := readLimited(path)
	if err != nil {
		return Service{}, err
	}
	err = toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&cfg)
	if err != nil {
		return Service{}, fmt.Errorf("failed to decode service configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Service{}, err
	}
	return cfg, nil
}

func (s Service) Validate() error {
	return check(&s)
}
