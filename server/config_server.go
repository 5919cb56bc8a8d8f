package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
	} `yaml:"http"`

	GRPC struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
	} `yaml:"grpc"`

	Database struct {
		// DSN vide = pas de stockage des points.
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
}

func DefaultConfig() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 5000
	}
	if c.GRPC.Port == 0 {
		c.GRPC.Port = 50051
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"http://localhost:4200"}
	}
}

// LoadConfig lit la section serveur du fichier YAML.
func LoadConfig(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("lecture config %s : %w", filename, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config YAML %s : %w", filename, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c Config) HTTPAddr() string { return fmt.Sprintf("%s:%d", c.HTTP.Address, c.HTTP.Port) }

func (c Config) GRPCAddr() string { return fmt.Sprintf("%s:%d", c.GRPC.Address, c.GRPC.Port) }
