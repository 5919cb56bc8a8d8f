package agent

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"wifi-survey/core"
)

// AgentSection : outils externes et temporisations de la mesure.
type AgentSection struct {
	Interface           string        `yaml:"interface"`
	IwBinary            string        `yaml:"iw_binary"`
	IperfBinary         string        `yaml:"iperf_binary"`
	ReachabilityTimeout time.Duration `yaml:"reachability_timeout"`
	DisabledDelay       time.Duration `yaml:"disabled_delay"`
}

type Config struct {
	Agent AgentSection `yaml:"agent"`

	// Paramètres par défaut d'un point (mode -once, requêtes incomplètes).
	Survey core.Settings `yaml:"survey"`

	Kafka struct {
		Brokers          []string `yaml:"brokers"`
		TestRequestTopic string   `yaml:"test_request_topic"`
		TestResultTopic  string   `yaml:"test_result_topic"`
		GroupID          string   `yaml:"group_id"`
	} `yaml:"kafka"`

	WebSocket struct {
		URL string `yaml:"url"`
	} `yaml:"websocket"`

	Log core.LogConfig `yaml:"log"`
}

// DefaultConfig renvoie la configuration utilisée sans fichier.
func DefaultConfig() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Agent.Interface == "" {
		c.Agent.Interface = "wlan0"
	}
	if c.Agent.IwBinary == "" {
		c.Agent.IwBinary = "iw"
	}
	if c.Agent.IperfBinary == "" {
		c.Agent.IperfBinary = "iperf3"
	}
	if c.Agent.ReachabilityTimeout <= 0 {
		c.Agent.ReachabilityTimeout = 3 * time.Second
	}
	if c.Agent.DisabledDelay <= 0 {
		c.Agent.DisabledDelay = 500 * time.Millisecond
	}
	if c.Survey.IperfServerAdrs == "" {
		c.Survey.IperfServerAdrs = core.NoServer
	}
	if c.Survey.TestDuration <= 0 {
		c.Survey.TestDuration = 1
	}
	if c.Kafka.TestRequestTopic == "" {
		c.Kafka.TestRequestTopic = "survey-requests"
	}
	if c.Kafka.TestResultTopic == "" {
		c.Kafka.TestResultTopic = "survey-results"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "survey-agent"
	}
}

// LoadConfig lit le fichier YAML et complète les valeurs manquantes.
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

// WithDefaults complète les champs vides d'une requête avec ceux de la config.
func (c Config) WithDefaults(s core.Settings) core.Settings {
	if s.IperfServerAdrs == "" {
		s.IperfServerAdrs = c.Survey.IperfServerAdrs
		if s.IperfServerBackupAdrs == "" {
			s.IperfServerBackupAdrs = c.Survey.IperfServerBackupAdrs
		}
	}
	if s.TestDuration <= 0 {
		s.TestDuration = c.Survey.TestDuration
	}
	if s.Interface == "" {
		s.Interface = firstNonEmpty(c.Survey.Interface, c.Agent.Interface)
	}
	return s
}
