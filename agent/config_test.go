package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"wifi-survey/core"
)

func TestLoadConfig(t *testing.T) {
	yml := `
agent:
  interface: wlp3s0
  reachability_timeout: 2s
survey:
  iperf_server: 192.168.1.10:5202
  iperf_server_backup: 192.168.1.11
  test_duration: 5
kafka:
  brokers: [localhost:9092]
log:
  level: debug
  components:
    progress: error
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Agent.Interface != "wlp3s0" || cfg.Agent.ReachabilityTimeout != 2*time.Second {
		t.Fatalf("agent = %+v", cfg.Agent)
	}
	if cfg.Agent.IperfBinary != "iperf3" || cfg.Agent.DisabledDelay != 500*time.Millisecond {
		t.Fatalf("defaults not applied: %+v", cfg.Agent)
	}
	if cfg.Survey.IperfServerAdrs != "192.168.1.10:5202" || cfg.Survey.TestDuration != 5 {
		t.Fatalf("survey = %+v", cfg.Survey)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.TestResultTopic != "survey-results" {
		t.Fatalf("kafka = %+v", cfg.Kafka)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Components["progress"] != "error" {
		t.Fatalf("log = %+v", cfg.Log)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Survey.IperfServerAdrs = "10.0.0.2"
	cfg.Survey.IperfServerBackupAdrs = "10.0.0.3"

	got := cfg.WithDefaults(core.Settings{})
	want := core.Settings{IperfServerAdrs: "10.0.0.2", IperfServerBackupAdrs: "10.0.0.3", TestDuration: 1, Interface: "wlan0"}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	// une requête explicite garde son serveur et n'hérite pas du secours
	got = cfg.WithDefaults(core.Settings{IperfServerAdrs: "localhost", TestDuration: 3, Interface: "wlp2s0"})
	if got.IperfServerAdrs != "localhost" || got.IperfServerBackupAdrs != "" || got.TestDuration != 3 || got.Interface != "wlp2s0" {
		t.Fatalf("got %+v", got)
	}
}
