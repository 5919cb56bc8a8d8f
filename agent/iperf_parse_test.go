package agent

import (
	"errors"
	"testing"
)

const splitTCP = `{
  "version": "iperf 3.17.1",
  "end": {
    "sum_sent": {"bits_per_second": 512000000, "retransmits": 7},
    "sum_received": {"bits_per_second": 498000000},
    "sum": {"bits_per_second": 1}
  }
}`

const splitUDP = `{
  "end": {
    "sum_sent": {"bits_per_second": 948000000},
    "sum_received": {"bits_per_second": 51000000},
    "sum": {"bits_per_second": 948000000, "jitter_ms": 0.42, "lost_packets": 12, "packets": 8100, "lost_percent": 0.15}
  }
}`

const legacyTCP = `{
  "end": {
    "sum": {"bits_per_second": 210000000, "retransmits": 3}
  }
}`

const legacyUDP = `{
  "end": {
    "sum": {"bits_per_second": 95000000, "jitter_ms": 1.5, "lost_packets": 0, "packets": 900}
  }
}`

func TestParseIperfResultSchemas(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		udp         bool
		bps         float64
		retransmits int
	}{
		{"split tcp uses sum_received", splitTCP, false, 498000000, 7},
		{"split udp uses sum", splitUDP, true, 948000000, 0},
		{"legacy tcp uses sum", legacyTCP, false, 210000000, 3},
		{"legacy udp uses sum", legacyUDP, true, 95000000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIperfResult([]byte(tt.raw), tt.udp)
			if err != nil {
				t.Fatalf("ParseIperfResult: %v", err)
			}
			if got.BitsPerSecond != tt.bps {
				t.Fatalf("bps = %v, want %v", got.BitsPerSecond, tt.bps)
			}
			if got.Retransmits != tt.retransmits {
				t.Fatalf("retransmits = %d, want %d", got.Retransmits, tt.retransmits)
			}
		})
	}
}

func TestParseIperfResultUDPFields(t *testing.T) {
	got, err := ParseIperfResult([]byte(splitUDP), true)
	if err != nil {
		t.Fatal(err)
	}
	if got.JitterMs == nil || *got.JitterMs != 0.42 {
		t.Fatalf("jitter = %v", got.JitterMs)
	}
	if got.LostPackets == nil || *got.LostPackets != 12 {
		t.Fatalf("lost = %v", got.LostPackets)
	}
	if got.PacketsReceived == nil || *got.PacketsReceived != 8100 {
		t.Fatalf("packets = %v", got.PacketsReceived)
	}

	// Un zéro présent reste une valeur, pas une absence.
	legacy, err := ParseIperfResult([]byte(legacyUDP), true)
	if err != nil {
		t.Fatal(err)
	}
	if legacy.LostPackets == nil || *legacy.LostPackets != 0 {
		t.Fatalf("lost = %v", legacy.LostPackets)
	}

	partial, err := ParseIperfResult([]byte(`{"end": {"sum": {"bits_per_second": 1000, "jitter_ms": 0}}}`), true)
	if err != nil {
		t.Fatal(err)
	}
	if partial.JitterMs == nil || *partial.JitterMs != 0 {
		t.Fatalf("jitter = %v", partial.JitterMs)
	}
	if partial.LostPackets != nil || partial.PacketsReceived != nil {
		t.Fatalf("absent fields = %v %v", partial.LostPackets, partial.PacketsReceived)
	}
}

func TestParseIperfResultTCPLeavesUDPFieldsEmpty(t *testing.T) {
	got, err := ParseIperfResult([]byte(legacyUDP), false)
	if err != nil {
		t.Fatal(err)
	}
	if got.JitterMs != nil || got.LostPackets != nil || got.PacketsReceived != nil {
		t.Fatalf("UDP fields should be nil for TCP: %+v", got)
	}
}

func TestParseIperfResultFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		udp  bool
	}{
		{"split tcp zero received", `{"end":{"sum_received":{"bits_per_second":0},"sum":{"bits_per_second":5}}}`, false},
		{"split udp missing sum", `{"end":{"sum_received":{"bits_per_second":51000000}}}`, true},
		{"legacy zero", `{"end":{"sum":{"bits_per_second":0}}}`, false},
		{"legacy absent", `{"end":{}}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIperfResult([]byte(tt.raw), tt.udp)
			if !errors.Is(err, ErrNoThroughput) {
				t.Fatalf("err = %v, want ErrNoThroughput", err)
			}
		})
	}
}

func TestParseIperfResultReportsToolError(t *testing.T) {
	_, err := ParseIperfResult([]byte(`{"start":{},"end":{},"error":"unable to connect to server: Connection refused"}`), false)
	if err == nil || errors.Is(err, ErrNoThroughput) {
		t.Fatalf("err = %v", err)
	}
	if _, err := ParseIperfResult([]byte("not json"), false); err == nil {
		t.Fatal("expected a decode error")
	}
}
