package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"wifi-survey/core"
)

const linkOutput = `Connected to AA:BB:CC:DD:EE:FF (on wlan0)
	SSID: lab-5g
	freq: 5180.0
	RX: 123456 bytes (789 packets)
	TX: 65432 bytes (321 packets)
	signal: -51 dBm
	rx bitrate: 780.0 MBit/s VHT-MCS 8 80MHz short GI VHT-NSS 2
	tx bitrate: 866.7 MBit/s VHT-MCS 9 80MHz short GI VHT-NSS 2
`

const scanOutput = `BSS aa:bb:cc:dd:ee:ff(on wlan0) -- associated
	freq: 5180
	signal: -51.00 dBm
	SSID: lab-5g
	RSN:	 * Version: 1
BSS 11:22:33:44:55:66(on wlan0)
	freq: 2437
	signal: -78.00 dBm
	SSID: guest
`

func TestParseLinkOutput(t *testing.T) {
	got, connected, err := ParseLinkOutput([]byte(linkOutput))
	if err != nil {
		t.Fatal(err)
	}
	if !connected {
		t.Fatal("expected connected")
	}
	want := core.WifiReading{
		SSID:           "lab-5g",
		BSSID:          "aa:bb:cc:dd:ee:ff",
		RSSI:           -51,
		SignalStrength: 70,
		Channel:        36,
		Band:           5,
		TxRate:         866.7,
		PhyMode:        "802.11ac",
		ChannelWidth:   80,
	}
	if got != want {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

func TestParseLinkOutputNotConnected(t *testing.T) {
	_, connected, err := ParseLinkOutput([]byte("Not connected.\n"))
	if err != nil {
		t.Fatal(err)
	}
	if connected {
		t.Fatal("expected not connected")
	}
}

func TestParseScanOutput(t *testing.T) {
	got, err := ParseScanOutput([]byte(scanOutput))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d networks", len(got))
	}
	if got[0].SSID != "lab-5g" || got[0].Security != "WPA2" || got[0].Channel != 36 {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].SSID != "guest" || got[1].Security != "open" || got[1].Band != 2.4 || got[1].Channel != 6 {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestIwReaderScanFallsBackToDumpAndMarksCurrent(t *testing.T) {
	var calls []string
	r := &IwReader{Binary: "iw", Interface: "wlan0", Run: func(_ context.Context, _ string, args ...string) ([]byte, error) {
		calls = append(calls, strings.Join(args, " "))
		switch strings.Join(args, " ") {
		case "dev wlan0 link":
			return []byte(linkOutput), nil
		case "dev wlan0 scan":
			return nil, errors.New("Operation not permitted")
		case "dev wlan0 scan dump":
			return []byte(scanOutput), nil
		}
		return nil, errors.New("unexpected")
	}}

	entries, err := r.Scan(context.Background(), core.Settings{})
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 3 {
		t.Fatalf("calls = %v", calls)
	}
	if !entries[0].CurrentSSID || entries[1].CurrentSSID {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestMarkCurrentAppendsMissingNetwork(t *testing.T) {
	current := core.WifiReading{SSID: "hidden", BSSID: "de:ad:be:ef:00:01"}
	entries := markCurrent([]core.WifiReading{{SSID: "other", BSSID: "01:02:03:04:05:06"}}, current)
	if len(entries) != 2 || !entries[1].CurrentSSID || entries[1].SSID != "hidden" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestIwReaderCurrentUsesSettingsInterface(t *testing.T) {
	r := &IwReader{Binary: "iw", Interface: "wlan0", Run: func(_ context.Context, _ string, args ...string) ([]byte, error) {
		if args[1] != "wlp3s0" {
			t.Fatalf("interface = %s", args[1])
		}
		return []byte("Not connected.\n"), nil
	}}
	_, err := r.Current(context.Background(), core.Settings{Interface: "wlp3s0"})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v", err)
	}
}
