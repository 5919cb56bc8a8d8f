package agent

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"wifi-survey/core"
)

func newTestChecker(missing ...string) *Checker {
	return &Checker{
		IwBinary:    "iw",
		IperfBinary: "iperf3",
		Interface:   "wlan0",
		Timeout:     time.Second,
		LookPath: func(file string) (string, error) {
			for _, m := range missing {
				if m == file {
					return "", errors.New("not found")
				}
			}
			return "/usr/bin/" + file, nil
		},
	}
}

func TestPreflight(t *testing.T) {
	tests := []struct {
		name     string
		missing  []string
		settings core.Settings
		wantSub  string
	}{
		{"ok", nil, core.Settings{IperfServerAdrs: "10.0.0.2", TestDuration: 5}, ""},
		{"zero duration", nil, core.Settings{IperfServerAdrs: "10.0.0.2"}, "duration"},
		{"missing iw", []string{"iw"}, core.Settings{IperfServerAdrs: "10.0.0.2", TestDuration: 5}, `"iw"`},
		{"missing iperf3", []string{"iperf3"}, core.Settings{IperfServerAdrs: "10.0.0.2", TestDuration: 5}, "iperf3"},
		{"iperf3 not needed without server", []string{"iperf3"}, core.Settings{IperfServerAdrs: "localhost", TestDuration: 5}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestChecker(tt.missing...).Preflight(context.Background(), tt.settings)
			if tt.wantSub == "" && got != "" {
				t.Fatalf("reason = %q", got)
			}
			if tt.wantSub != "" && !strings.Contains(got, tt.wantSub) {
				t.Fatalf("reason = %q, want it to mention %q", got, tt.wantSub)
			}
		})
	}
}

func TestCheckServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	c := newTestChecker()
	dialer := &net.Dialer{}
	c.Dial = dialer.DialContext

	if reason := c.CheckServer(context.Background(), core.Settings{IperfServerAdrs: ln.Addr().String()}); reason != "" {
		t.Fatalf("reachable server reported %q", reason)
	}

	addr := ln.Addr().String()
	ln.Close()
	if reason := c.CheckServer(context.Background(), core.Settings{IperfServerAdrs: addr}); reason == "" {
		t.Fatal("closed port reported reachable")
	}
}

func TestServerAddress(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"10.0.0.2", "10.0.0.2:5201", true},
		{"10.0.0.2:5202", "10.0.0.2:5202", true},
		{"iperf.example.net", "iperf.example.net:5201", true},
		{"10.0.0.2:99999", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, reason := serverAddress(tt.raw)
		if tt.ok && (reason != "" || got != tt.want) {
			t.Fatalf("serverAddress(%q) = %q, %q", tt.raw, got, reason)
		}
		if !tt.ok && reason == "" {
			t.Fatalf("serverAddress(%q) accepted", tt.raw)
		}
	}
}
