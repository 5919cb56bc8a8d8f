package core

import "testing"

func TestIsConsistent(t *testing.T) {
	base := WifiReading{SSID: "lab", BSSID: "aa:bb:cc:dd:ee:ff", Band: 5, Channel: 36, RSSI: -50, SignalStrength: 71}

	tests := []struct {
		name   string
		mutate func(*WifiReading)
		want   bool
	}{
		{"identical", func(*WifiReading) {}, true},
		{"rssi and strength differ", func(w *WifiReading) { w.RSSI = -80; w.SignalStrength = 29 }, true},
		{"bssid differs", func(w *WifiReading) { w.BSSID = "11:22:33:44:55:66" }, false},
		{"ssid differs", func(w *WifiReading) { w.SSID = "guest" }, false},
		{"band differs", func(w *WifiReading) { w.Band = 2.4 }, false},
		{"channel differs", func(w *WifiReading) { w.Channel = 40 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			after := base
			tt.mutate(&after)
			if got := IsConsistent(base, after); got != tt.want {
				t.Fatalf("IsConsistent = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSignalConversion(t *testing.T) {
	if got := RSSIToPercentage(-100); got != 0 {
		t.Fatalf("RSSIToPercentage(-100) = %d", got)
	}
	if got := RSSIToPercentage(-20); got != 100 {
		t.Fatalf("RSSIToPercentage(-20) = %d", got)
	}
	if got := RSSIToPercentage(-65); got != 50 {
		t.Fatalf("RSSIToPercentage(-65) = %d", got)
	}
	for _, pct := range []int{0, 10, 50, 90, 100} {
		if got := RSSIToPercentage(PercentageToRSSI(pct)); got != pct {
			t.Fatalf("round trip %d%% => %d%%", pct, got)
		}
	}
}

func TestAverageRounded(t *testing.T) {
	if got := AverageRounded([]int{70, 71, 71}); got != 71 {
		t.Fatalf("got %d", got)
	}
	if got := AverageRounded([]int{1, 2}); got != 2 {
		t.Fatalf("got %d", got)
	}
	if got := AverageRounded(nil); got != 0 {
		t.Fatalf("got %d", got)
	}
}

func TestFrequencyToChannel(t *testing.T) {
	tests := []struct {
		freq    int
		channel int
		band    float64
	}{
		{2412, 1, 2.4},
		{2437, 6, 2.4},
		{2484, 14, 2.4},
		{5180, 36, 5},
		{5745, 149, 5},
		{5955, 1, 6},
		{900, 0, 0},
	}
	for _, tt := range tests {
		ch, band := FrequencyToChannel(tt.freq)
		if ch != tt.channel || band != tt.band {
			t.Fatalf("FrequencyToChannel(%d) = %d, %v; want %d, %v", tt.freq, ch, band, tt.channel, tt.band)
		}
	}
}
