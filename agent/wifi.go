package agent

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"wifi-survey/core"
)

var ErrNotConnected = errors.New("not connected")

// IwReader lit l'état Wi-Fi Linux avec `iw`.
type IwReader struct {
	Binary    string
	Interface string
	Run       CommandRunner
}

func NewIwReader(binary, iface string) *IwReader {
	if binary == "" {
		binary = "iw"
	}
	return &IwReader{Binary: binary, Interface: iface, Run: ExecRunner}
}

func (r *IwReader) iface(settings core.Settings) string {
	if settings.Interface != "" {
		return settings.Interface
	}
	return r.Interface
}

// Current renvoie l'association en cours (`iw dev <if> link`).
func (r *IwReader) Current(ctx context.Context, settings core.Settings) (core.WifiReading, error) {
	ifname := r.iface(settings)
	out, err := r.Run(ctx, r.Binary, "dev", ifname, "link")
	if err != nil {
		return core.WifiReading{}, fmt.Errorf("iw link %s : %w", ifname, err)
	}
	reading, connected, err := ParseLinkOutput(out)
	if err != nil {
		return core.WifiReading{}, err
	}
	if !connected {
		return core.WifiReading{}, ErrNotConnected
	}
	return reading, nil
}

// Scan liste les réseaux visibles et marque celui auquel l'interface est associée.
// Un scan actif exige souvent les droits root : on se replie sur `scan dump`.
func (r *IwReader) Scan(ctx context.Context, settings core.Settings) ([]core.ScanEntry, error) {
	ifname := r.iface(settings)
	current, err := r.Current(ctx, settings)
	if err != nil {
		return nil, err
	}

	out, err := r.Run(ctx, r.Binary, "dev", ifname, "scan")
	if err != nil {
		core.Log.Debugf("wifi", "iw scan refusé (%v), lecture du cache", err)
		out, err = r.Run(ctx, r.Binary, "dev", ifname, "scan", "dump")
		if err != nil {
			return nil, fmt.Errorf("iw scan %s : %w", ifname, err)
		}
	}
	networks, err := ParseScanOutput(out)
	if err != nil {
		return nil, err
	}
	return markCurrent(networks, current), nil
}

// markCurrent ajoute la lecture courante si le cache de scan ne la contient pas.
func markCurrent(networks []core.WifiReading, current core.WifiReading) []core.ScanEntry {
	entries := make([]core.ScanEntry, 0, len(networks)+1)
	found := false
	for _, n := range networks {
		isCurrent := n.BSSID == current.BSSID
		found = found || isCurrent
		entries = append(entries, core.ScanEntry{WifiReading: n, CurrentSSID: isCurrent})
	}
	if !found {
		entries = append(entries, core.ScanEntry{WifiReading: current, CurrentSSID: true})
	}
	return entries
}

// ParseLinkOutput décode la sortie de `iw dev <if> link`.
func ParseLinkOutput(out []byte) (core.WifiReading, bool, error) {
	var reading core.WifiReading
	connected := true
	scanner := bufio.NewScanner(bytes.NewReader(out))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.Contains(line, "Not connected"):
			connected = false
		case strings.HasPrefix(line, "Connected to "):
			bssid := strings.TrimPrefix(line, "Connected to ")
			if idx := strings.Index(bssid, " "); idx >= 0 {
				bssid = bssid[:idx]
			}
			reading.BSSID = normalizeBSSID(bssid)
		case strings.HasPrefix(line, "SSID:"):
			reading.SSID = strings.TrimSpace(strings.TrimPrefix(line, "SSID:"))
		case strings.HasPrefix(line, "freq:"):
			if freq, ok := parseFreq(line); ok {
				reading.Channel, reading.Band = core.FrequencyToChannel(freq)
			}
		case strings.HasPrefix(line, "signal:"):
			if v, ok := parseSignal(line); ok {
				reading.RSSI = v
				reading.SignalStrength = core.RSSIToPercentage(v)
			}
		case strings.HasPrefix(line, "tx bitrate:"):
			parseTxBitrate(line, &reading)
		}
	}
	if err := scanner.Err(); err != nil {
		return core.WifiReading{}, connected, fmt.Errorf("lecture sortie iw : %w", err)
	}
	return reading, connected, nil
}

// ParseScanOutput décode la sortie de `iw dev <if> scan`.
func ParseScanOutput(out []byte) ([]core.WifiReading, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	results := make([]core.WifiReading, 0, 16)
	var current *core.WifiReading

	flush := func() {
		if current == nil {
			return
		}
		if current.Security == "" {
			current.Security = "open"
		}
		results = append(results, *current)
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "BSS ") {
			flush()
			current = &core.WifiReading{BSSID: parseBSSIDLine(line), RSSI: -100}
			continue
		}
		if current == nil {
			continue
		}
		switch {
		case strings.HasPrefix(line, "freq:"):
			if freq, ok := parseFreq(line); ok {
				current.Channel, current.Band = core.FrequencyToChannel(freq)
			}
		case strings.HasPrefix(line, "signal:"):
			if v, ok := parseSignal(line); ok {
				current.RSSI = v
			}
		case strings.HasPrefix(line, "SSID:"):
			current.SSID = strings.TrimSpace(strings.TrimPrefix(line, "SSID:"))
		case strings.HasPrefix(line, "RSN:"):
			current.Security = "WPA2"
		case strings.HasPrefix(line, "WPA:") && current.Security == "":
			current.Security = "WPA"
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("lecture sortie iw : %w", err)
	}
	flush()
	for i := range results {
		results[i].SignalStrength = core.RSSIToPercentage(results[i].RSSI)
	}
	return results, nil
}

func parseBSSIDLine(line string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "BSS "))
	if idx := strings.IndexAny(rest, " \t("); idx >= 0 {
		rest = rest[:idx]
	}
	return normalizeBSSID(rest)
}

func normalizeBSSID(bssid string) string {
	return strings.ToLower(strings.TrimSpace(bssid))
}

// parseFreq accepte "freq: 5180" comme "freq: 5180.0" (iw récents).
func parseFreq(line string) (int, bool) {
	fields := strings.Fields(strings.TrimPrefix(line, "freq:"))
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return int(math.Round(v)), true
}

func parseSignal(line string) (int, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, false
	}
	return int(math.Round(v)), true
}

// parseTxBitrate lit le débit, la famille MCS et la largeur de canal, ex.
// "tx bitrate: 866.7 MBit/s VHT-MCS 9 80MHz short GI VHT-NSS 2".
func parseTxBitrate(line string, reading *core.WifiReading) {
	fields := strings.Fields(strings.TrimPrefix(line, "tx bitrate:"))
	if len(fields) == 0 {
		return
	}
	if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
		reading.TxRate = v
	}
	reading.ChannelWidth = 20
	for _, f := range fields[1:] {
		switch {
		case f == "EHT-MCS":
			reading.PhyMode = "802.11be"
		case f == "HE-MCS":
			reading.PhyMode = "802.11ax"
		case f == "VHT-MCS":
			reading.PhyMode = "802.11ac"
		case f == "MCS" && reading.PhyMode == "":
			reading.PhyMode = "802.11n"
		case strings.HasSuffix(f, "MHz"):
			if w, err := strconv.Atoi(strings.TrimSuffix(f, "MHz")); err == nil {
				reading.ChannelWidth = w
			}
		}
	}
	if reading.PhyMode == "" {
		reading.PhyMode = "802.11a/g"
	}
}
