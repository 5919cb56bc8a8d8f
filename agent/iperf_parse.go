package agent

import (
	"encoding/json"
	"errors"
	"fmt"

	"wifi-survey/core"
)

// ErrNoThroughput : la sortie iperf3 ne contient aucun débit exploitable.
var ErrNoThroughput = errors.New("no bits per second found in iperf results")

type iperfSum struct {
	BitsPerSecond *float64 `json:"bits_per_second"`
	Retransmits   *int     `json:"retransmits"`
	JitterMs      *float64 `json:"jitter_ms"`
	LostPackets   *int     `json:"lost_packets"`
	Packets       *int     `json:"packets"`
	LostPercent   *float64 `json:"lost_percent"`
}

type iperfEnd struct {
	SumReceived *iperfSum `json:"sum_received"`
	SumSent     *iperfSum `json:"sum_sent"`
	Sum         *iperfSum `json:"sum"`
}

type iperfReport struct {
	End     iperfEnd `json:"end"`
	Version string   `json:"version"`
	Error   string   `json:"error"`
}

// iperfSchema : variante du JSON produit par iperf3.
type iperfSchema int

const (
	// schemaLegacy : iperf3 ancien (3.9...), un seul résumé "sum".
	schemaLegacy iperfSchema = iota
	// schemaSplit : iperf3 récent (3.17+), résumés "sum_sent"/"sum_received" séparés.
	schemaSplit
)

func (s iperfSchema) String() string {
	if s == schemaSplit {
		return "split"
	}
	return "legacy"
}

func detectSchema(end iperfEnd) iperfSchema {
	if end.SumReceived != nil {
		return schemaSplit
	}
	return schemaLegacy
}

// throughputSummary choisit le résumé qui porte le débit.
// En schéma split, sum_received d'un test UDP ne reflète qu'une capture
// partielle : le débit UDP vient du résumé global.
func (s iperfSchema) throughputSummary(end iperfEnd, udp bool) *iperfSum {
	if s == schemaSplit && !udp {
		return end.SumReceived
	}
	return end.Sum
}

func (s iperfSchema) retransmitSummary(end iperfEnd) *iperfSum {
	if s == schemaSplit {
		return end.SumSent
	}
	return end.Sum
}

// ParseIperfResult convertit la sortie JSON brute de `iperf3 -J`.
func ParseIperfResult(raw []byte, udp bool) (core.ThroughputResult, error) {
	var report iperfReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return core.ThroughputResult{}, fmt.Errorf("décodage JSON iperf3 : %w", err)
	}
	return extractThroughput(report, udp)
}

func extractThroughput(report iperfReport, udp bool) (core.ThroughputResult, error) {
	if report.Error != "" {
		return core.ThroughputResult{}, fmt.Errorf("iperf3 : %s", report.Error)
	}

	schema := detectSchema(report.End)
	var bps float64
	if sum := schema.throughputSummary(report.End, udp); sum != nil && sum.BitsPerSecond != nil {
		bps = *sum.BitsPerSecond
	}
	if bps <= 0 {
		return core.ThroughputResult{}, fmt.Errorf("%w (schema %s)", ErrNoThroughput, schema)
	}

	result := core.ThroughputResult{BitsPerSecond: bps}
	if sum := schema.retransmitSummary(report.End); sum != nil && sum.Retransmits != nil {
		result.Retransmits = *sum.Retransmits
	}
	if udp && report.End.Sum != nil {
		result.JitterMs = report.End.Sum.JitterMs
		result.LostPackets = report.End.Sum.LostPackets
		result.PacketsReceived = report.End.Sum.Packets
	}
	return result, nil
}
