package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"

	"wifi-survey/core"
)

type Protocol string

const (
	TCP Protocol = "TCP"
	UDP Protocol = "UDP"
)

type Direction string

const (
	Download Direction = "Down"
	Upload   Direction = "Up"
)

// CommandRunner exécute un programme externe et renvoie sa sortie standard.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner lance réellement la commande ; stderr est joint à l'erreur.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s : %w (%s)", name, err, msg)
		}
		return out, fmt.Errorf("%s : %w", name, err)
	}
	return out, nil
}

// Prober lance un test de débit unique.
type Prober interface {
	Probe(ctx context.Context, server string, duration int, dir Direction, proto Protocol) (core.ThroughputResult, error)
}

// IperfProbe pilote le binaire iperf3.
type IperfProbe struct {
	Binary string
	Run    CommandRunner
}

func NewIperfProbe(binary string) *IperfProbe {
	if binary == "" {
		binary = "iperf3"
	}
	return &IperfProbe{Binary: binary, Run: ExecRunner}
}

// splitServer sépare un éventuel suffixe ":port" de l'adresse.
func splitServer(server string) (host, port string) {
	server = strings.TrimSpace(server)
	if h, p, err := net.SplitHostPort(server); err == nil {
		return h, p
	}
	return server, ""
}

// iperfArgs construit la ligne de commande : -R pour un téléchargement
// (serveur vers client), -u -b 0 pour l'UDP sans limite de débit, -J pour le JSON.
func iperfArgs(server string, duration int, dir Direction, proto Protocol) []string {
	host, port := splitServer(server)
	args := []string{"-c", host}
	if port != "" {
		args = append(args, "-p", port)
	}
	args = append(args, "-t", strconv.Itoa(duration))
	if dir == Download {
		args = append(args, "-R")
	}
	if proto == UDP {
		args = append(args, "-u", "-b", "0")
	}
	return append(args, "-J")
}

// Probe lance un test et renvoie le résultat normalisé. Les erreurs
// d'exécution ou de décodage remontent telles quelles : le repli sur un
// autre serveur est l'affaire de l'appelant.
func (p *IperfProbe) Probe(ctx context.Context, server string, duration int, dir Direction, proto Protocol) (core.ThroughputResult, error) {
	args := iperfArgs(server, duration, dir, proto)
	core.Log.Debugf("iperf", "%s %s", p.Binary, strings.Join(args, " "))

	out, err := p.Run(ctx, p.Binary, args...)
	if err != nil {
		// iperf3 -J écrit son erreur dans le JSON de sortie.
		var report iperfReport
		if jerr := json.Unmarshal(out, &report); jerr == nil && report.Error != "" {
			return core.ThroughputResult{}, fmt.Errorf("iperf3 %s %s vers %s : %s", proto, dir, server, report.Error)
		}
		return core.ThroughputResult{}, fmt.Errorf("iperf3 %s %s vers %s : %w", proto, dir, server, err)
	}

	result, err := ParseIperfResult(out, proto == UDP)
	if err != nil {
		return core.ThroughputResult{}, err
	}
	core.Log.Debugf("iperf", "%s %s %s : %s Mbps", server, proto, dir, core.ToMbps(result.BitsPerSecond))
	return result, nil
}
