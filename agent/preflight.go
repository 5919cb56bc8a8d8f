package agent

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"wifi-survey/core"
)

// Port par défaut d'un serveur iperf3.
const DefaultIperfPort = "5201"

// Checker implémente SettingsValidator et ServerChecker pour Linux.
type Checker struct {
	IwBinary    string
	IperfBinary string
	Interface   string
	Timeout     time.Duration

	LookPath func(file string) (string, error)
	Dial     func(ctx context.Context, network, address string) (net.Conn, error)
}

func NewChecker(cfg AgentSection) *Checker {
	dialer := &net.Dialer{}
	return &Checker{
		IwBinary:    cfg.IwBinary,
		IperfBinary: cfg.IperfBinary,
		Interface:   cfg.Interface,
		Timeout:     cfg.ReachabilityTimeout,
		LookPath:    exec.LookPath,
		Dial:        dialer.DialContext,
	}
}

// Preflight renvoie une raison lisible si la mesure ne peut pas démarrer.
func (c *Checker) Preflight(_ context.Context, settings core.Settings) string {
	if settings.TestDuration <= 0 {
		return "Test duration must be a positive number of seconds."
	}
	if settings.Interface == "" && c.Interface == "" {
		return "No wireless interface configured."
	}
	if _, err := c.LookPath(c.IwBinary); err != nil {
		return fmt.Sprintf("Cannot find %q to read Wi-Fi information.", c.IwBinary)
	}
	if !isNoServer(settings.IperfServerAdrs) {
		if _, err := c.LookPath(c.IperfBinary); err != nil {
			return fmt.Sprintf("Cannot find %q. Install iperf3 or set the server to %q.", c.IperfBinary, core.NoServer)
		}
	}
	return ""
}

// CheckServer tente une connexion TCP vers settings.IperfServerAdrs.
func (c *Checker) CheckServer(ctx context.Context, settings core.Settings) string {
	address, reason := serverAddress(settings.IperfServerAdrs)
	if reason != "" {
		return reason
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := c.Dial(ctx, "tcp", address)
	if err != nil {
		core.Log.Debugf("preflight", "connexion à %s impossible : %v", address, err)
		return fmt.Sprintf("Cannot connect to iperf3 server at %s.", address)
	}
	_ = conn.Close()
	return ""
}

// serverAddress ajoute le port par défaut et valide l'adresse.
func serverAddress(raw string) (string, string) {
	address := strings.TrimSpace(raw)
	if address == "" {
		return "", "iperf3 server address is empty."
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultIperfPort)
	}

	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return "", fmt.Sprintf("Invalid iperf3 server address %q.", raw)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return "", fmt.Sprintf("Invalid port in iperf3 server address %q.", raw)
	}
	return address, ""
}
