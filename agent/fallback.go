package agent

import (
	"context"
	"errors"

	"wifi-survey/core"
)

// ErrNoServers : la liste de serveurs fournie au repli est vide.
var ErrNoServers = errors.New("no servers provided for iperf test")

// FallbackRunner essaie les serveurs dans l'ordre jusqu'au premier test réussi.
type FallbackRunner struct {
	Probe Prober
	// Notify est appelé avant chaque essai (failed=false) et après chaque échec (failed=true).
	Notify func(server string, failed bool)
}

// Run incrémente le compteur du serveur à chaque essai. Si tous les serveurs
// échouent, la dernière erreur est renvoyée.
func (f FallbackRunner) Run(ctx context.Context, servers []string, duration int, dir Direction, proto Protocol, counters map[string]int) (core.ThroughputResult, error) {
	if len(servers) == 0 {
		return core.ThroughputResult{}, ErrNoServers
	}

	policy := RetryPolicy[string]{
		Candidates: servers,
		Rotate:     RotateLeft[string],
	}
	return Retry(ctx, policy, func(ctx context.Context, _ int, ordered []string) (core.ThroughputResult, error) {
		server := ordered[0]
		if counters != nil {
			counters[server]++
		}
		f.notify(server, false)

		result, err := f.Probe.Probe(ctx, server, duration, dir, proto)
		if err != nil {
			core.Log.Warnf("fallback", "test %s %s échoué sur %s, serveur suivant si disponible : %v", proto, dir, server, err)
			f.notify(server, true)
			return core.ThroughputResult{}, err
		}
		return result, nil
	})
}

func (f FallbackRunner) notify(server string, failed bool) {
	if f.Notify != nil {
		f.Notify(server, failed)
	}
}
