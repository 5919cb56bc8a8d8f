package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wifi-survey/core"
)

// Nombre maximal de tentatives par point de mesure.
const MaxAttempts = 3

// Textes renvoyés dans SurveyOutcome.Status ou affichés à l'utilisateur.
const (
	StatusCancelled     = "test was cancelled"
	StatusNoValidWifi   = "No valid wifi data after attempts"
	ReasonNotPerformed  = "Not performed"
	ReasonCannotConnect = "Cannot connect to iperf3 server."
)

var (
	ErrCancelled           = errors.New("cancelled")
	ErrInconsistentReading = errors.New("wifi configuration changed between scans")
	ErrNoCurrentNetwork    = errors.New("no currently associated network in scan results")
)

// SettingsValidator : raison vide = on continue.
type SettingsValidator interface {
	Preflight(ctx context.Context, settings core.Settings) string
}

// ServerChecker vérifie qu'un serveur iperf3 répond (adresse = settings.IperfServerAdrs).
type ServerChecker interface {
	CheckServer(ctx context.Context, settings core.Settings) string
}

// WifiReader lit l'état radio. Scan est appelé une fois par exécution,
// Current trois fois par tentative.
type WifiReader interface {
	Scan(ctx context.Context, settings core.Settings) ([]core.ScanEntry, error)
	Current(ctx context.Context, settings core.Settings) (core.WifiReading, error)
}

// Surveyor orchestre la mesure complète d'un point.
type Surveyor struct {
	Validator SettingsValidator
	Servers   ServerChecker
	Wifi      WifiReader
	Probe     Prober
	// DisabledDelay remplace la durée des tests iperf3 quand ils sont désactivés.
	DisabledDelay time.Duration
}

// Run mesure un point. Les échecs attendus (preflight, annulation, lectures
// incohérentes) sont renvoyés dans SurveyOutcome.Status ; seule une panne
// d'infrastructure hors de la boucle de tentatives remonte en erreur.
func (s *Surveyor) Run(ctx context.Context, rc *RunContext, settings core.Settings) (core.SurveyOutcome, error) {
	// Étape 1 : vérification des paramètres
	if reason := s.Validator.Preflight(ctx, settings); reason != "" {
		core.Log.Debugf("survey", "preflight refusé : %s", reason)
		return core.SurveyOutcome{Status: reason}, nil
	}

	// Étape 2 : choix des serveurs iperf3
	servers, noTestReason := s.selectServers(ctx, settings)

	run := &surveyRun{
		Surveyor:         s,
		rc:               rc,
		settings:         settings,
		servers:          servers,
		noTestReason:     noTestReason,
		attemptsByServer: make(map[string]int),
	}
	run.fallback = FallbackRunner{Probe: s.Probe, Notify: run.notifyServer}

	outcome, err := run.measure(ctx)
	if err != nil {
		core.Log.Errorf("survey", "erreur pendant les mesures : %v", err)
		rc.Progress.Publish(core.ProgressMessage{
			Type:   core.MessageDone,
			Header: "Error",
			Status: "Error taking measurements",
		})
		return core.SurveyOutcome{}, err
	}
	return outcome, nil
}

// selectServers renvoie la liste ordonnée des serveurs, ou une liste vide
// et la raison pour laquelle les tests de débit sont désactivés.
func (s *Surveyor) selectServers(ctx context.Context, settings core.Settings) ([]string, string) {
	primary := strings.TrimSpace(settings.IperfServerAdrs)
	if isNoServer(primary) {
		return nil, ReasonNotPerformed
	}

	backup := strings.TrimSpace(settings.IperfServerBackupAdrs)
	hasBackup := backup != "" && !isNoServer(backup) && backup != primary

	reason := s.Servers.CheckServer(ctx, settings)
	core.Log.Debugf("survey", "serveur principal %s : %q", primary, reason)
	if reason == "" {
		if hasBackup {
			return []string{primary, backup}, ""
		}
		return []string{primary}, ""
	}
	if !hasBackup {
		return nil, firstNonEmpty(reason, ReasonCannotConnect)
	}

	backupSettings := settings
	backupSettings.IperfServerAdrs = backup
	backupReason := s.Servers.CheckServer(ctx, backupSettings)
	core.Log.Debugf("survey", "serveur de secours %s : %q", backup, backupReason)
	if backupReason == "" {
		// le secours passe en tête, le principal reste en repli
		return []string{backup, primary}, ""
	}
	return nil, firstNonEmpty(reason, backupReason, ReasonCannotConnect)
}

func isNoServer(addr string) bool {
	return strings.EqualFold(strings.TrimSpace(addr), core.NoServer)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// display contient l'état affiché, converti en ProgressMessage à chaque envoi.
type display struct {
	kind     string
	header   string
	strength string
	tcp      string
	udp      string
}

func initialDisplay() display {
	return display{
		kind:     core.MessageUpdate,
		header:   "Measurement beginning",
		strength: "-",
		tcp:      "-/- Mbps",
		udp:      "-/- Mbps",
	}
}

func (d display) message() core.ProgressMessage {
	strength := d.strength
	if strength != "-" {
		strength += "%"
	}
	return core.ProgressMessage{
		Type:   d.kind,
		Header: d.header,
		Status: fmt.Sprintf("Signal strength: %s\nTCP: %s\nUDP: %s", strength, d.tcp, d.udp),
	}
}

// surveyRun porte l'état d'une seule exécution de Surveyor.Run.
type surveyRun struct {
	*Surveyor
	rc           *RunContext
	settings     core.Settings
	servers      []string
	noTestReason string
	fallback     FallbackRunner

	disp             display
	ssidName         string
	attempt          int
	attemptsByServer map[string]int
	throughput       core.ThroughputSet
	succeeded        bool
}

func (r *surveyRun) publish() {
	r.rc.Progress.Publish(r.disp.message())
}

// checkpoint est un point de contrôle de l'annulation.
func (r *surveyRun) checkpoint(ctx context.Context) error {
	if r.rc.Cancel.Cancelled() {
		return ErrCancelled
	}
	return ctx.Err()
}

func (r *surveyRun) measure(ctx context.Context) (core.SurveyOutcome, error) {
	r.disp = initialDisplay()
	r.publish()
	r.disp.header = "Measurement in progress..."

	// Étape 3 : nom du réseau courant, pour l'en-tête
	entries, err := r.Wifi.Scan(ctx, r.settings)
	if err != nil {
		return core.SurveyOutcome{}, fmt.Errorf("scan wifi : %w", err)
	}
	core.Log.Debugf("survey", "scan wifi : %d réseaux", len(entries))
	found := false
	for _, e := range entries {
		if e.CurrentSSID {
			r.ssidName, found = e.SSID, true
			break
		}
	}
	if !found {
		return core.SurveyOutcome{}, ErrNoCurrentNetwork
	}

	// Étape 4 : boucle de tentatives
	policy := RetryPolicy[string]{
		Candidates: r.servers,
		Attempts:   MaxAttempts,
		Rotate:     RotateLeft[string],
		Abort: func(err error) bool {
			return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnFailure: func(attempt int, err error) {
			core.Log.Errorf("survey", "tentative %d échouée : %v", attempt, err)
		},
	}
	reading, err := Retry(ctx, policy, r.runAttempt)

	// Étape 5 : finalisation
	switch {
	case errors.Is(err, ErrCancelled):
		return core.SurveyOutcome{Status: StatusCancelled}, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return core.SurveyOutcome{}, err
	case err != nil:
		core.Log.Warnf("survey", "aucune lecture wifi valide après %d tentatives (compteurs serveurs %v)", MaxAttempts, r.attemptsByServer)
		return core.SurveyOutcome{Status: StatusNoValidWifi}, nil
	}

	r.disp.kind = core.MessageDone
	r.disp.header = "Measurement complete"
	r.publish()

	outcome := core.SurveyOutcome{WifiData: &reading}
	if r.succeeded {
		set := r.throughput
		outcome.Throughput = &set
	}
	core.Log.Infof("survey", "✅ mesure terminée : %s %d%% (serveurs %v)", reading.SSID, reading.SignalStrength, r.attemptsByServer)
	return outcome, nil
}

// runAttempt effectue une tentative complète. Toute erreur abandonne la
// tentative ; seule ErrCancelled interrompt aussi les suivantes.
func (r *surveyRun) runAttempt(ctx context.Context, attempt int, servers []string) (core.WifiReading, error) {
	r.attempt = attempt
	if err := r.checkpoint(ctx); err != nil {
		return core.WifiReading{}, err
	}

	strengths := make([]int, 0, 3)
	header := "Measuring Wi-Fi"
	if !strings.Contains(r.ssidName, "redacted") {
		header += fmt.Sprintf(" (%s)", r.ssidName)
	}
	r.disp.header = header

	before, err := r.sample(ctx, &strengths)
	if err != nil {
		return core.WifiReading{}, err
	}
	r.publish()
	if err := r.checkpoint(ctx); err != nil {
		return core.WifiReading{}, err
	}

	r.runPair(ctx, servers, TCP)
	r.publish()
	if err := r.checkpoint(ctx); err != nil {
		return core.WifiReading{}, err
	}

	if _, err := r.sample(ctx, &strengths); err != nil {
		return core.WifiReading{}, err
	}
	r.publish()
	if err := r.checkpoint(ctx); err != nil {
		return core.WifiReading{}, err
	}

	r.runPair(ctx, servers, UDP)
	r.publish()
	if err := r.checkpoint(ctx); err != nil {
		return core.WifiReading{}, err
	}

	after, err := r.sample(ctx, &strengths)
	if err != nil {
		return core.WifiReading{}, err
	}
	if err := r.checkpoint(ctx); err != nil {
		return core.WifiReading{}, err
	}

	if !core.IsConsistent(before, after) {
		core.Log.Debugf("survey", "bssid avant %q, après %q", before.BSSID, after.BSSID)
		return core.WifiReading{}, fmt.Errorf("%w : résultats ignorés", ErrInconsistentReading)
	}

	strength := core.AverageRounded(strengths)
	reading := before
	reading.SignalStrength = strength
	reading.RSSI = core.PercentageToRSSI(strength)
	return reading, nil
}

// sample lit l'état wifi et ajoute le pourcentage de signal aux échantillons.
func (r *surveyRun) sample(ctx context.Context, strengths *[]int) (core.WifiReading, error) {
	reading, err := r.Wifi.Current(ctx, r.settings)
	if err != nil {
		return core.WifiReading{}, fmt.Errorf("lecture wifi : %w", err)
	}
	core.Log.Debugf("survey", "lecture wifi : %+v", reading)
	*strengths = append(*strengths, reading.SignalStrength)
	r.disp.strength = fmt.Sprint(core.AverageRounded(*strengths))
	return reading, nil
}

// runPair lance téléchargement puis envoi pour un protocole. Un échec est
// absorbé ici : il n'abandonne pas la tentative.
func (r *surveyRun) runPair(ctx context.Context, servers []string, proto Protocol) {
	text := &r.disp.tcp
	if proto == UDP {
		text = &r.disp.udp
	}

	if len(r.servers) == 0 {
		sleepCtx(ctx, r.DisabledDelay)
		*text = r.noTestReason
		return
	}

	duration := r.settings.TestDuration
	down, err := r.fallback.Run(ctx, servers, duration, Download, proto, r.attemptsByServer)
	if err == nil {
		r.store(proto, Download, down)
		var up core.ThroughputResult
		up, err = r.fallback.Run(ctx, servers, duration, Upload, proto, r.attemptsByServer)
		if err == nil {
			r.store(proto, Upload, up)
			*text = fmt.Sprintf("%s / %s Mbps", core.ToMbps(down.BitsPerSecond), core.ToMbps(up.BitsPerSecond))
			r.succeeded = true
			return
		}
	}

	core.Log.Warnf("survey", "tests iperf %s échoués : %v", proto, err)
	*text = "iperf failed"
	if proto == TCP {
		r.succeeded = false
	}
}

func (r *surveyRun) store(proto Protocol, dir Direction, result core.ThroughputResult) {
	res := result
	switch {
	case proto == TCP && dir == Download:
		r.throughput.TCPDownload = &res
	case proto == TCP && dir == Upload:
		r.throughput.TCPUpload = &res
	case proto == UDP && dir == Download:
		r.throughput.UDPDownload = &res
	default:
		r.throughput.UDPUpload = &res
	}
}

func (r *surveyRun) notifyServer(server string, failed bool) {
	if failed {
		r.disp.header = fmt.Sprintf("Attempt %d/%d: %s failed, trying next", r.attempt, MaxAttempts, server)
	} else {
		r.disp.header = fmt.Sprintf("Attempt %d/%d: trying %s", r.attempt, MaxAttempts, server)
	}
	r.publish()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
