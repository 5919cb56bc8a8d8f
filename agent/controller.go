package agent

import (
	"context"
	"errors"
	"sync"

	"wifi-survey/core"
)

// ErrRunInProgress : une mesure est déjà en cours (une seule à la fois).
var ErrRunInProgress = errors.New("a survey is already running")

// ResultSink reçoit les résultats terminés (Kafka, base de données...).
type ResultSink interface {
	SaveSurveyResult(ctx context.Context, settings core.Settings, result core.SurveyResult) error
}

// Runner exécute une mesure ; *Surveyor le satisfait.
type Runner interface {
	Run(ctx context.Context, rc *RunContext, settings core.Settings) (core.SurveyOutcome, error)
}

// Controller est le point d'entrée start/stop/status/results.
// Il garantit qu'une seule mesure tourne à la fois.
type Controller struct {
	ctx    context.Context
	runner Runner
	rc     *RunContext
	sinks  []ResultSink

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// ctx borne la durée de vie des mesures (arrêt du processus), pas celle d'une requête.
func NewController(ctx context.Context, runner Runner, rc *RunContext, sinks ...ResultSink) *Controller {
	if rc == nil {
		rc = NewRunContext()
	}
	return &Controller{ctx: ctx, runner: runner, rc: rc, sinks: sinks}
}

func (c *Controller) RunContext() *RunContext { return c.rc }

// Start lance une mesure en arrière-plan et rend la main immédiatement.
// Le résultat passe à "pending" puis à "done" ou "error".
func (c *Controller) Start(settings core.Settings) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrRunInProgress
	}
	c.running = true
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	c.rc.Cancel.Reset()
	c.rc.Result.Set(core.SurveyResult{State: core.StatePending})
	core.Log.Infof("controller", "🚀 démarrage d'une mesure : %+v", settings)

	go func() {
		defer func() {
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
			close(done)
		}()

		result := c.execute(c.ctx, settings)
		c.rc.Result.Set(result)
		c.notifySinks(c.ctx, settings, result)
	}()
	return nil
}

func (c *Controller) execute(ctx context.Context, settings core.Settings) core.SurveyResult {
	outcome, err := c.runner.Run(ctx, c.rc, settings)
	if err != nil {
		return core.SurveyResult{State: core.StateError, Explanation: err.Error()}
	}
	// un statut non vide signale un refus, une annulation ou un échec
	if outcome.Status != "" {
		return core.SurveyResult{State: core.StateError, Explanation: outcome.Status}
	}
	if outcome.WifiData == nil {
		return core.SurveyResult{State: core.StateError, Explanation: "wifi data is null"}
	}
	// sans iperfData le point reste exploitable
	return core.SurveyResult{
		State:   core.StateDone,
		Results: &core.SurveyResults{WifiData: outcome.WifiData, IperfData: outcome.Throughput},
	}
}

func (c *Controller) notifySinks(ctx context.Context, settings core.Settings, result core.SurveyResult) {
	if result.State != core.StateDone {
		return
	}
	for _, sink := range c.sinks {
		if err := sink.SaveSurveyResult(ctx, settings, result); err != nil {
			core.Log.Errorf("controller", "enregistrement du résultat : %v", err)
		}
	}
}

// Stop arme le jeton d'annulation ; la mesure s'arrête au prochain point de contrôle.
func (c *Controller) Stop() {
	c.rc.Cancel.Cancel()
	core.Log.Infof("controller", "🛑 arrêt demandé")
}

func (c *Controller) Status() core.ProgressMessage { return c.rc.Progress.Latest() }

func (c *Controller) Result() core.SurveyResult { return c.rc.Result.Get() }

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Wait bloque jusqu'à la fin de la mesure en cours (s'il y en a une).
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
