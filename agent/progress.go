package agent

import (
	"sync"
	"sync/atomic"

	"wifi-survey/core"
)

// ProgressSink reçoit chaque message publié (websocket, SSE, terminal...).
type ProgressSink interface {
	Send(msg core.ProgressMessage)
}

// SinkFunc adapte une fonction en ProgressSink.
type SinkFunc func(msg core.ProgressMessage)

func (f SinkFunc) Send(msg core.ProgressMessage) { f(msg) }

// ProgressChannel garde le dernier message publié et le pousse au sink enregistré.
type ProgressChannel struct {
	mu     sync.RWMutex
	latest core.ProgressMessage
	sink   ProgressSink
}

func NewProgressChannel() *ProgressChannel {
	return &ProgressChannel{}
}

// SetSink enregistre (ou retire, avec nil) le sink de diffusion en direct.
func (p *ProgressChannel) SetSink(sink ProgressSink) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

// Publish mémorise le message puis le pousse au sink.
// Sans sink le message reste consultable par Latest : ce n'est pas une erreur.
// Le sink est appelé sur le goroutine de la mesure et ne doit pas bloquer.
func (p *ProgressChannel) Publish(msg core.ProgressMessage) {
	p.mu.Lock()
	p.latest = msg
	sink := p.sink
	p.mu.Unlock()

	if sink == nil {
		core.Log.Warnf("progress", "aucun client pour recevoir le message %q", msg.Header)
		return
	}
	sink.Send(msg)
}

// Latest renvoie le dernier message publié.
func (p *ProgressChannel) Latest() core.ProgressMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// CancelToken est un drapeau d'annulation consulté par polling.
// Cancel est le seul chemin d'écriture pour une demande d'arrêt ;
// Cancelled ne remet jamais le drapeau à zéro.
type CancelToken struct {
	flag atomic.Bool
}

func (c *CancelToken) Cancel()         { c.flag.Store(true) }
func (c *CancelToken) Cancelled() bool { return c.flag.Load() }

// Reset réarme le jeton avant une nouvelle exécution.
func (c *CancelToken) Reset() { c.flag.Store(false) }

// ResultSlot garde le dernier SurveyResult (pending, done ou error).
type ResultSlot struct {
	mu     sync.RWMutex
	result core.SurveyResult
}

func (r *ResultSlot) Set(result core.SurveyResult) {
	r.mu.Lock()
	r.result = result
	r.mu.Unlock()
}

func (r *ResultSlot) Get() core.SurveyResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result
}

// RunContext regroupe l'état partagé d'une exécution : progression,
// jeton d'annulation et résultat. Il est passé explicitement à Surveyor.Run.
//
// L'annulation est coopérative : elle est vérifiée aux six points de contrôle
// de chaque tentative et ne coupe jamais un test iperf3 en cours, donc la
// latence maximale d'un arrêt est la durée d'un test.
type RunContext struct {
	Progress *ProgressChannel
	Cancel   *CancelToken
	Result   *ResultSlot
}

func NewRunContext() *RunContext {
	return &RunContext{
		Progress: NewProgressChannel(),
		Cancel:   &CancelToken{},
		Result:   &ResultSlot{},
	}
}
