package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"

	"wifi-survey/agent"
	"wifi-survey/core"
)

// PointLister donne accès aux points enregistrés (*Store).
type PointLister interface {
	ListSurveyPoints(ctx context.Context, limit int) ([]SurveyPoint, error)
}

type API struct {
	Controller *agent.Controller
	Hub        *Hub
	Points     PointLister
	// Defaults complète les settings d'une requête (config de l'agent).
	Defaults func(core.Settings) core.Settings
}

// Handler renvoie toutes les routes, derrière le middleware CORS.
func (a *API) Handler(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/start-task", a.startTask)
	mux.HandleFunc("/api/events", a.events)
	mux.HandleFunc("/api/points", a.points)
	mux.HandleFunc("/ws", a.Hub.handleWebSocket)
	mux.HandleFunc("/ws/agent", a.Hub.handleAgentWebSocket)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(mux)
}

// startTask : GET ?action=status|results, POST ?action=start|stop.
func (a *API) startTask(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	core.Log.Debugf("api", "📥 %s /api/start-task?action=%s", r.Method, action)

	switch {
	case r.Method == http.MethodGet && action == "status":
		writeJSON(w, http.StatusOK, a.Controller.Status())
	case r.Method == http.MethodGet && action == "results":
		writeJSON(w, http.StatusOK, a.Controller.Result())
	case r.Method == http.MethodPost && action == "start":
		a.start(w, r)
	case r.Method == http.MethodPost && action == "stop":
		a.Controller.Stop()
		writeJSON(w, http.StatusOK, map[string]string{"message": "Task stopped"})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Invalid action %q", action)})
	}
}

func (a *API) start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Settings core.Settings `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.Log.Errorf("api", "décodage JSON : %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	settings := req.Settings
	if a.Defaults != nil {
		settings = a.Defaults(settings)
	}
	if err := a.Controller.Start(settings); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, agent.ErrRunInProgress) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, "OK")
}

// events : flux SSE des messages de progression.
func (a *API) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := a.Hub.Subscribe()
	defer a.Hub.Unsubscribe(ch)

	// premier envoi : l'état courant, pour un client qui arrive en cours de mesure
	if latest := a.Controller.Status(); latest.Type != "" {
		writeEvent(w, latest)
	}
	flusher.Flush()

	ctx := r.Context()
	ping := time.NewTicker(10 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			writeEvent(w, msg)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, msg core.ProgressMessage) {
	payload, _ := json.Marshal(msg)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func (a *API) points(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Méthode non autorisée", http.StatusMethodNotAllowed)
		return
	}
	if a.Points == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no database configured"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	points, err := a.Points.ListSurveyPoints(r.Context(), limit)
	if err != nil {
		core.Log.Errorf("api", "lecture des points : %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cannot read survey points"})
		return
	}
	if points == nil {
		points = []SurveyPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		core.Log.Errorf("api", "encodage de la réponse : %v", err)
	}
}

// ServeHTTP bloque jusqu'à l'annulation de ctx.
func ServeHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	core.Log.Infof("api", "🚀 serveur HTTP lancé sur %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serveur HTTP : %w", err)
	}
	return nil
}
