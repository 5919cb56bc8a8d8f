package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"wifi-survey/agent"
	"wifi-survey/core"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub diffuse la progression aux navigateurs (SSE et WebSocket).
// C'est le ProgressSink du contrôleur local ; les agents distants
// y publient aussi via /ws/agent.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan core.ProgressMessage]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan core.ProgressMessage]struct{})}
}

// Send ne bloque jamais : un abonné trop lent perd le message.
func (h *Hub) Send(msg core.ProgressMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) Subscribe() chan core.ProgressMessage {
	ch := make(chan core.ProgressMessage, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan core.ProgressMessage) {
	h.mu.Lock()
	delete(h.subscribers, ch)
	close(ch)
	h.mu.Unlock()
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// handleWebSocket pousse chaque message de progression au navigateur.
func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		core.Log.Errorf("websocket", "erreur de connexion WebSocket : %v", err)
		return
	}
	defer conn.Close()
	core.Log.Infof("websocket", "✅ navigateur connecté (%s)", r.RemoteAddr)

	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	// la lecture ne sert qu'à détecter la fermeture côté client
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			core.Log.Infof("websocket", "🔌 navigateur déconnecté (%s)", r.RemoteAddr)
			return
		case msg := <-ch:
			if err := conn.WriteJSON(agent.WebSocketMessage{Type: "progress", Payload: msg}); err != nil {
				core.Log.Errorf("websocket", "écriture WebSocket : %v", err)
				return
			}
		}
	}
}

// handleAgentWebSocket reçoit la progression d'un agent distant et la rediffuse.
func (h *Hub) handleAgentWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		core.Log.Errorf("websocket", "erreur de connexion WebSocket : %v", err)
		return
	}
	defer conn.Close()
	core.Log.Infof("websocket", "✅ connexion établie avec l'agent %s", r.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			core.Log.Infof("websocket", "🔌 agent %s déconnecté : %v", r.RemoteAddr, err)
			return
		}

		var raw struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			core.Log.Errorf("websocket", "parsing JSON brut : %v", err)
			continue
		}

		switch raw.Type {
		case "progress":
			var msg core.ProgressMessage
			if err := json.Unmarshal(raw.Payload, &msg); err != nil {
				core.Log.Errorf("websocket", "parsing du message de progression : %v", err)
				continue
			}
			core.Log.Debugf("websocket", "📨 progression reçue de l'agent : %s", msg.Header)
			h.Send(msg)
		default:
			core.Log.Warnf("websocket", "type de message inconnu : %q", raw.Type)
		}
	}
}
