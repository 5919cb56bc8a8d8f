package agent

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"wifi-survey/core"
)

// WebSocketMessage : enveloppe des messages échangés avec le tableau de bord.
type WebSocketMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// DialWebSocket se connecte au serveur en réessayant jusqu'à l'annulation de ctx.
func DialWebSocket(ctx context.Context, url string, retryDelay time.Duration) (*websocket.Conn, error) {
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err == nil {
			core.Log.Infof("websocket", "✅ connexion WebSocket réussie (%s)", url)
			return conn, nil
		}
		core.Log.Errorf("websocket", "échec de la connexion WebSocket : %v, nouvelle tentative dans %s", err, retryDelay)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connexion WebSocket %s : %w", url, ctx.Err())
		case <-time.After(retryDelay):
		}
	}
}

// WebSocketSink pousse la progression vers un serveur distant.
// Send ne bloque jamais : les messages passent par une file vidée par une
// goroutine d'écriture qui possède la connexion et la rétablit au besoin.
// Un message qui arrive file pleine ou pendant l'attente de reconnexion est perdu.
type WebSocketSink struct {
	URL string

	dialer  *websocket.Dialer
	backoff time.Duration

	queue     chan core.ProgressMessage
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

const (
	sinkQueueSize        = 64
	sinkHandshakeTimeout = 5 * time.Second
	sinkReconnectBackoff = 5 * time.Second
	sinkWriteTimeout     = 5 * time.Second
)

// NewWebSocketSink démarre la goroutine d'écriture. conn peut être nil :
// la connexion est alors ouverte au premier message.
func NewWebSocketSink(conn *websocket.Conn, url string) *WebSocketSink {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: sinkHandshakeTimeout,
	}
	return newWebSocketSink(conn, url, dialer, sinkReconnectBackoff)
}

func newWebSocketSink(conn *websocket.Conn, url string, dialer *websocket.Dialer, backoff time.Duration) *WebSocketSink {
	s := &WebSocketSink{
		URL:     url,
		dialer:  dialer,
		backoff: backoff,
		queue:   make(chan core.ProgressMessage, sinkQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run(conn)
	return s
}

func (s *WebSocketSink) Send(msg core.ProgressMessage) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.queue <- msg:
	default:
		core.Log.Warnf("websocket", "file pleine, message %q perdu", msg.Header)
	}
}

func (s *WebSocketSink) run(conn *websocket.Conn) {
	defer close(s.stopped)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	var retryAt time.Time
	for {
		select {
		case <-s.done:
			s.flush(conn)
			return
		case msg := <-s.queue:
			if conn == nil {
				if time.Now().Before(retryAt) {
					core.Log.Debugf("websocket", "hors ligne, message %q perdu", msg.Header)
					continue
				}
				c, _, err := s.dialer.DialContext(ctx, s.URL, nil)
				if err != nil {
					core.Log.Warnf("websocket", "message %q perdu : %v, reconnexion dans %s", msg.Header, err, s.backoff)
					retryAt = time.Now().Add(s.backoff)
					continue
				}
				core.Log.Infof("websocket", "✅ connexion WebSocket rétablie (%s)", s.URL)
				conn = c
			}
			if err := writeProgress(conn, msg); err != nil {
				core.Log.Errorf("websocket", "écriture WebSocket : %v", err)
				conn.Close()
				conn = nil
			}
		}
	}
}

// flush envoie ce qui reste dans la file puis ferme proprement la connexion.
func (s *WebSocketSink) flush(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	defer conn.Close()
	for {
		select {
		case msg := <-s.queue:
			if err := writeProgress(conn, msg); err != nil {
				return
			}
		default:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

func writeProgress(conn *websocket.Conn, msg core.ProgressMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(sinkWriteTimeout))
	if err := conn.WriteJSON(WebSocketMessage{Type: "progress", Payload: msg}); err != nil {
		return err
	}
	core.Log.Debugf("websocket", "message envoyé : %s", msg.Header)
	return nil
}

// Close arrête la goroutine d'écriture. Une connexion en cours est
// abandonnée au plus tard à l'expiration de HandshakeTimeout.
func (s *WebSocketSink) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.stopped
	return nil
}
