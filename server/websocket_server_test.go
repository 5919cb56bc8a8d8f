package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"wifi-survey/agent"
	"wifi-survey/core"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	a, b := hub.Subscribe(), hub.Subscribe()

	hub.Send(core.ProgressMessage{Header: "one"})
	if (<-a).Header != "one" || (<-b).Header != "one" {
		t.Fatal("both subscribers should receive the message")
	}

	hub.Unsubscribe(a)
	if hub.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", hub.Subscribers())
	}
	hub.Send(core.ProgressMessage{Header: "two"})
	if (<-b).Header != "two" {
		t.Fatal("remaining subscriber missed the message")
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	for i := 0; i < 100; i++ {
		hub.Send(core.ProgressMessage{Header: "x"})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffered = %d", len(ch))
	}
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func waitSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", hub.Subscribers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Un agent distant publie sur /ws/agent, le navigateur reçoit sur /ws.
func TestAgentProgressReachesBrowser(t *testing.T) {
	api, _ := newTestAPI(&fakeRunner{})
	srv := httptest.NewServer(api.Handler([]string{"*"}))
	defer srv.Close()

	browser, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer browser.Close()
	waitSubscribers(t, api.Hub, 1)

	sink := agent.NewWebSocketSink(nil, wsURL(srv, "/ws/agent"))
	defer sink.Close()
	sink.Send(core.ProgressMessage{Type: core.MessageDone, Header: "Measurement complete", Status: "Signal strength: 70%"})

	_ = browser.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got struct {
		Type    string               `json:"type"`
		Payload core.ProgressMessage `json:"payload"`
	}
	if err := browser.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "progress" || got.Payload.Header != "Measurement complete" || got.Payload.Status != "Signal strength: 70%" {
		t.Fatalf("browser got %+v", got)
	}

	browser.Close()
	waitSubscribers(t, api.Hub, 0)
}
