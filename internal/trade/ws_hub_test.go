package trade

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newConnPair dials a real client/server websocket pair through a test
// server so hub tests exercise actual connections.
func newConnPair(t *testing.T) (client, server *websocket.Conn) {
	t.Helper()

	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-serverConns:
	case <-time.After(2 * time.Second):
		t.Fatal("server connection was not established")
	}
	return client, server
}

// isMember checks hub membership the same way the ping ticker does.
func (h *WSHub) isMember(conn *websocket.Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[conn]
	return ok
}

func waitForMembership(t *testing.T, h *WSHub, conn *websocket.Conn, want bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for h.isMember(conn) != want {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastDelivers(t *testing.T) {
	h := NewWSHub()
	go h.Run()

	client, server := newConnPair(t)
	h.register <- server
	waitForMembership(t, h, server, true, "conn was never registered")

	h.Broadcast(WSMessage{
		Type:    "price_update",
		AssetID: "asset1",
		Symbol:  "RGRV",
		Price:   "100.5",
	})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}

	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode broadcast: %v", err)
	}
	if msg.Type != "price_update" || msg.AssetID != "asset1" || msg.Price != "100.5" {
		t.Errorf("unexpected broadcast payload: %+v", msg)
	}
}

// A connection whose peer has gone away is dropped during broadcast.
// Membership reads from the ping tickers run concurrently with that
// removal, so this test fails under the race detector if the broadcast
// path mutates the client map without the write lock.
func TestHub_RemovesDeadConnDuringBroadcast(t *testing.T) {
	h := NewWSHub()
	go h.Run()

	client, server := newConnPair(t)
	h.register <- server
	waitForMembership(t, h, server, true, "conn was never registered")

	// Tear down the client side so server writes start failing.
	client.Close()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			h.isMember(server)
		}
	}()

	deadline := time.Now().Add(3 * time.Second)
	for h.isMember(server) {
		h.Broadcast(WSMessage{Type: "price_update", AssetID: "asset1", Price: "100.5"})
		if time.Now().After(deadline) {
			t.Fatal("dead connection was never removed from the hub")
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(stop)
	<-done
}
