package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"courier/pkg/types"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// testPair is a connected WebSocket pair: the server side wrapped as a
// Connection would see it, and the raw client side for assertions.
type testPair struct {
	server *websocket.Conn
	client *websocket.Conn
	srv    *httptest.Server
}

func (p *testPair) close() {
	_ = p.client.Close()
	_ = p.server.Close()
	p.srv.Close()
}

// newTestPair dials a throwaway server and returns both ends.
func newTestPair(t *testing.T) *testPair {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("test upgrade failed: %v", err)
			return
		}
		connCh <- conn
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("test dial failed: %v", err)
	}

	select {
	case server := <-connCh:
		return &testPair{server: server, client: client, srv: srv}
	case <-time.After(2 * time.Second):
		srv.Close()
		t.Fatal("timed out waiting for server-side connection")
		return nil
	}
}

// newTestConnection wraps the server side of a fresh pair as a Connection
// for the given user.
func newTestConnection(t *testing.T, userID, role string) (*Connection, *testPair) {
	t.Helper()

	pair := newTestPair(t)
	conn := NewConnection(pair.server, &types.Identity{ID: userID, Role: role}, 16, 2*time.Second)
	return conn, pair
}

// readJSON reads one text frame from the client side and decodes it.
func readJSON(t *testing.T, client *websocket.Conn, v any) {
	t.Helper()

	if err := client.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	if err := client.ReadJSON(v); err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
}
