package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"courier/internal/config"
	"courier/pkg/types"
)

// Close reasons sent with a 1008 (policy violation) close frame when a
// handshake is rejected.
const (
	CloseReasonUnauthorized = "Unauthorized"
	CloseReasonInvalidToken = "Invalid Token"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is left to the reverse proxy in front of us.
		return true
	},
}

// TokenVerifier validates the handshake token carried in the query string.
type TokenVerifier interface {
	Verify(token string) (*types.Identity, error)
}

// Handler owns the connection lifecycle: handshake authentication,
// registration, the steady-state read pump, and teardown. It is the only
// component that mutates the Registry.
type Handler struct {
	registry *Registry
	verifier TokenVerifier
	cfg      *config.WebSocketConfig
}

// NewHandler creates a WebSocket lifecycle handler.
func NewHandler(registry *Registry, verifier TokenVerifier, cfg *config.WebSocketConfig) *Handler {
	return &Handler{
		registry: registry,
		verifier: verifier,
		cfg:      cfg,
	}
}

// HandleWebSocket upgrades the request and runs the connection to
// completion. The token travels as a query parameter because browsers
// cannot attach custom headers to a WebSocket upgrade. A missing or invalid
// token terminates the attempt immediately; there is no retry window on the
// same connection.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade failures are answered over HTTP by the upgrader itself.
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		h.reject(wsConn, CloseReasonUnauthorized)
		return
	}

	identity, err := h.verifier.Verify(token)
	if err != nil {
		h.reject(wsConn, CloseReasonInvalidToken)
		return
	}

	conn := NewConnection(wsConn, identity, h.cfg.BufferSize, h.cfg.WriteTimeout)

	// Queue the welcome frame before registering so it is the first frame
	// on the wire even if a broadcast lands immediately after registration.
	if err := conn.WriteJSON(types.Welcome{Message: types.WelcomeText}); err != nil {
		log.Printf("welcome frame failed for user %s: %v", identity.ID, err)
		_ = conn.Close()
		return
	}

	h.registry.Register(conn)
	log.Printf("user connected: %s", identity.ID)

	h.readPump(conn)
}

// reject closes a freshly upgraded connection with a 1008 close frame and
// the given reason. No registry state exists yet on this path.
func (h *Handler) reject(wsConn *websocket.Conn, reason string) {
	log.Printf("websocket handshake rejected: %s", reason)
	deadline := time.Now().Add(h.cfg.WriteTimeout)
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	if err := wsConn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		log.Printf("failed to write close frame: %v", err)
	}
	_ = wsConn.Close()
}

// readPump keeps the connection alive with ping/pong and consumes inbound
// frames until the transport closes or errors. Inbound application messages
// are logged only; outbound traffic always originates from the dispatcher.
// Teardown runs exactly once regardless of how the pump exits.
func (h *Handler) readPump(conn *Connection) {
	defer func() {
		h.registry.Unregister(conn)
		_ = conn.Close()
		log.Printf("user disconnected: %s", conn.UserID())
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.cfg.WriteTimeout)
				if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error for user %s: %v", conn.UserID(), err)
			}
			return
		}

		if messageType == websocket.TextMessage {
			log.Printf("message received from %s: %s", conn.UserID(), data)
		}
	}
}
