package websocket

import (
	"sync"
)

// Registry is the in-memory map from user ID to that user's current live
// connection. It is the single source of truth for who is online. Only the
// lifecycle handler mutates it; the dispatcher reads it.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
	}
}

// Register inserts or overwrites the entry for the connection's user. A
// displaced connection for the same user is simply no longer reachable
// through the registry; its own transport close will finish it off, and the
// match guard in Unregister keeps that late teardown from evicting this one.
func (r *Registry) Register(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	r.connections[conn.UserID()] = conn
	r.mu.Unlock()
}

// Unregister removes the entry for the connection's user, but only if the
// registered instance is this exact connection. A stale close callback from
// a superseded connection must not delete its replacement. Idempotent.
func (r *Registry) Unregister(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if registered, ok := r.connections[conn.UserID()]; ok && registered == conn {
		delete(r.connections, conn.UserID())
	}
}

// Get returns the current connection for a user.
func (r *Registry) Get(userID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[userID]
	return conn, ok
}

// Snapshot returns a point-in-time copy of all registered connections for
// fan-out. Register and Unregister proceed freely once it returns.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	return conns
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}
