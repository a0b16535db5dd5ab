package interfaces

// Connection is one live bidirectional transport session tied to a single
// authenticated user. Implementations must make WriteJSON safe for
// concurrent callers; the dispatcher fans out to many connections at once.
type Connection interface {
	// WriteJSON sends a JSON text frame to the client.
	WriteJSON(v any) error

	// Close tears down the transport. Safe to call more than once.
	Close() error

	// IsOpen reports whether the connection can still accept writes.
	IsOpen() bool

	// UserID returns the ID of the user this connection authenticated as.
	UserID() string

	// Role returns the role claim carried by the handshake token. The
	// dispatcher does not trust this for role-filtered delivery; it asks
	// the Directory for the current role instead.
	Role() string
}
