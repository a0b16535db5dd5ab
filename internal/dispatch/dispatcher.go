package dispatch

import (
	"context"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"courier/internal/websocket"
	"courier/pkg/interfaces"
	"courier/pkg/types"
)

// Dispatcher fans notifications out over the connection registry. It reads
// the registry only; delivery is best-effort and an offline recipient is an
// outcome, not an error. Every delivery path wraps the message in the same
// envelope, so recipients cannot distinguish a broadcast from a direct
// notification except by content.
type Dispatcher struct {
	registry  *websocket.Registry
	directory interfaces.Directory
}

// NewDispatcher creates a dispatcher over the registry, resolving roles
// through the directory.
func NewDispatcher(registry *websocket.Registry, directory interfaces.Directory) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		directory: directory,
	}
}

// Broadcast sends message to every open registered connection and returns
// the delivery count. Connections that closed since the snapshot are
// skipped silently.
func (d *Dispatcher) Broadcast(message string) int {
	envelope := types.Envelope{Notification: message}

	delivered := 0
	for _, conn := range d.registry.Snapshot() {
		if !conn.IsOpen() {
			continue
		}
		if err := conn.WriteJSON(envelope); err != nil {
			log.Printf("broadcast delivery to %s failed: %v", conn.UserID(), err)
			continue
		}
		delivered++
	}

	log.Printf("broadcast delivered to %d clients", delivered)
	return delivered
}

// Notify sends message to a single user. It returns false when the user has
// no open connection, which signals "recipient offline" rather than a
// dispatch failure.
func (d *Dispatcher) Notify(userID, message string) bool {
	conn, ok := d.registry.Get(userID)
	if !ok || !conn.IsOpen() {
		return false
	}

	if err := conn.WriteJSON(types.Envelope{Notification: message}); err != nil {
		log.Printf("notify delivery to %s failed: %v", userID, err)
		return false
	}
	return true
}

// NotifyByRole sends message to every open connection whose user currently
// has the given role according to the directory, and returns the delivery
// count. Lookups run concurrently so one slow or failing lookup cannot
// stall the rest; a failed lookup skips only that recipient.
func (d *Dispatcher) NotifyByRole(ctx context.Context, role, message string) int {
	envelope := types.Envelope{Notification: message}
	snapshot := d.registry.Snapshot()

	var delivered atomic.Int64
	g, ctx := errgroup.WithContext(ctx)

	for _, conn := range snapshot {
		conn := conn
		g.Go(func() error {
			identity, err := d.directory.Lookup(ctx, conn.UserID())
			if err != nil {
				// The user may have been deleted after connecting.
				log.Printf("role lookup for %s failed: %v", conn.UserID(), err)
				return nil
			}
			if identity.Role != role || !conn.IsOpen() {
				return nil
			}
			if err := conn.WriteJSON(envelope); err != nil {
				log.Printf("role delivery to %s failed: %v", conn.UserID(), err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}

	// Workers never return errors; failures are per-recipient and logged.
	_ = g.Wait()

	log.Printf("role broadcast (%s) delivered to %d clients", role, delivered.Load())
	return int(delivered.Load())
}
