package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nikolayk812/storefront/internal/port"
)

var ErrConnClosed = errors.New("connection closed")

// Conn is one live client connection.
type Conn interface {
	ID() string
	Send(ctx context.Context, n port.Notification) error
}

// Registry maps a recipient identity to its active connection.
// Identities are case-insensitive; a newer connection replaces an older one.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Conn),
	}
}

func (r *Registry) Register(identity string, conn Conn) error {
	key := normalize(identity)
	if key == "" {
		return fmt.Errorf("identity is empty")
	}

	if conn == nil {
		return fmt.Errorf("conn is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[key] = conn

	return nil
}

// Unregister removes the connection only if it is still the active one for identity.
func (r *Registry) Unregister(identity, connID string) bool {
	key := normalize(identity)

	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[key]
	if !ok || conn.ID() != connID {
		return false
	}

	delete(r.conns, key)

	return true
}

func (r *Registry) SendToRecipient(ctx context.Context, recipient string, n port.Notification) (bool, error) {
	r.mu.RLock()
	conn, ok := r.conns[normalize(recipient)]
	r.mu.RUnlock()

	if !ok {
		return false, nil
	}

	if err := conn.Send(ctx, n); err != nil {
		return false, fmt.Errorf("conn[%s].Send: %w", conn.ID(), err)
	}

	return true, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}

func normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
