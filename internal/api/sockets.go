package api

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// SocketRegistry tracks open chat websockets per user and client.
type SocketRegistry struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewSocketRegistry creates an empty registry.
func NewSocketRegistry() *SocketRegistry {
	return &SocketRegistry{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// get returns the open connection of a user's client, or nil.
func (m *SocketRegistry) get(userID, clientID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if clients, ok := m.active[userID]; ok {
		return clients[clientID]
	}
	return nil
}

// Register adds conn for a user/client, closing the connection it replaces.
// The replaced connection is closed in the background since the close
// handshake waits on a peer that may no longer be reading.
func (m *SocketRegistry) Register(userID, clientID string, conn *websocket.Conn) {
	m.mu.Lock()
	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*websocket.Conn)
	}
	existing := m.active[userID][clientID]
	m.active[userID][clientID] = conn
	m.mu.Unlock()

	slog.Info("Chat socket registered", "user_id", userID, "client_id", clientID)
	if existing != nil && existing != conn {
		go func() {
			_ = existing.Close(websocket.StatusPolicyViolation, "replaced by a newer connection")
		}()
	}
}

// Unregister removes conn if it is still the current one for the user/client.
func (m *SocketRegistry) Unregister(userID, clientID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if clients, ok := m.active[userID]; ok {
		if current, exists := clients[clientID]; exists && current == conn {
			delete(clients, clientID)
			if len(clients) == 0 {
				delete(m.active, userID)
			}
			slog.Info("Chat socket unregistered", "user_id", userID, "client_id", clientID)
		}
	}
}

// Count returns the number of open connections.
func (m *SocketRegistry) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, clients := range m.active {
		n += len(clients)
	}
	return n
}

// CloseAll closes every open connection, e.g. on shutdown. The handshakes
// run concurrently and outside the lock.
func (m *SocketRegistry) CloseAll() {
	m.mu.Lock()
	var conns []*websocket.Conn
	for userID, clients := range m.active {
		for _, conn := range clients {
			conns = append(conns, conn)
		}
		delete(m.active, userID)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}()
	}
	wg.Wait()
}
