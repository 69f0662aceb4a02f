package ws

import (
	"context"
	"sync"
	"time"
)

// Manager tracks station connections and keeps them alive.
type Manager struct {
	mu           sync.RWMutex
	connections  map[string]*Connection
	pingInterval time.Duration
}

// NewManager builds connection manager.
func NewManager(pingInterval time.Duration) *Manager {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Manager{
		connections:  make(map[string]*Connection),
		pingInterval: pingInterval,
	}
}

// Add registers a connection, replacing any previous one for the station.
func (m *Manager) Add(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[conn.StationID()] = conn
}

// Remove drops the connection for the station.
func (m *Manager) Remove(stationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, stationID)
}

// Get returns the live connection for a station, if any.
func (m *Manager) Get(stationID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.connections[stationID]
	return conn, ok
}

// Start begins the ping loop and runs until ctx is canceled.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			for _, conn := range m.connections {
				_ = conn.Ping()
			}
			m.mu.RUnlock()
		}
	}
}
