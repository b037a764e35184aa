package sundaews

import (
	"context"
	"sync"

	"github.com/SundaeSwap-finance/sundae-relay/sundae-ws/connectiondao"
)

// MemoryStore is a process local Store for console mode and tests. It is only
// correct when a single process serves every connection.
type MemoryStore struct {
	mu    sync.RWMutex
	conns map[string]connectiondao.Connection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conns: map[string]connectiondao.Connection{}}
}

func (m *MemoryStore) Put(_ context.Context, conn connectiondao.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.ConnectionID] = conn
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, connectionID)
	return nil
}

func (m *MemoryStore) ScanAll(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	return ids, nil
}

// Get returns the stored connection, if any.
func (m *MemoryStore) Get(connectionID string) (connectiondao.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[connectionID]
	return conn, ok
}
