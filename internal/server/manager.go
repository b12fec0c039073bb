// Package server keeps the registry of live chat connections and fans
// messages out to them through the ConnectionManager type.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/Tyrowin/hellochat/internal/logger"
)

// ConnectionManager tracks live connections in the order they joined.
// Mutations hold the write lock; Broadcast iterates over a snapshot taken
// under the read lock, so a connection joining mid-broadcast may miss it.
type ConnectionManager struct {
	cfg      Config
	log      *logger.Logger
	upgrader websocket.Upgrader

	mutex       sync.RWMutex
	connections []*Connection
	closed      bool

	wg sync.WaitGroup
}

// NewConnectionManager creates an empty registry. cfg supplies connection
// limits and the origin policy used by Accept.
func NewConnectionManager(cfg Config, log *logger.Logger) *ConnectionManager {
	cfg.Sanitize()
	if log == nil {
		log = logger.NewNop()
	}

	policy := newOriginPolicy(cfg.AllowedOrigins, log)
	return &ConnectionManager{
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
	}
}

// Accept completes the WebSocket handshake for r and registers the resulting
// connection. On failure the upgrader has already answered the request.
func (m *ConnectionManager) Accept(w http.ResponseWriter, r *http.Request, clientID int64) (*Connection, error) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warn().Err(err).Int64("client_id", clientID).Msg("WebSocket upgrade failed")
		return nil, err
	}

	conn := NewConnection(ws, clientID, r.RemoteAddr, m.cfg, m.log)
	if err := m.Connect(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Connect appends conn to the registry and starts its writer. Registering the
// same connection twice has no effect. After Shutdown, conn is closed and
// ErrShuttingDown is returned.
func (m *ConnectionManager) Connect(conn *Connection) error {
	if conn == nil {
		m.log.Warn().Msg("received nil connection registration; skipping")
		return nil
	}

	m.mutex.Lock()
	if m.closed {
		m.mutex.Unlock()
		conn.log.Info().Msg("rejecting client during shutdown")
		_ = conn.Close()
		return ErrShuttingDown
	}
	for _, existing := range m.connections {
		if existing == conn {
			m.mutex.Unlock()
			return nil
		}
	}
	m.connections = append(m.connections, conn)
	count := len(m.connections)
	// wg.Add must happen under the lock Shutdown takes before it waits.
	conn.start(&m.wg)
	m.mutex.Unlock()

	conn.log.Info().Int("total", count).Msg("client connected")
	return nil
}

// Disconnect removes conn from the registry, keeping the order of the rest.
// It reports whether conn was registered; removing it again is a no-op.
func (m *ConnectionManager) Disconnect(conn *Connection) bool {
	m.mutex.Lock()
	idx := -1
	for i, existing := range m.connections {
		if existing == conn {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mutex.Unlock()
		return false
	}
	copy(m.connections[idx:], m.connections[idx+1:])
	m.connections[len(m.connections)-1] = nil
	m.connections = m.connections[:len(m.connections)-1]
	count := len(m.connections)
	m.mutex.Unlock()

	conn.log.Info().Int("total", count).Msg("client disconnected")
	return true
}

// SendPersonalMessage queues text for conn only.
func (m *ConnectionManager) SendPersonalMessage(text string, conn *Connection) error {
	if conn == nil {
		return ErrConnectionClosed
	}
	return conn.Send(text)
}

// Broadcast queues text for every registered connection in registry order and
// returns how many accepted it. A failed send is logged and skipped; a peer
// whose queue is full is closed so its session runs the disconnect path.
func (m *ConnectionManager) Broadcast(text string) int {
	connections := m.Connections()

	delivered := 0
	for _, conn := range connections {
		err := conn.Send(text)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrSendQueueFull):
			conn.log.Warn().Msg("send queue full; closing slow client")
			_ = conn.Close()
		default:
			conn.log.Debug().Err(err).Msg("skipping broadcast to closed connection")
		}
	}

	m.log.Debug().Int("targets", len(connections)).Int("delivered", delivered).Msg("broadcast")
	return delivered
}

// Connections returns a snapshot of the registry in join order.
func (m *ConnectionManager) Connections() []*Connection {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snapshot := make([]*Connection, len(m.connections))
	copy(snapshot, m.connections)
	return snapshot
}

// Count returns the number of registered connections.
func (m *ConnectionManager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.connections)
}

// Shutdown stops accepting connections, closes every registered one and
// waits for their write pumps to finish, or until timeout elapses.
func (m *ConnectionManager) Shutdown(timeout time.Duration) error {
	m.mutex.Lock()
	m.closed = true
	connections := make([]*Connection, len(m.connections))
	copy(connections, m.connections)
	m.mutex.Unlock()

	m.log.Info().Int("connections", len(connections)).Msg("shutting down all client connections")

	for _, conn := range connections {
		m.log.Debug().
			Str("session", conn.ID()).
			Str("remote", conn.RemoteAddr()).
			Int64("client_id", conn.ClientID()).
			Msg("closing connection")
		_ = conn.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Info().Msg("connection manager shutdown completed")
		return nil
	case <-time.After(timeout):
		m.log.Warn().Msg("connection manager shutdown timeout reached, some writers may still be running")
		return context.DeadlineExceeded
	}
}
