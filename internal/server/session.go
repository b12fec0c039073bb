package server

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Session drives one chat connection from OPEN to CLOSED: every inbound text
// is echoed back to the sender and then broadcast to the whole room.
type Session struct {
	manager *ConnectionManager
	conn    *Connection
	state   atomic.Int32
}

// NewSession binds conn to manager. The session starts in CONNECTING and moves
// to OPEN when Run is called on a registered connection.
func NewSession(manager *ConnectionManager, conn *Connection) *Session {
	s := &Session{manager: manager, conn: conn}
	s.state.Store(int32(StateConnecting))
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Run processes messages until the peer disconnects, then deregisters the
// connection and tells the remaining clients. It returns the disconnect cause.
func (s *Session) Run() error {
	s.state.Store(int32(StateOpen))

	var cause error
	for {
		text, err := s.conn.Receive()
		if err != nil {
			cause = err
			break
		}
		s.handleMessage(text)
	}

	s.close()

	if errors.Is(cause, ErrDisconnected) {
		return nil
	}
	return cause
}

func (s *Session) handleMessage(text string) {
	if err := s.manager.SendPersonalMessage(YouWrote(text), s.conn); err != nil {
		s.conn.log.Debug().Err(err).Msg("failed to queue personal reply")
	}
	s.manager.Broadcast(ClientSays(s.conn.ClientID(), text))
}

func (s *Session) close() {
	if !s.state.CompareAndSwap(int32(StateOpen), int32(StateClosed)) {
		return
	}
	if s.manager.Disconnect(s.conn) {
		s.manager.Broadcast(ClientLeft(s.conn.ClientID()))
	}
	_ = s.conn.Close()
}

// YouWrote is the acknowledgement sent back to the author of a message.
func YouWrote(text string) string {
	return "You wrote: " + text
}

// ClientSays is the broadcast form of a message from clientID.
func ClientSays(clientID int64, text string) string {
	return fmt.Sprintf("Client #%d says: %s", clientID, text)
}

// ClientLeft is the notice broadcast when clientID disconnects.
func ClientLeft(clientID int64) string {
	return fmt.Sprintf("Client #%d left the chat", clientID)
}
