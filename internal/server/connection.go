// Package server manages individual WebSocket connections, handling the
// outbound write pump, inbound reads, rate limiting and lifecycle control.
package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/hellochat/internal/logger"
)

// Connection is one chat peer. The session goroutine reads from it; a single
// write pump goroutine owns all writes to the socket.
type Connection struct {
	id       string
	clientID int64
	conn     *websocket.Conn
	addr     string
	log      *logger.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	pumping   atomic.Bool

	maxMessageSize int64
	rateLimiter    *rateLimiter
	pongWait       time.Duration
	writeWait      time.Duration
	pingPeriod     time.Duration
}

// NewConnection wraps an upgraded socket. conn may be nil, in which case the
// connection only queues outbound text, which is useful for exercising the
// registry without a network.
func NewConnection(conn *websocket.Conn, clientID int64, addr string, cfg Config, log *logger.Logger) *Connection {
	cfg.Sanitize()
	if log == nil {
		log = logger.NewNop()
	}

	id := uuid.NewString()
	c := &Connection{
		id:       id,
		clientID: clientID,
		conn:     conn,
		addr:     addr,
		log: log.With(func(ctx zerolog.Context) zerolog.Context {
			return ctx.Int64("client_id", clientID).Str("session", id).Str("remote", addr)
		}),
		send:           make(chan []byte, cfg.SendQueueSize),
		done:           make(chan struct{}),
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit),
		pongWait:       cfg.PongWait,
		writeWait:      cfg.WriteWait,
		pingPeriod:     cfg.pingPeriod(),
	}

	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
		c.setupReadConnection()
	}

	return c
}

// ID returns the server-side session identifier.
func (c *Connection) ID() string {
	return c.id
}

// ClientID returns the identifier the client supplied in the URL.
func (c *Connection) ClientID() int64 {
	return c.clientID
}

// RemoteAddr returns the peer address as seen by the HTTP server.
func (c *Connection) RemoteAddr() string {
	return c.addr
}

// GetSendChan returns the connection's outbound queue for reading.
func (c *Connection) GetSendChan() <-chan []byte {
	return c.send
}

// Done is closed once the connection has been closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Send queues text for delivery. It never blocks: a closed connection yields
// ErrConnectionClosed and a full queue yields ErrSendQueueFull.
func (c *Connection) Send(text string) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- []byte(text):
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Receive blocks until the next text message arrives. Once the peer is gone it
// returns an error matching ErrDisconnected; the loop must stop then.
// Non-text frames and frames over the rate limit are skipped.
func (c *Connection) Receive() (string, error) {
	if c.conn == nil {
		return "", errors.Wrap(ErrDisconnected, "no transport")
	}

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return "", errors.Wrapf(ErrDisconnected, "read failed: %v", err)
		}

		if messageType != websocket.TextMessage {
			c.log.Debug().Int("type", messageType).Msg("ignoring non-text frame")
			continue
		}

		if !c.checkRateLimit() {
			continue
		}

		return string(data), nil
	}
}

// Close stops the connection. Queued messages are flushed best-effort and a
// close frame is sent before the socket is released. Safe to call repeatedly.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	if !c.pumping.Load() {
		return c.closeTransport()
	}
	return nil
}

// start launches the write pump. It is called by the registry on Connect.
func (c *Connection) start(wg *sync.WaitGroup) {
	if c.conn == nil || !c.pumping.CompareAndSwap(false, true) {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump()
	}()
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Connection) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		c.log.Error().Err(err).Msg("failed to set initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
			c.log.Error().Err(err).Msg("failed to set read deadline in pong handler")
		}
		return nil
	})
}

// logReadError logs a read failure at a level matching how expected it is.
func (c *Connection) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn().Int64("limit", c.maxMessageSize).Msg("message exceeded maximum size")

	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.log.Debug().Err(err).Msg("client disconnected")

	case isExpectedCloseError(err):
		c.log.Debug().Err(err).Msg("connection closed")

	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn().Err(err).Msg("unexpected WebSocket close")

	default:
		c.log.Debug().Err(err).Msg("WebSocket read ended")
	}
}

// checkRateLimit verifies if the connection has exceeded rate limits
// and returns true if the message should be processed
func (c *Connection) checkRateLimit() bool {
	if !c.rateLimiter.allow() {
		c.log.Warn().Msg("rate limit exceeded; discarding message")
		return false
	}
	return true
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeOnce.Do(func() {
			close(c.done)
		})
		_ = c.closeTransport()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Connection) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message := <-c.send:
		return c.writeTextMessage(message)
	case <-ticker.C:
		return c.handlePing()
	case <-c.done:
		c.flushQueue()
		c.writeCloseMessage()
		return false
	}
}

// flushQueue writes whatever is already queued without waiting for more.
func (c *Connection) flushQueue() {
	for {
		select {
		case message := <-c.send:
			if !c.writeTextMessage(message) {
				return
			}
		default:
			return
		}
	}
}

// closeTransport closes the socket, logging only unexpected failures.
func (c *Connection) closeTransport() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	if err != nil && !isExpectedCloseError(err) {
		c.log.Error().Err(err).Msg("failed to close connection")
		return err
	}
	return nil
}

// writeTextMessage writes one queued message as its own text frame.
func (c *Connection) writeTextMessage(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		c.log.Debug().Err(err).Msg("failed to set write deadline")
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("failed to write message")
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close frame to the peer
func (c *Connection) writeCloseMessage() {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil && !isExpectedCloseError(err) {
		c.log.Debug().Err(err).Msg("failed to write close message")
	}
}

// handlePing sends a ping message to keep the connection alive
func (c *Connection) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		c.log.Debug().Err(err).Msg("failed to set write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("failed to write ping")
		}
		return false
	}
	return true
}
