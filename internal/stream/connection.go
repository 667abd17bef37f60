package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	sendChSize   = 256
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

// replaced in tests
var (
	ackTimeout     = 10 * time.Second
	reconnectDelay = time.Second
)

// connection owns one follower socket at a time. Each socket gets its own
// read and write goroutine; both stop when that socket fails, and only the
// first failure of the current socket starts a reconnect.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	stop   chan struct{} // closed when conn fails
	closed bool

	sendCh chan []byte
	ackCh  chan AckMessage
	done   chan struct{} // closed on shutdown

	wsURL  string
	secret string

	// frames written to every new socket before queued sends resume
	replay func() [][]byte

	logger *slog.Logger
}

func newConnection(logger *slog.Logger, replay func() [][]byte) *connection {
	return &connection{
		sendCh: make(chan []byte, sendChSize),
		ackCh:  make(chan AckMessage, ackChSize),
		done:   make(chan struct{}),
		replay: replay,
		logger: logger,
	}
}

// dial connects to the follower and starts the socket loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}
	c.start(conn)
	return nil
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// start makes conn current and runs its loops. A connection closed in the
// meantime drops conn instead.
func (c *connection) start(conn *ws.Conn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return false
	}
	stop := make(chan struct{})
	c.conn, c.stop = conn, stop
	c.mu.Unlock()

	go c.writeLoop(conn, stop)
	go c.readLoop(conn)
	return true
}

// fail retires conn. Later failures of the same socket, and failures of a
// socket that is no longer current, are ignored.
func (c *connection) fail(conn *ws.Conn, err error) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	close(c.stop)
	c.mu.Unlock()

	_ = conn.Close()
	c.logger.Warn("stream connection lost", "error", err)
	go c.reconnect()
}

func writeFrame(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// writeLoop is the only writer of conn while conn is current.
func (c *connection) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case data := <-c.sendCh:
			if err := writeFrame(conn, data); err != nil {
				c.fail(conn, fmt.Errorf("write: %w", err))
				return
			}
		}
	}
}

// readLoop routes acks from the follower to ackCh.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.fail(conn, fmt.Errorf("read: %w", err))
			}
			return
		}

		var ack AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			c.logger.Debug("non-ack message received", "raw", string(message))
			continue
		}
		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("ack channel full, dropping", "for", ack.For)
		}
	}
}

// reconnect dials with exponential backoff and brings the follower back up
// to date before queued sends resume.
func (c *connection) reconnect() {
	backoff := reconnectDelay
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)

		c.logger.Info("reconnecting stream", "attempt", attempt)
		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("stream reconnect failed", "attempt", attempt, "error", err)
			continue
		}
		n, err := c.replayOn(conn)
		if err != nil {
			c.logger.Warn("stream replay failed", "attempt", attempt, "error", err)
			_ = conn.Close()
			continue
		}
		if c.start(conn) {
			c.logger.Info("stream reconnected", "attempt", attempt, "replayed", n)
		}
		return
	}

	c.logger.Error("stream reconnect gave up", "maxAttempts", maxReconnect)
}

func (c *connection) replayOn(conn *ws.Conn) (int, error) {
	if c.replay == nil {
		return 0, nil
	}
	frames := c.replay()
	for _, data := range frames {
		if err := writeFrame(conn, data); err != nil {
			return 0, err
		}
	}
	return len(frames), nil
}

// send queues data for the current socket. It never blocks; a full queue
// drops data.
func (c *connection) send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		c.logger.Warn("stream send channel full, dropping message")
		return false
	}
}

// sendAndWait sends data and blocks until the follower acknowledges it or
// the timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a close frame and stops every goroutine.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return conn.Close()
}
