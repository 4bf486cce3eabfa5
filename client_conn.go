package asock

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/karagenc/actionsocket/internal/sync"
	"github.com/karagenc/actionsocket/transport"
)

// Client methods and state that are directly related to
// connection, reconnection, and disconnection functionalities.

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnectScheduled

	// Terminal. Entered when the reconnection attempts are
	// exhausted or Disconnect is called.
	StateClosedPermanently
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnectScheduled:
		return "reconnect scheduled"
	case StateClosedPermanently:
		return "closed permanently"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type clientConn struct {
	client *Client

	mu    sync.Mutex
	state State
	conn  transport.Conn

	// Incremented for every transport handle.
	// Signals of an older handle are ignored.
	generation uint64

	connected         bool
	closedPermanently bool
	retryCount        uint32

	// Set while a reconnect timer is pending.
	reconnectLocked bool
	timer           interface{ Stop() bool }
	// Incremented whenever a timer is armed. A callback
	// carrying an older value belongs to a replaced timer.
	timerSeq uint64

	afterFunc func(d time.Duration, f func()) interface{ Stop() bool }

	// ID of the current handle. Read by the debugger without mu held.
	id atomic.Value
}

func newClientConn(client *Client) *clientConn {
	c := &clientConn{
		client: client,
		afterFunc: func(d time.Duration, f func()) interface{ Stop() bool } {
			return time.AfterFunc(d, f)
		},
	}
	c.id.Store("")
	return c
}

func (c *clientConn) ID() string {
	id, _ := c.id.Load().(string)
	return id
}

func (c *clientConn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *clientConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *clientConn) RetryCount() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryCount
}

func (c *clientConn) connect() error {
	c.mu.Lock()
	if c.closedPermanently {
		c.mu.Unlock()
		return ErrClosedPermanently
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		c.reconnectLocked = false
	}
	c.generation++
	generation := c.generation
	old := c.conn
	c.conn = nil
	c.state = StateConnecting
	c.id.Store(c.client.ids.Yeast())

	// Factories never invoke callbacks before New returns. Holding mu
	// here makes sure the handle is stored before its first signal.
	conn, err := c.client.transport.New(c.client.url, c.client.subprotocol, c.callbacks(generation))
	if err != nil {
		c.state = StateDisconnected
	} else {
		c.conn = conn
	}
	c.mu.Unlock()

	if old != nil {
		go c.closeQuietly(old)
	}

	if err != nil {
		if errors.Is(err, transport.ErrUnsupported) {
			c.client.debug.Log("Transport is not supported in this environment", c.client.transport.Name())
			c.client.onError(err)
			return err
		}
		c.client.debug.Log("Failed to create the transport", err)
		c.client.onError(err)
		c.reconnect()
		return err
	}
	c.client.debug.Log("Connecting")
	return nil
}

func (c *clientConn) callbacks(generation uint64) transport.Callbacks {
	return transport.Callbacks{
		OnOpen: func() {
			c.onOpen(generation)
		},
		OnMessage: func(data []byte) {
			if c.isCurrent(generation) {
				c.client.onFrame(data)
			}
		},
		OnError: func(err error) {
			if c.lost(generation) {
				c.client.debug.Log("Transport error", err)
				c.client.onError(err)
				c.maybeReconnect()
			}
		},
		OnClose: func(err error) {
			if c.lost(generation) {
				c.client.debug.Log("Connection closed")
				c.client.closeHandlers.forEach(func(handler ClientCloseFunc) { handler(err) })
				c.maybeReconnect()
			}
		},
	}
}

func (c *clientConn) isCurrent(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == generation
}

func (c *clientConn) onOpen(generation uint64) {
	c.mu.Lock()
	if c.generation != generation || c.closedPermanently {
		c.mu.Unlock()
		return
	}
	c.connected = true
	c.retryCount = 0
	c.state = StateConnected
	c.mu.Unlock()

	c.client.debug.Log("Connected")
	c.client.openHandlers.forEach(func(handler ClientOpenFunc) { handler() })
}

// Mark the connection as lost. Returns false if the
// signal belongs to a superseded handle.
func (c *clientConn) lost(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false
	}
	c.connected = false
	if !c.closedPermanently && c.state != StateReconnectScheduled {
		c.state = StateDisconnected
	}
	return true
}

func (c *clientConn) maybeReconnect() {
	if c.client.reconnectPolicy == ReconnectOnClose {
		c.reconnect()
	}
}

// Schedule a reconnection attempt, unless one is already pending,
// the client is connected, or the client is closed permanently.
func (c *clientConn) reconnect() {
	c.mu.Lock()
	if c.reconnectLocked || c.closedPermanently || c.connected {
		c.mu.Unlock()
		return
	}

	if max := c.client.restartMax; max > 0 && c.retryCount >= max {
		c.closedPermanently = true
		c.state = StateClosedPermanently
		conn := c.conn
		attempts := c.retryCount
		c.mu.Unlock()

		c.client.debug.Log("Maximum attempts reached. Attempts made so far", attempts)
		if conn != nil && conn.ReadyState() != transport.ReadyStateClosed {
			go c.closeQuietly(conn)
		}
		c.client.terminatedHandlers.forEach(func(handler ClientTerminatedFunc) { handler() })
		return
	}

	c.retryCount++
	attempt := c.retryCount
	c.reconnectLocked = true
	if c.timer != nil {
		c.timer.Stop()
	}
	delay := c.client.backoff.duration(attempt)
	c.timerSeq++
	seq := c.timerSeq
	c.timer = c.afterFunc(delay, func() { c.onTimer(seq) })
	c.state = StateReconnectScheduled
	c.mu.Unlock()

	c.client.debug.Log("Reconnect attempt", attempt, "Delay", delay)
	c.client.reconnectAttemptHandlers.forEach(func(handler ClientReconnectAttemptFunc) { handler(attempt) })
}

func (c *clientConn) onTimer(seq uint64) {
	c.mu.Lock()
	if c.timer == nil || c.timerSeq != seq {
		c.mu.Unlock()
		return
	}
	c.reconnectLocked = false
	c.timer = nil
	if c.closedPermanently {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.client.debug.Log("Attempting to reconnect")
	c.connect()
}

// Write data to the current handle. No queueing: if the
// handle isn't open, the transport's error is returned.
func (c *clientConn) send(data []byte) error {
	c.mu.Lock()
	closed := c.closedPermanently
	conn := c.conn
	c.mu.Unlock()

	if closed {
		return ErrClosedPermanently
	}
	if conn == nil {
		return ErrNotConnected
	}
	return conn.Send(data)
}

func (c *clientConn) disconnect() {
	c.mu.Lock()
	if c.closedPermanently {
		c.mu.Unlock()
		return
	}
	c.closedPermanently = true
	c.connected = false
	c.state = StateClosedPermanently
	c.reconnectLocked = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.mu.Unlock()

	c.client.terminatedHandlers.forEach(func(handler ClientTerminatedFunc) { handler() })

	if conn == nil {
		c.client.debug.Log("Disconnect: no connection to close")
		return
	}
	c.client.debug.Log("Closing connection")
	go c.closeConn(conn)
}

func (c *clientConn) closeConn(conn transport.Conn) {
	err := safeClose(conn)
	if err != nil {
		err = &DisconnectError{err: err}
		c.client.debug.Log("Unable to disconnect", err)
		c.client.onError(err)
		return
	}
	c.client.debug.Log("Disconnected")
}

func (c *clientConn) closeQuietly(conn transport.Conn) {
	err := safeClose(conn)
	if err != nil {
		c.client.debug.Log("Error while closing a stale connection", err)
	}
}

func safeClose(conn transport.Conn) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoveredError(r)
		}
	}()
	return conn.Close()
}
