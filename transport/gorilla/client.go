//go:build !js

package gorilla

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/karagenc/actionsocket/internal/sync"
	"github.com/karagenc/actionsocket/transport"
)

var expectedCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

type factory struct {
	config Config
}

// NewFactory returns a transport.Factory that dials with github.com/gorilla/websocket.
func NewFactory(config *Config) transport.Factory {
	return &factory{config: config.withDefaults()}
}

func (f *factory) Name() string { return "gorilla" }

func (f *factory) New(rawURL string, subprotocol string, callbacks transport.Callbacks) (transport.Conn, error) {
	u, err := transport.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	callbacks.SetMissing()

	dialer := &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: f.config.HandshakeTimeout,
		TLSClientConfig:  f.config.TLSClientConfig,
	}
	if subprotocol != "" {
		dialer.Subprotocols = []string{subprotocol}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		url:       u.String(),
		dialer:    dialer,
		config:    f.config,
		callbacks: callbacks,
		ctx:       ctx,
		cancel:    cancel,
	}
	c.state.Store(int32(transport.ReadyStateConnecting))
	go c.run()
	return c, nil
}

type Conn struct {
	url    string
	dialer *websocket.Dialer
	config Config

	callbacks transport.Callbacks

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conn    *websocket.Conn
	closing bool

	// WriteMessage and WriteControl must not be called concurrently.
	writeMu sync.Mutex

	state atomic.Int32
	once  sync.Once
}

func (c *Conn) run() {
	conn, _, err := c.dialer.DialContext(c.ctx, c.url, c.config.Header)
	if err != nil {
		c.finish(err)
		return
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		conn.Close()
		c.finish(nil)
		return
	}
	c.conn = conn
	c.state.Store(int32(transport.ReadyStateOpen))
	c.mu.Unlock()

	if c.config.ReadLimit > 0 {
		conn.SetReadLimit(c.config.ReadLimit)
	}
	c.callbacks.OnOpen()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}
		c.callbacks.OnMessage(data)
	}
}

func (c *Conn) Subprotocol() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.Subprotocol()
}

func (c *Conn) ReadyState() transport.ReadyState {
	return transport.ReadyState(c.state.Load())
}

func (c *Conn) Send(data []byte) error {
	if c.ReadyState() != transport.ReadyStateOpen {
		return transport.ErrNotOpen
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closing || c.ReadyState() == transport.ReadyStateClosed {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.state.Store(int32(transport.ReadyStateClosing))
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.cancel()
		return nil
	}

	c.writeMu.Lock()
	err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.config.WriteTimeout),
	)
	c.writeMu.Unlock()

	// Give the server a moment to answer the close frame.
	// The read loop ends either way and closes the socket.
	conn.SetReadDeadline(time.Now().Add(closeGracePeriod))
	return err
}

func (c *Conn) finish(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		closing := c.closing
		conn := c.conn
		c.mu.Unlock()

		if closing || websocket.IsCloseError(err, expectedCloseCodes...) {
			err = nil
		}
		if conn != nil {
			conn.Close()
		}
		c.state.Store(int32(transport.ReadyStateClosed))
		c.cancel()

		if err != nil {
			c.callbacks.OnError(err)
		}
		c.callbacks.OnClose(err)
	})
}
