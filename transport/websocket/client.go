package websocket

import (
	"context"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/karagenc/actionsocket/internal/sync"
	"github.com/karagenc/actionsocket/transport"
	"nhooyr.io/websocket"
)

const DefaultHandshakeTimeout = 10 * time.Second

type Config struct {
	// Options passed to websocket.Dial.
	// The subprotocol given to Factory.New is appended to DialOptions.Subprotocols.
	DialOptions *websocket.DialOptions

	// Default: 10 seconds
	HandshakeTimeout time.Duration

	// Maximum size of an incoming message in bytes.
	// 0 keeps the library default (32 KiB).
	ReadLimit int64
}

var expectedCloseCodes = mapset.NewThreadUnsafeSet(
	websocket.StatusNormalClosure,
	websocket.StatusGoingAway,
	websocket.StatusNoStatusRcvd,
)

type factory struct {
	config Config
}

// NewFactory returns a transport.Factory that dials with nhooyr.io/websocket.
func NewFactory(config *Config) transport.Factory {
	f := new(factory)
	if config != nil {
		f.config = *config
	}
	if f.config.HandshakeTimeout <= 0 {
		f.config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return f
}

func (f *factory) Name() string { return "websocket" }

func (f *factory) New(rawURL string, subprotocol string, callbacks transport.Callbacks) (transport.Conn, error) {
	u, err := transport.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	callbacks.SetMissing()

	dialOptions := new(websocket.DialOptions)
	if f.config.DialOptions != nil {
		*dialOptions = *f.config.DialOptions
	}
	if subprotocol != "" {
		subprotocols := make([]string, 0, len(dialOptions.Subprotocols)+1)
		subprotocols = append(subprotocols, dialOptions.Subprotocols...)
		dialOptions.Subprotocols = append(subprotocols, subprotocol)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		url:              u.String(),
		dialOptions:      dialOptions,
		handshakeTimeout: f.config.HandshakeTimeout,
		readLimit:        f.config.ReadLimit,
		callbacks:        callbacks,
		ctx:              ctx,
		cancel:           cancel,
	}
	c.state.Store(int32(transport.ReadyStateConnecting))
	go c.run()
	return c, nil
}

type Conn struct {
	url              string
	dialOptions      *websocket.DialOptions
	handshakeTimeout time.Duration
	readLimit        int64

	callbacks transport.Callbacks

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conn    *websocket.Conn
	closing bool

	state atomic.Int32
	once  sync.Once
}

func (c *Conn) run() {
	dialCtx, cancel := context.WithTimeout(c.ctx, c.handshakeTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.url, c.dialOptions)
	cancel()
	if err != nil {
		c.finish(err)
		return
	}

	c.mu.Lock()
	if c.closing {
		// Close was called while we were dialing.
		c.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
		c.finish(nil)
		return
	}
	c.conn = conn
	c.state.Store(int32(transport.ReadyStateOpen))
	c.mu.Unlock()

	if c.readLimit > 0 {
		conn.SetReadLimit(c.readLimit)
	}
	c.callbacks.OnOpen()

	for {
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			c.finish(err)
			return
		}
		c.callbacks.OnMessage(data)
	}
}

// Subprotocol returns the subprotocol negotiated with the server.
// It is empty until the connection is open.
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
	return conn.Write(c.ctx, websocket.MessageText, data)
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
		// Still dialing. Cancelling the context aborts the dial.
		c.cancel()
		return nil
	}

	// Cancel only after the close handshake, otherwise
	// the pending Read tears the connection down.
	err := conn.Close(websocket.StatusNormalClosure, "")
	c.cancel()
	return err
}

func (c *Conn) finish(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		closing := c.closing
		c.mu.Unlock()

		if closing || expectedCloseCodes.Contains(websocket.CloseStatus(err)) {
			err = nil
		}
		c.state.Store(int32(transport.ReadyStateClosed))
		c.cancel()

		if err != nil {
			c.callbacks.OnError(err)
		}
		c.callbacks.OnClose(err)
	})
}
