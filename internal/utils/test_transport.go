package utils

import (
	"github.com/karagenc/actionsocket/internal/sync"
	"github.com/karagenc/actionsocket/transport"
)

// In-memory transport.Factory for testing. Connections never touch the
// network; the test drives their signals with Open, Receive, Fail and CloseRemote.
type TestTransport struct {
	mu       sync.Mutex
	conns    []*TestConn
	attempts int
	newErr   error
}

func NewTestTransport() *TestTransport {
	return new(TestTransport)
}

func (t *TestTransport) Name() string { return "test" }

// Make subsequent New calls fail with err. Pass nil to succeed again.
func (t *TestTransport) SetNewError(err error) {
	t.mu.Lock()
	t.newErr = err
	t.mu.Unlock()
}

func (t *TestTransport) New(rawURL string, subprotocol string, callbacks transport.Callbacks) (transport.Conn, error) {
	t.mu.Lock()
	t.attempts++
	if t.newErr != nil {
		err := t.newErr
		t.mu.Unlock()
		return nil, err
	}
	callbacks.SetMissing()
	c := &TestConn{
		URL:         rawURL,
		Subprotocol: subprotocol,
		callbacks:   callbacks,
		state:       transport.ReadyStateConnecting,
	}
	t.conns = append(t.conns, c)
	t.mu.Unlock()
	return c, nil
}

// Number of New calls, including the failed ones.
func (t *TestTransport) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

func (t *TestTransport) Conns() []*TestConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	conns := make([]*TestConn, len(t.conns))
	copy(conns, t.conns)
	return conns
}

func (t *TestTransport) Last() *TestConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

type TestConn struct {
	URL         string
	Subprotocol string

	callbacks transport.Callbacks

	mu         sync.Mutex
	state      transport.ReadyState
	sent       []string
	sendErr    error
	closeErr   error
	closePanic any
	closeCalls int
}

func (c *TestConn) setState(state transport.ReadyState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *TestConn) Open() {
	c.setState(transport.ReadyStateOpen)
	c.callbacks.OnOpen()
}

func (c *TestConn) Receive(data []byte) {
	c.callbacks.OnMessage(data)
}

// Fail the connection with err, as a transport error followed by close.
func (c *TestConn) Fail(err error) {
	c.setState(transport.ReadyStateClosed)
	c.callbacks.OnError(err)
	c.callbacks.OnClose(err)
}

// Close the connection from the server side without an error.
func (c *TestConn) CloseRemote() {
	c.setState(transport.ReadyStateClosed)
	c.callbacks.OnClose(nil)
}

func (c *TestConn) SetSendError(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// Make Close return err. If p is non-nil, Close panics with it instead.
func (c *TestConn) SetCloseError(err error, p any) {
	c.mu.Lock()
	c.closeErr = err
	c.closePanic = p
	c.mu.Unlock()
}

func (c *TestConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != transport.ReadyStateOpen {
		return transport.ErrNotOpen
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, string(data))
	return nil
}

func (c *TestConn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	sent := make([]string, len(c.sent))
	copy(sent, c.sent)
	return sent
}

func (c *TestConn) Close() error {
	c.mu.Lock()
	c.closeCalls++
	if c.closePanic != nil {
		p := c.closePanic
		c.mu.Unlock()
		panic(p)
	}
	if c.closeErr != nil {
		err := c.closeErr
		c.mu.Unlock()
		return err
	}
	alreadyClosed := c.state == transport.ReadyStateClosed
	c.state = transport.ReadyStateClosed
	c.mu.Unlock()

	if !alreadyClosed {
		c.callbacks.OnClose(nil)
	}
	return nil
}

func (c *TestConn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

func (c *TestConn) ReadyState() transport.ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
