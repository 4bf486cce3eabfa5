package transport

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// Returned by Factory.New when the transport cannot run in the current environment.
	// The client reports this error but doesn't retry.
	ErrUnsupported = errors.New("transport: not supported in this environment")

	ErrNotOpen = errors.New("transport: connection is not open")
)

type ReadyState int32

const (
	ReadyStateConnecting ReadyState = iota
	ReadyStateOpen
	ReadyStateClosing
	ReadyStateClosed
)

func (s ReadyState) String() string {
	switch s {
	case ReadyStateConnecting:
		return "connecting"
	case ReadyStateOpen:
		return "open"
	case ReadyStateClosing:
		return "closing"
	case ReadyStateClosed:
		return "closed"
	}
	return fmt.Sprintf("ReadyState(%d)", int32(s))
}

type (
	// Signals of a single connection attempt. They are delivered
	// in the order: OnOpen, OnMessage*, OnError?, OnClose.
	//
	// OnClose is always the last signal. If the connection never opened,
	// OnOpen is not called.
	Callbacks struct {
		OnOpen    func()
		OnMessage func(data []byte)
		OnError   func(err error)
		OnClose   func(err error)
	}

	Conn interface {
		// Send a text frame. Returns ErrNotOpen if the connection is not open.
		Send(data []byte) error

		// Close the connection. OnClose will be called
		// (unless it was already called).
		//
		// You must make sure that this method doesn't block
		// on the network for longer than a close handshake.
		Close() error

		ReadyState() ReadyState
	}

	Factory interface {
		// Name of the transport in lowercase.
		Name() string

		// Create a connection handle and start connecting in the background.
		//
		// This method must not block on the network, and it must not
		// invoke any of the callbacks before returning.
		// A returned error means the handle couldn't be constructed.
		New(rawURL string, subprotocol string, callbacks Callbacks) (Conn, error)
	}
)

func (c *Callbacks) SetMissing() {
	if c.OnOpen == nil {
		c.OnOpen = func() {}
	}
	if c.OnMessage == nil {
		c.OnMessage = func(data []byte) {}
	}
	if c.OnError == nil {
		c.OnError = func(err error) {}
	}
	if c.OnClose == nil {
		c.OnClose = func(err error) {}
	}
}

// Parse rawURL and convert http(s) schemes into their ws(s) counterparts.
func NormalizeURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("transport: unsupported URL scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("transport: URL has no host: %q", rawURL)
	}
	return u, nil
}
