//go:build js

package gorilla

import "github.com/karagenc/actionsocket/transport"

type factory struct{}

// The gorilla transport relies on raw TCP sockets which aren't
// available in the browser. Use the websocket transport instead.
func NewFactory(config *Config) transport.Factory { return factory{} }

func (factory) Name() string { return "gorilla" }

func (factory) New(rawURL string, subprotocol string, callbacks transport.Callbacks) (transport.Conn, error) {
	return nil, transport.ErrUnsupported
}
