package asock

import (
	"fmt"

	"github.com/karagenc/actionsocket/serializer"
	"github.com/karagenc/actionsocket/serializer/stdjson"
	"github.com/karagenc/actionsocket/transport"
	"github.com/karagenc/actionsocket/transport/websocket"
	"github.com/tomruk/yeast"
)

type Client struct {
	url            string
	debug          Debugger
	serializer     serializer.JSONSerializer
	transport      transport.Factory
	messageChannel string
	subprotocol    string

	restartMax      uint32
	reconnectPolicy ReconnectPolicy
	backoff         *backoff

	ids    *yeast.Yeaster
	conn   *clientConn
	events *eventRegistry

	openHandlers             *handlerStore[ClientOpenFunc]
	closeHandlers            *handlerStore[ClientCloseFunc]
	errorHandlers            *handlerStore[ClientErrorFunc]
	reconnectAttemptHandlers *handlerStore[ClientReconnectAttemptFunc]
	terminatedHandlers       *handlerStore[ClientTerminatedFunc]
}

// NewClient creates a client for the given ws:// or wss:// URL.
// No connection is made until Connect is called.
func NewClient(url string, config *ClientConfig) *Client {
	if config == nil {
		config = new(ClientConfig)
	} else {
		// User can modify the config. We copy the config here in order to avoid problems.
		copied := *config
		config = &copied
	}

	c := &Client{
		url:             url,
		messageChannel:  config.MessageChannel,
		subprotocol:     config.Subprotocol,
		restartMax:      config.RestartMax,
		reconnectPolicy: config.ReconnectPolicy,
		serializer:      config.Serializer,
		transport:       config.Transport,

		ids:    yeast.New(),
		events: newEventRegistry(),

		openHandlers:             newHandlerStore[ClientOpenFunc](),
		closeHandlers:            newHandlerStore[ClientCloseFunc](),
		errorHandlers:            newHandlerStore[ClientErrorFunc](),
		reconnectAttemptHandlers: newHandlerStore[ClientReconnectAttemptFunc](),
		terminatedHandlers:       newHandlerStore[ClientTerminatedFunc](),
	}
	c.conn = newClientConn(c)

	if c.messageChannel == "" {
		c.messageChannel = DefaultMessageChannel
	}
	if c.serializer == nil {
		c.serializer = stdjson.New()
	}
	if c.transport == nil {
		c.transport = websocket.NewFactory(nil)
	}

	switch {
	case config.Debugger != nil:
		c.debug = config.Debugger
	case config.Debug:
		c.debug = NewPrintDebugger()
	default:
		c.debug = NewNoopDebugger()
	}
	c.debug = c.debug.WithDynamicContext("[asock] Client with URL: "+truncateURL(url), c.conn.ID)

	reconnectTime := DefaultReconnectTime
	if config.ReconnectTime != nil {
		reconnectTime = *config.ReconnectTime
	}
	reconnectTimeMax := reconnectTime
	if config.ReconnectTimeMax != nil {
		reconnectTimeMax = *config.ReconnectTimeMax
	}
	c.backoff = newBackoff(reconnectTime, reconnectTimeMax, config.RandomizationFactor)

	c.debug.Log("Created with config", config.Map())
	return c
}

func (c *Client) URL() string { return c.url }

// Connect opens the connection. It doesn't wait for the connection to be
// established; use OnOpen for that. Calling Connect while connected is a no-op.
//
// After Disconnect, or once the reconnection attempts are exhausted,
// Connect returns ErrClosedPermanently.
func (c *Client) Connect() error {
	return c.conn.connect()
}

// Disconnect closes the connection and disables reconnection for good.
// Errors that occur while closing are delivered to the OnError handlers.
func (c *Client) Disconnect() {
	c.conn.disconnect()
}

// Emit sends the event to the default message channel.
//
// If the client is not connected, a reconnection is scheduled and the send
// is still attempted; the message is not queued. The returned error
// is ErrNotConnected if no connection was ever created.
func (c *Client) Emit(event string, body any) error {
	return c.emit(c.messageChannel, event, body)
}

// EmitTo sends the event to the given handler channel instead of the
// default one. An empty handler maps to the default channel, so a frame
// with an empty action is never sent.
func (c *Client) EmitTo(handler string, event string, body any) error {
	if handler == "" {
		handler = c.messageChannel
	}
	return c.emit(handler, event, body)
}

func (c *Client) emit(channel string, event string, body any) error {
	c.conn.reconnect()

	data, err := c.encodeFrame(channel, event, body)
	if err != nil {
		return fmt.Errorf("asock: encode frame: %w", err)
	}
	c.debug.Log("Sending frame", string(data))
	return c.conn.send(data)
}

// On subscribes handler to event. Handlers are called in subscription order.
//
// The handler must be a function that takes zero or one argument and
// returns either nothing or an error. The event body is decoded into the
// argument. Any other handler makes On panic.
func (c *Client) On(event string, handler any) *Subscription {
	return c.on(event, handler, false)
}

// Once is like On, but the handler is removed after the first call.
func (c *Client) Once(event string, handler any) *Subscription {
	return c.on(event, handler, true)
}

func (c *Client) on(event string, handler any, once bool) *Subscription {
	h, err := newEventHandler(handler)
	if err != nil {
		panic(fmt.Errorf("asock: On: %w", err))
	}
	return c.events.on(event, h, once)
}

// OffEvent removes all subscribers of the given events.
func (c *Client) OffEvent(events ...string) {
	for _, event := range events {
		c.events.off(event)
	}
}

// OffAll removes every event subscriber and lifecycle handler.
func (c *Client) OffAll() {
	c.events.offAll()
	c.openHandlers.offAll()
	c.closeHandlers.offAll()
	c.errorHandlers.offAll()
	c.reconnectAttemptHandlers.offAll()
	c.terminatedHandlers.offAll()
}

// Dispatch delivers the event to local subscribers as if it was received.
//
// body can be a Go value or raw JSON (json.RawMessage).
// Subscriber failures go to the OnError handlers and are not returned.
func (c *Client) Dispatch(event string, body any) {
	c.dispatch(event, body)
}

func (c *Client) dispatch(event string, body any) {
	handlers := c.events.handlers(event)
	if len(handlers) == 0 {
		c.debug.Log("No subscribers for event", event)
		return
	}

	for _, h := range handlers {
		err := h.call(c.serializer, body)
		if err != nil {
			err = &HandlerError{Event: event, err: err}
			c.debug.Log("Subscriber failed", err)
			c.onError(err)
		}
	}
}

func (c *Client) onError(err error) {
	c.errorHandlers.forEach(func(handler ClientErrorFunc) {
		handler(err)
	})
}

func (c *Client) State() State { return c.conn.State() }

func (c *Client) Connected() bool { return c.conn.Connected() }

// Number of reconnection attempts since the last successful open.
func (c *Client) RetryCount() uint32 { return c.conn.RetryCount() }

func truncateURL(url string) string {
	if len(url) > 50 {
		return url[:50] + "..."
	}
	return url
}
