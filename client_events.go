package asock

type (
	ClientOpenFunc             func()
	ClientCloseFunc            func(err error)
	ClientErrorFunc            func(err error)
	ClientReconnectAttemptFunc func(attempt uint32)
	ClientTerminatedFunc       func()
)

func (c *Client) OnOpen(f ClientOpenFunc) {
	c.openHandlers.on(f)
}

func (c *Client) OnceOpen(f ClientOpenFunc) {
	c.openHandlers.once(f)
}

// err is nil if the connection was closed cleanly.
func (c *Client) OnClose(f ClientCloseFunc) {
	c.closeHandlers.on(f)
}

func (c *Client) OnceClose(f ClientCloseFunc) {
	c.closeHandlers.once(f)
}

// Transport errors, malformed frames (*FrameError), failing
// subscribers (*HandlerError) and close failures (*DisconnectError).
func (c *Client) OnError(f ClientErrorFunc) {
	c.errorHandlers.on(f)
}

func (c *Client) OnceError(f ClientErrorFunc) {
	c.errorHandlers.once(f)
}

// Called every time a reconnection is scheduled.
// attempt starts from 1 and is reset when a connection opens.
func (c *Client) OnReconnectAttempt(f ClientReconnectAttemptFunc) {
	c.reconnectAttemptHandlers.on(f)
}

func (c *Client) OnceReconnectAttempt(f ClientReconnectAttemptFunc) {
	c.reconnectAttemptHandlers.once(f)
}

// Called once, when the client is closed permanently.
func (c *Client) OnTerminated(f ClientTerminatedFunc) {
	c.terminatedHandlers.on(f)
}

func (c *Client) OnceTerminated(f ClientTerminatedFunc) {
	c.terminatedHandlers.once(f)
}
