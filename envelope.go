package asock

import "encoding/json"

// The logical message unit.
type Envelope struct {
	Event string `json:"event"`
	Body  any    `json:"body"`
}

// Outbound wire form. The backend routes on Action.
type Frame struct {
	Action string   `json:"action"`
	Data   Envelope `json:"data"`
}

// Inbound frames are either a bare envelope,
// or a Frame wrapping one (in which case action is ignored).
type inboundFrame struct {
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body"`
	Data  *inboundFrame   `json:"data"`
}

func (c *Client) encodeFrame(channel string, event string, body any) ([]byte, error) {
	return c.serializer.Marshal(&Frame{
		Action: channel,
		Data: Envelope{
			Event: event,
			Body:  body,
		},
	})
}

func (c *Client) decodeFrame(data []byte) (event string, body json.RawMessage, err error) {
	var f inboundFrame
	err = c.serializer.Unmarshal(data, &f)
	if err != nil {
		return "", nil, err
	}
	if f.Event == "" && f.Data != nil {
		return f.Data.Event, f.Data.Body, nil
	}
	return f.Event, f.Body, nil
}

func (c *Client) onFrame(data []byte) {
	if len(data) == 0 {
		c.debug.Log("Dropping frame without data")
		return
	}
	c.debug.Log("Frame received", string(data))

	event, body, err := c.decodeFrame(data)
	if err != nil {
		err = &FrameError{Data: data, err: err}
		c.debug.Log("Dropping frame", err)
		c.onError(err)
		return
	}
	c.dispatch(event, body)
}
