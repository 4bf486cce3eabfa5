package asock

import (
	"time"

	"github.com/fatih/structs"
	"github.com/karagenc/actionsocket/serializer"
	"github.com/karagenc/actionsocket/transport"
	"github.com/mitchellh/mapstructure"
)

type ReconnectPolicy int

const (
	// Reconnect lazily: only when a message is emitted while disconnected.
	// Connections nobody uses are not retried.
	ReconnectOnSend ReconnectPolicy = iota

	// Reconnect as soon as the connection errors or closes,
	// in addition to ReconnectOnSend.
	ReconnectOnClose
)

const (
	DefaultMessageChannel = "message"
	DefaultReconnectTime  = 3 * time.Second
)

type ClientConfig struct {
	// The channel (the `action` field) messages are addressed
	// to when Emit is used.
	//
	// Default: "message"
	MessageChannel string

	// Print debug output to stdout. Ignored if Debugger is set.
	Debug bool

	// For debugging purposes. Leave it nil if it is of no use.
	Debugger Debugger

	// Subprotocol to request during the handshake.
	// Empty means none.
	Subprotocol string

	// How many reconnection attempts should we try?
	// Default: 0 (Infinite)
	RestartMax uint32

	// The delay before a reconnection attempt.
	// A zero delay is allowed.
	//
	// Default: 3 seconds
	ReconnectTime *time.Duration

	// If set above ReconnectTime, the delay doubles on every
	// attempt up to this value. Otherwise the delay is constant.
	ReconnectTimeMax *time.Duration

	// Jitter applied to the reconnection delay.
	// This value is required to be between 0 and 1.
	//
	// Default: 0 (no jitter)
	RandomizationFactor float32

	// When reconnections are triggered.
	//
	// Default: ReconnectOnSend
	ReconnectPolicy ReconnectPolicy

	// Creates transport handles.
	//
	// Default: the nhooyr.io/websocket transport
	Transport transport.Factory

	// Default: encoding/json
	Serializer serializer.JSONSerializer
}

// Option bag representation of ClientConfig.
// Durations are in milliseconds.
type mapConfig struct {
	MessageChannel      string  `mapstructure:"messageChannel,omitempty"`
	Debug               bool    `mapstructure:"debug"`
	WSConfig            any     `mapstructure:"wsConfig,omitempty"`
	RestartMax          uint32  `mapstructure:"restartMax"`
	ReconnectTime       *uint64 `mapstructure:"reconnectTime,omitempty"`
	ReconnectTimeMax    *uint64 `mapstructure:"reconnectTimeMax,omitempty"`
	RandomizationFactor float32 `mapstructure:"randomizationFactor,omitempty"`
	ReconnectOnClose    bool    `mapstructure:"reconnectOnClose,omitempty"`
}

// ConfigFromMap builds a ClientConfig from an option bag such as a decoded
// JSON or YAML document. Recognized keys are messageChannel, debug,
// wsConfig, restartMax, reconnectTime (milliseconds), reconnectTimeMax
// (milliseconds), randomizationFactor and reconnectOnClose.
// Unknown keys are ignored.
//
// A non-string wsConfig is dropped, since only a subprotocol
// name is meaningful there.
func ConfigFromMap(m map[string]any) (*ClientConfig, error) {
	var mc mapConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &mc,
	})
	if err != nil {
		return nil, err
	}
	err = decoder.Decode(m)
	if err != nil {
		return nil, err
	}

	config := &ClientConfig{
		MessageChannel:      mc.MessageChannel,
		Debug:               mc.Debug,
		RestartMax:          mc.RestartMax,
		RandomizationFactor: mc.RandomizationFactor,
	}
	if subprotocol, ok := mc.WSConfig.(string); ok {
		config.Subprotocol = subprotocol
	}
	if mc.ReconnectTime != nil {
		d := time.Duration(*mc.ReconnectTime) * time.Millisecond
		config.ReconnectTime = &d
	}
	if mc.ReconnectTimeMax != nil {
		d := time.Duration(*mc.ReconnectTimeMax) * time.Millisecond
		config.ReconnectTimeMax = &d
	}
	if mc.ReconnectOnClose {
		config.ReconnectPolicy = ReconnectOnClose
	}
	return config, nil
}

// Map returns the option bag form of the config, as accepted by ConfigFromMap.
// Debugger, Transport and Serializer are not included.
func (c *ClientConfig) Map() map[string]any {
	mc := mapConfig{
		MessageChannel:      c.MessageChannel,
		Debug:               c.Debug,
		RestartMax:          c.RestartMax,
		RandomizationFactor: c.RandomizationFactor,
		ReconnectOnClose:    c.ReconnectPolicy == ReconnectOnClose,
	}
	if c.Subprotocol != "" {
		mc.WSConfig = c.Subprotocol
	}
	if c.ReconnectTime != nil {
		ms := uint64(c.ReconnectTime.Milliseconds())
		mc.ReconnectTime = &ms
	}
	if c.ReconnectTimeMax != nil {
		ms := uint64(c.ReconnectTimeMax.Milliseconds())
		mc.ReconnectTimeMax = &ms
	}

	s := structs.New(&mc)
	s.TagName = "mapstructure"
	m := s.Map()
	for k, v := range m {
		if p, ok := v.(*uint64); ok {
			m[k] = *p
		}
	}
	return m
}
