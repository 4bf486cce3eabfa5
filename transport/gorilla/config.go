package gorilla

import (
	"crypto/tls"
	"net/http"
	"time"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	closeGracePeriod        = time.Second
)

type Config struct {
	// Additional HTTP headers to send with the handshake request.
	Header http.Header

	// TLS configuration for wss:// URLs.
	TLSClientConfig *tls.Config

	// Default: 10 seconds
	HandshakeTimeout time.Duration

	// Write deadline for every frame.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// Maximum size of an incoming message in bytes. 0 means no limit.
	ReadLimit int64
}

func (c *Config) withDefaults() Config {
	var config Config
	if c != nil {
		config = *c
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	return config
}
