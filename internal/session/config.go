package session

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/vishing-trainer/internal/wire"
)

// Handshake selects how token, scenario and mode reach the backend.
type Handshake int

const (
	// HandshakeInitFrame sends a JSON init frame after the socket opens.
	HandshakeInitFrame Handshake = iota
	// HandshakeQuery passes them as URL query parameters and sends nothing.
	HandshakeQuery
)

// ParseHandshake accepts "init" or "query".
func ParseHandshake(s string) (Handshake, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "init", "frame":
		return HandshakeInitFrame, nil
	case "query":
		return HandshakeQuery, nil
	}
	return 0, fmt.Errorf("unknown handshake %q (want init or query)", s)
}

const SimulationPath = "/ws/simulation"

// Config holds the transport settings shared by every session.
type Config struct {
	BaseURL        string
	Handshake      Handshake
	ConnectTimeout time.Duration
	SettleDelay    time.Duration
	ReconnectDelay time.Duration
	MaxReconnects  int
	Dialer         *websocket.Dialer
}

// DefaultConfig returns the mobile client's timings.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		Handshake:      HandshakeInitFrame,
		ConnectTimeout: 10 * time.Second,
		SettleDelay:    500 * time.Millisecond,
		ReconnectDelay: 2 * time.Second,
		MaxReconnects:  3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.BaseURL)
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.ReconnectDelay < 0 {
		c.ReconnectDelay = 0
	}
	if c.MaxReconnects < 0 {
		c.MaxReconnects = 0
	}
	if c.Dialer == nil {
		c.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: c.ConnectTimeout,
			ReadBufferSize:   16384,
			WriteBufferSize:  16384,
		}
	}
	return c
}

// simulationURL maps an http(s) or ws(s) base to the simulation endpoint.
func simulationURL(base string, hs Handshake, token, scenario string, mode wire.Mode) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	u.Path += SimulationPath
	if hs == HandshakeQuery {
		u.RawQuery = wire.QueryParams(token, scenario, mode).Encode()
	}
	return u.String(), nil
}
