package config

import (
	"fmt"
	"net/url"
)

// Client defaults (production)
const (
	DefaultDomain   = "warpmeet.qzz.io"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "turn:warpmeet.qzz.io"
	DefaultTURNUser = "warpmeet"
	DefaultTURNPass = "warpmeet-secret"
	DefaultName     = "Guest"
)

// Client holds the call client configuration.
type Client struct {
	// Domain is the signaling server domain
	Domain string

	// Insecure selects ws/http instead of wss/https, for local servers
	Insecure bool

	// Name is shown to the other participants
	Name string

	// Token authenticates against the meeting history API
	Token string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay uses only TURN candidates (useful behind restrictive networks)
	ForceRelay bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	Insecure   bool
	Name       string
	Token      string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Client, error) {
	if err := loadEnvFile(""); err != nil {
		return nil, err
	}

	c := &Client{
		Domain:     pick(opts.Domain, "DOMAIN", DefaultDomain),
		Insecure:   opts.Insecure,
		Name:       pick(opts.Name, "WARPMEET_NAME", DefaultName),
		Token:      pick(opts.Token, "WARPMEET_TOKEN", ""),
		STUNServer: pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer: pick(opts.TURNServer, "TURN_SERVER", DefaultTURN),
		TURNUser:   pick(opts.TURNUser, "TURN_USERNAME", DefaultTURNUser),
		TURNPass:   pick(opts.TURNPass, "TURN_PASSWORD", DefaultTURNPass),
		ForceRelay: opts.ForceRelay,
	}
	if c.Domain == "" {
		return nil, fmt.Errorf("config: empty server domain")
	}
	return c, nil
}

// WebSocketURL returns the signaling endpoint.
func (c *Client) WebSocketURL() string {
	scheme := "wss"
	if c.Insecure {
		scheme = "ws"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, c.Domain)
}

// HTTPBase returns the base URL of the REST API.
func (c *Client) HTTPBase() string {
	scheme := "https"
	if c.Insecure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Domain)
}

// RoomLink is the web app address of room.
func (c *Client) RoomLink(room string) string {
	return fmt.Sprintf("%s/%s", c.HTTPBase(), url.PathEscape(room))
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Client) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Client) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Client) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
