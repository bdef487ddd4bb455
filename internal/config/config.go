package config

import (
	"os"
	"strings"

	"github.com/pkt369/google-meeting-mock/internal/protocol"
)

// Default configuration values.
const (
	DefaultPort          = "8080"
	DefaultAllowedOrigin = "*"
	DefaultSTUN          = "stun:stun.l.google.com:19302"
	DefaultSTUN2         = "stun:stun1.l.google.com:19302"
	DefaultServerURL     = "ws://localhost:8080/ws"
)

// Config holds the process-wide configuration, read once at startup.
type Config struct {
	// Port the signaling server listens on.
	Port string

	// AllowedOrigin is checked against the Origin header of websocket
	// upgrade requests. "*" allows any origin.
	AllowedOrigin string

	// ICE servers handed out to clients.
	STUNServers []string
	TURNServer  string
	TURNUser    string
	TURNPass    string

	// ServerURL is the websocket endpoint the meeting client dials.
	ServerURL string
}

// Options for loading config with CLI flag overrides.
type Options struct {
	Port          string
	AllowedOrigin string
	STUNServer    string
	TURNServer    string
	TURNUser      string
	TURNPass      string
	ServerURL     string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	port := firstNonEmpty(opts.Port, os.Getenv("PORT"), DefaultPort)
	origin := firstNonEmpty(opts.AllowedOrigin, os.Getenv("ALLOWED_ORIGIN"), DefaultAllowedOrigin)

	var stun []string
	if opts.STUNServer != "" {
		stun = []string{opts.STUNServer}
	} else {
		primary := firstNonEmpty(os.Getenv("STUN_SERVER_URL"), DefaultSTUN)
		secondary := firstNonEmpty(os.Getenv("STUN_SERVER_URL_2"), DefaultSTUN2)
		stun = []string{primary}
		if secondary != primary {
			stun = append(stun, secondary)
		}
	}

	turnServer := firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER_URL"))
	turnUser := firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"))
	turnPass := firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"))

	serverURL := firstNonEmpty(opts.ServerURL, os.Getenv("MEET_SERVER_URL"), DefaultServerURL)

	return &Config{
		Port:          port,
		AllowedOrigin: origin,
		STUNServers:   stun,
		TURNServer:    turnServer,
		TURNUser:      turnUser,
		TURNPass:      turnPass,
		ServerURL:     serverURL,
	}, nil
}

// IceServers assembles the ICE configuration handed to clients: one entry
// per STUN URL, plus exactly one TURN entry when a TURN URL is configured.
func (c *Config) IceServers() []protocol.IceServer {
	servers := make([]protocol.IceServer, 0, len(c.STUNServers)+1)
	for _, url := range c.STUNServers {
		servers = append(servers, protocol.IceServer{URLs: []string{url}})
	}
	if c.TURNServer != "" {
		servers = append(servers, protocol.IceServer{
			URLs:       []string{c.TURNServer},
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}
	return servers
}

// Addr returns the listen address for the signaling server.
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
