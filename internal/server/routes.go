package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkt369/google-meeting-mock/internal/config"
	"github.com/pkt369/google-meeting-mock/internal/registry"
)

// newUpgrader configures the websocket upgrader. The origin check compares
// the Origin header against the configured allowed origin; "*" accepts
// everything (development).
func newUpgrader(allowedOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,

		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		},
	}
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
// It takes the registry as a dependency.
func ServeWs(reg *registry.Registry, cfg *config.Config) http.HandlerFunc {
	upgrader := newUpgrader(cfg.AllowedOrigin)

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("failed to upgrade connection", "err", err)
			return
		}

		client := registry.NewClient(reg, conn)
		reg.Register <- client

		// The pumps own the connection from here.
		go client.WritePump()
		go client.ReadPump()
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// NewMux wires the server routes: websocket endpoint, health check and
// prometheus metrics.
func NewMux(reg *registry.Registry, cfg *config.Config) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthCheckHandler)
	mux.HandleFunc("/ws", ServeWs(reg, cfg))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
