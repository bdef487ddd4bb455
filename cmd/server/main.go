package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkt369/google-meeting-mock/internal/config"
	"github.com/pkt369/google-meeting-mock/internal/logging"
	"github.com/pkt369/google-meeting-mock/internal/registry"
	"github.com/pkt369/google-meeting-mock/internal/server"
)

func main() {
	logging.Init()

	cfg, err := config.Load(config.Options{})
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	reg := registry.New(cfg.IceServers())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reg.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.NewMux(reg, cfg),
	}

	go func() {
		slog.Info("starting signaling server", "addr", cfg.Addr(), "origin", cfg.AllowedOrigin)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "err", err)
	}
}
