package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/server"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	token := flag.String("token", "", "required auth token (empty accepts any)")
	heartbeat := flag.Duration("heartbeat", 15*time.Second, "heartbeat interval")
	flag.Parse()

	config := server.DefaultConfig()
	config.Addr = *addr
	config.AuthToken = *token
	config.HeartbeatInterval = *heartbeat
	config.LogLevel = log.LevelInfo

	srv, err := server.NewServer(config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error creating server:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err = srv.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error starting server:", err)
		os.Exit(1)
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	<-stopCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err = srv.Stop(shutdownCtx); err != nil {
		fmt.Fprintln(os.Stderr, "Error stopping server:", err)
	}
}
