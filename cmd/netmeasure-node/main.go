package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/EternisAI/netmeasure/internal/node"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Netmeasure Node", "version", AppVersion, "name", config.Server.Name)

	client := node.NewClient(config.Server, node.NewLocalExecutor())
	if err := client.Start(); err != nil {
		slog.Error("Failed to start node client", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	slog.Info("Received shutdown signal", "signal", sig)

	if err := client.Stop(); err != nil {
		slog.Error("Node client stop error", "error", err)
	}
	slog.Info("Shutdown complete")
}
