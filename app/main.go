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
)

func main() {
	container, err := NewContainer()
	if err != nil {
		slog.Error("failed to build container", "error", err)
		os.Exit(1)
	}

	go func() {
		container.Logger.Info("server starting", "addr", container.Server.Addr, "driver", container.Config.Database.Driver)
		if err := container.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			container.Logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	container.Logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := container.Server.Shutdown(ctx); err != nil {
		container.Logger.Error("server shutdown error", "error", err)
	}

	if err := container.Close(); err != nil {
		container.Logger.Error("container close error", "error", err)
	}

	container.Logger.Info("server stopped")
}
