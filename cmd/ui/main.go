package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptobotx-go/internal/app"
	"cryptobotx-go/internal/history"
	"cryptobotx-go/internal/mode"
	"cryptobotx-go/internal/scheduler"

	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", "./configs", "Directory containing config.yml")
	flag.Parse()

	a, err := app.New(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()
	log := a.Log

	sess, err := a.Session()
	if err != nil {
		log.Fatal("No usable session", zap.Error(err))
	}

	// Poll the exchange key permissions in the background
	permissions := scheduler.NewPermissionsJob(a.Backend, sess, a.Config.Backend.Timeout, log)
	sched := scheduler.New(log)
	if err := sched.AddJob(scheduler.Every(a.Config.Dashboard.PermissionsInterval), permissions); err != nil {
		log.Fatal("Failed to schedule permissions check", zap.Error(err))
	}
	if err := sched.RunNow(permissions); err != nil {
		log.Warn("Initial permissions check failed", zap.Error(err))
	}
	sched.Start()

	handler := NewAPIHandler(HandlerDeps{
		Log:         log,
		Session:     sess,
		Bot:         a.Backend,
		History:     history.NewController(history.NewSource(a.Backend, &a.Config.History, log), log),
		Switcher:    mode.NewSwitcher(a.Backend, a.Mode(), log),
		Permissions: permissions,
		Exporter:    a.Exporter,
		Exports:     a,
	})
	server := NewServer(a.Config.Dashboard.Port, handler, log)

	// Setup graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigchan:
		log.Info("Shutdown signal received, gracefully shutting down...")
	case err := <-errCh:
		log.Error("Dashboard server failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	sched.Stop()

	log.Info("Dashboard has been shut down.")
}
