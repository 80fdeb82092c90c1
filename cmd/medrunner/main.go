package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"medrunner-portal/internal/app"
	"medrunner-portal/internal/config"
	"medrunner-portal/internal/event"
	"medrunner-portal/internal/localstore"
	"medrunner-portal/internal/logger"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file with MEDRUNNER_* settings")
	debug := pflag.Bool("debug", false, "enable debug logging")
	code := pflag.String("code", "", "OAuth code to sign in with before starting")
	navigate := pflag.StringSlice("navigate", nil, "paths to evaluate against the route guards once started")
	pflag.Parse()

	level := logger.Setup(os.Stdout, *debug)

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Debug {
		logger.SetDebug(level, true)
	}

	local, err := localstore.NewFileStore(cfg.StateFile)
	if err != nil {
		slog.Error("failed to open local state", "path", cfg.StateFile, "error", err)
		os.Exit(1)
	}

	portal, err := app.NewFromConfig(cfg, local, level)
	if err != nil {
		slog.Error("failed to initialize portal", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	statuses, unsubscribe := portal.SubscribeStatus()
	defer unsubscribe()
	go logStatus(statuses)

	if *code != "" {
		if err := portal.SignIn(ctx, *code); err != nil {
			slog.Error("sign in failed", "error", err)
			portal.Close()
			os.Exit(1)
		}
	} else {
		portal.Boot(ctx)
	}

	evaluate(ctx, portal, *navigate)

	<-ctx.Done()
	portal.Close()
	slog.Info("portal stopped")
}

func evaluate(ctx context.Context, portal *app.Portal, paths []string) {
	for _, path := range paths {
		decision := portal.Navigate(ctx, path)
		slog.Info("navigation", "path", path, "outcome", decision.Outcome.String(), "target", decision.Path, "alert", decision.Alert)
	}
}

func logStatus(events <-chan event.Event) {
	for e := range events {
		status, ok := e.Payload.(app.Status)
		if !ok {
			continue
		}
		attrs := []any{
			"connection", status.Connection.String(),
			"first_instance", status.IsFirstInstance,
			"language", status.Language,
		}
		if status.Alert != nil {
			attrs = append(attrs, "alert", status.Alert.Message)
		}
		if status.ShowNewUpdateBanner {
			attrs = append(attrs, "update_available", true)
		}
		slog.Debug("status", attrs...)
	}
}
