package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"medrunner-portal/internal/config"
	"medrunner-portal/internal/devserver"
	"medrunner-portal/internal/logger"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file with server settings")
	debug := pflag.Bool("debug", false, "enable debug logging")
	port := pflag.String("port", "", "listen port, overriding SERVER_PORT")
	pflag.Parse()

	level := logger.Setup(os.Stdout, *debug)

	cfg, err := config.LoadServer(*envFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.ServerPort = *port
	}
	if cfg.Debug {
		logger.SetDebug(level, true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := devserver.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}

	if err := server.Run(ctx); err != nil {
		slog.Error("server run failed", "error", err)
		os.Exit(1)
	}
}
