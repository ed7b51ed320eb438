package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tyrowin/gridiron-relay/internal/server"
)

type options struct {
	envFile         string
	port            string
	allowedOrigins  string
	logLevel        string
	shutdownTimeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "gridiron-relay",
		Short:        "Two-player room relay for the electric football client",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&opts.port, "port", "", "listen address or port (overrides PORT)")
	flags.StringVar(&opts.allowedOrigins, "allowed-origins", "", "comma separated browser origins (overrides ALLOWED_ORIGINS)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	flags.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 10*time.Second, "time allowed for graceful shutdown")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	loaded, envErr := server.LoadEnvFile(opts.envFile)

	cfg := server.NewConfigFromEnv()
	if cmd.Flags().Changed("port") {
		cfg.Port = opts.port
	}
	if cmd.Flags().Changed("allowed-origins") {
		cfg.AllowedOrigins = server.ParseOrigins(opts.allowedOrigins)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	active := server.SetConfig(cfg)

	logger := server.NewLogger(active.LogLevel)
	slog.SetDefault(logger)

	switch {
	case envErr != nil:
		logger.Warn("env file not loaded", "error", envErr)
	case !loaded:
		logger.Debug("no env file found, using environment variables", "path", opts.envFile)
	}

	hub := server.NewHub(server.WithLogger(logger))
	go hub.Run()

	httpServer := server.CreateServer(active.Port, server.SetupRoutes(hub))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer)
	}()

	logger.Info("relay started",
		"addr", httpServer.Addr,
		"origins", active.AllowedOrigins,
		"max_message_size", active.MaxMessageSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		_ = hub.Shutdown(opts.shutdownTimeout)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	if err := server.ShutdownServer(httpServer, opts.shutdownTimeout); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := hub.Shutdown(opts.shutdownTimeout); err != nil {
		return fmt.Errorf("hub shutdown: %w", err)
	}
	return nil
}
