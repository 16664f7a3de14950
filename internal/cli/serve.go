package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sluiceio/sluice/internal/config"
	"github.com/sluiceio/sluice/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve [flags]",
	Short: "Start the stream inspection server",
	Long: `Start the HTTP inspection server. The server manages streams created
over its API, drains them continuously, and exposes live taps over
server-sent events.

Examples:
  # Start the server with the default configuration
  sluice serve

  # Start the server with a specific configuration file
  sluice serve --config /etc/sluice/sluice.conf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		return runServer(ctx)
	},
}

func runServer(ctx context.Context) error {
	slog := log.With().Str("state", "init").Logger()

	if config.Config().ServerPort == "" {
		return fmt.Errorf("server port not defined")
	}

	serverErrors, shutdownServer, err := createInspectionServer(ctx)
	if err != nil {
		return fmt.Errorf("creating inspection server: %w", err)
	}

	// Channel to listen for an interrupt or terminate signal from the OS.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Wait forever until shutdown
	select {
	case err := <-serverErrors:
		drainStreams(ctx)
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		shutdownServer()
		drainStreams(ctx)
	}

	slog.Info().Msg("server stopped")
	return nil
}

func createInspectionServer(ctx context.Context) (chan error, func(), error) {
	slog := log.With().Str("state", "init").Logger()
	s, err := server.CreateNewServer()
	if err != nil {
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	s.MountHandlers()

	srv := &http.Server{
		Addr:              config.Config().ServerHostName + ":" + config.Config().ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)

	// Start the service listening for requests.
	go func() {
		slog.Info().Str("addr", srv.Addr).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := func() {
		// Give outstanding requests 5 seconds to complete and initiate the shutdown.
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	return serverErrors, shutdown, nil
}

// drainStreams force-closes every managed stream and waits for their drain
// loops to settle so journals are sealed before the process exits.
func drainStreams(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	server.ActiveStreamManager().Shutdown(drainCtx)
}

// init initializes the serve command and adds it to the root command
func init() {
	rootCmd.AddCommand(serveCmd)
}
