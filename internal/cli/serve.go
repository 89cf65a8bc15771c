package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/sorobai/backend/config"
	"github.com/upb/sorobai/backend/routes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the SorobAI HTTP API.

The server listens on SERVER_HOST:SERVER_PORT and shuts down gracefully on
SIGINT or SIGTERM, draining in-flight requests and the request log.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setup(ctx)
	if err != nil {
		return err
	}
	defer closeDeps(deps)

	cfg := deps.Config
	deps.Logger.Info("starting sorobai",
		zap.String("environment", cfg.Environment),
		zap.String("version", cfg.Version),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("auth", cfg.AuthEnabled()),
		zap.Bool("cache", deps.Redis != nil),
	)

	srv := newHTTPServer(cfg.Server, routes.SetupRoutes(deps))
	return serveUntilDone(ctx, srv, cfg.Server, deps.Logger)
}

func newHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}
}

// serveUntilDone runs srv until ctx is cancelled, then shuts it down within
// the configured timeout.
func serveUntilDone(ctx context.Context, srv *http.Server, cfg config.ServerConfig, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.Bool("tls", cfg.TLS.Enabled))
		var err error
		if cfg.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
