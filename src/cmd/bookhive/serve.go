package main

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

	"github.com/bookhive/bookhive/src/internal/database"
	"github.com/bookhive/bookhive/src/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if err := database.MigrateDB(a.db); err != nil {
				return fmt.Errorf("migrations failed: %w", err)
			}

			srv := server.New(a.cfg, a.db, a.logger, Version)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			address := fmt.Sprintf("%s:%d", a.cfg.GetString("server.host"), a.cfg.GetInt("server.port"))
			a.logger.Info("starting server",
				zap.String("address", address),
				zap.String("version", Version))

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(ctx, address)
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
