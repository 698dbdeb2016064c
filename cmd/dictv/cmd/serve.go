package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmtftr/dictv/internal/httpapi"
)

func newServeCmd() *cobra.Command {
	cfg := effectiveConfig()

	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dictionary over HTTP",
		Long: `Serve starts the GET /search, GET /health, and GET /stats HTTP endpoints
backed by the committed index. It watches the data root for changes to the
index directory and swaps its reader automatically whenever a separate
'dictv rebuild' commits.`,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := c.Context()
			mgr, err := openManager(ctx)
			if err != nil {
				return err
			}

			log := slog.Default()
			server := httpapi.NewServer(mgr, log)

			httpServer := &http.Server{
				Addr:    fmt.Sprintf(":%d", port),
				Handler: server.Handler(),
			}

			sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info("serving", slog.Int("port", port))
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			case <-sigCtx.Done():
				log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx, httpServer)
			}
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.Server.Port, "Port to listen on")

	return cmd
}
