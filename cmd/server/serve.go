package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"docsearch/internal/bootstrap"
	httptransport "docsearch/internal/transport/http"
)

func init() {
	f := NewConfigFlags()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the feedback worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.Load()
			if err != nil {
				return err
			}

			app, err := bootstrap.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					log.WithError(err).Warn("close resources failed")
				}
			}()

			server := &http.Server{
				Addr:              cfg.HTTPAddr(),
				Handler:           httptransport.NewRouter(app),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Infof("server starting on %s", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			return waitForShutdown(server, errCh)
		},
	}

	f.BindFlags(cmd.Flags())
	rootCmd.AddCommand(cmd)
}

func waitForShutdown(server *http.Server, errCh <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Infof("received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown failed")
	}
	return nil
}
