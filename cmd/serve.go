package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/aicfo/internal/dashboard"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard over HTTP",
	Example: `  aicfo serve
  aicfo serve --addr 127.0.0.1:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfig(); err != nil {
			return err
		}
		addr := cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		srv, err := dashboard.New(cfg.DataFile, newAdvisor(cfg, logger), logger)
		if err != nil {
			return err
		}
		callTimeout := cfg.HTTPTimeout()
		if callTimeout <= 0 {
			callTimeout = 60 * time.Second
		}
		httpSrv := &http.Server{
			Addr:        addr,
			Handler:     srv.Router(),
			ReadTimeout: 10 * time.Second,
			// The recommendation call runs inside the request.
			WriteTimeout: callTimeout + 10*time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		errCh := make(chan error, 1)
		go func() {
			logger.WithField("addr", addr).WithField("data_file", cfg.DataFile).Info("starting dashboard")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
	rootCmd.AddCommand(serveCmd)
}
