package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/lawnchairsociety/wfcgen/internal/logger"
	"github.com/lawnchairsociety/wfcgen/internal/server"
	"github.com/lawnchairsociety/wfcgen/internal/store"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveNoStore bool
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generation API over HTTP and WebSocket",
		Long: `Serve the generation API:

  POST /v1/generate    generate a grid from an inline sample
  GET  /v1/stream      WebSocket; send a generate request, receive collapses as they happen
  GET  /v1/runs        list stored runs
  GET  /v1/runs/:id    show a stored run
  GET  /metrics        Prometheus metrics`,
		RunE: runServe,
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false, "Disable run storage")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	var st *store.Store
	if !serveNoStore {
		var err error
		st, err = store.OpenWithConfig(cfg.Database)
		if err != nil {
			return err
		}
		defer st.Close()
		logger.Info("run storage enabled", "driver", cfg.Database.Driver)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg, st, logger.Slog()).ListenAndServe(ctx)
}
