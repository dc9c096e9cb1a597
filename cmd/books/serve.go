package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/WalterDeAlmeidaLira/TechChallenge/api"
	"github.com/WalterDeAlmeidaLira/TechChallenge/config"
	"github.com/WalterDeAlmeidaLira/TechChallenge/dataset"
	"github.com/WalterDeAlmeidaLira/TechChallenge/query"
)

func serveCmd() *cobra.Command {
	var (
		listenAddr string
		dataFile   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over the persisted dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyFlag(cmd, "listen", func() { cfg.ListenAddr = listenAddr })
			applyFlag(cmd, "data", func() { cfg.DataFile = dataFile })

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "HTTP listen address")
	cmd.Flags().StringVar(&dataFile, "data", "", "dataset file path")

	return cmd
}

func runServe(cfg *config.Config) error {
	engine := query.NewEngine()

	loader := func() (*dataset.Dataset, error) {
		return dataset.Load(cfg.DataFile)
	}

	if ds, err := loader(); err != nil {
		// The API stays up and reports 503 until a reload succeeds.
		slog.Warn("starting without dataset", slog.String("file", cfg.DataFile), slog.Any("error", err))
	} else {
		engine.Load(ds)
		slog.Info("dataset loaded", slog.String("file", cfg.DataFile), slog.Int("books", ds.Len()))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.New(engine, loader, registry),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server listening", slog.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
