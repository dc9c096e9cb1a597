package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/WalterDeAlmeidaLira/TechChallenge/config"
	"github.com/WalterDeAlmeidaLira/TechChallenge/dataset"
	"github.com/WalterDeAlmeidaLira/TechChallenge/models"
	"github.com/WalterDeAlmeidaLira/TechChallenge/scraper"
)

func crawlCmd() *cobra.Command {
	var (
		baseURL     string
		maxPages    int
		parallelism int
		output      string
		format      string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the catalog and persist the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyFlag(cmd, "base-url", func() { cfg.BaseURL = baseURL })
			applyFlag(cmd, "pages", func() { cfg.MaxPages = maxPages })
			applyFlag(cmd, "parallel", func() { cfg.Parallelism = parallelism })
			applyFlag(cmd, "output", func() { cfg.DataFile = output })
			applyFlag(cmd, "format", func() { cfg.OutputFormat = strings.ToLower(format) })
			applyFlag(cmd, "metrics-addr", func() { cfg.MetricsAddr = metricsAddr })

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runCrawl(cfg)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "base URL of the catalog")
	cmd.Flags().IntVar(&maxPages, "pages", 0, "maximum catalog pages to crawl")
	cmd.Flags().IntVar(&parallelism, "parallel", 0, "concurrent detail-page requests")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&format, "format", "", "output format: csv, json, or dual")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")

	return cmd
}

// applyFlag runs apply only when the flag was set explicitly, so loaded
// config is not clobbered by flag defaults.
func applyFlag(cmd *cobra.Command, name string, apply func()) {
	if cmd.Flags().Changed(name) {
		apply()
	}
}

func runCrawl(cfg *config.Config) error {
	slog.Info("starting crawl",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("pages", cfg.MaxPages),
		slog.Int("workers", cfg.Parallelism),
	)

	crawler, err := scraper.NewCrawler(cfg)
	if err != nil {
		return fmt.Errorf("initialising crawler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing in-flight work")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(crawler.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	result := crawler.Run(ctx)

	builder := dataset.NewBuilder()
	builder.Add(result.Entries...)
	ds := builder.Build()

	writer, err := createWriter(cfg.OutputFormat, cfg.DataFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	if err := writer.Write(ds.Books()); err != nil {
		writer.Close()
		return fmt.Errorf("writing dataset: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing writer: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result.Report, ds.Len(), cfg.DataFile)

	if result.Report.Aborted {
		// The partial dataset is already persisted; surface the failure.
		return fmt.Errorf("crawl aborted: %s", result.Report.AbortReason)
	}
	return nil
}

func createWriter(format, filename string) (dataset.Writer, error) {
	switch format {
	case "json":
		return dataset.NewJSONWriter(filename)
	case "csv":
		return dataset.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return dataset.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(report *models.CrawlReport, total int, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	if report.Aborted {
		fmt.Println("Crawl aborted")
		fmt.Printf("  Reason:        %s\n", report.AbortReason)
	} else {
		fmt.Println("Crawl complete")
	}

	duration := report.Duration()
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(total) / duration.Seconds()
	}

	fmt.Printf("  Total items:   %d\n", total)
	fmt.Printf("  Pages:         %d\n", report.PagesCrawled)
	fmt.Printf("  Skipped items: %d\n", report.ItemsSkipped)
	if len(report.SkipsByKind) > 0 {
		fmt.Printf("  Skip reasons:  %v\n", report.SkipsByKind)
	}
	if len(report.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", report.ErrorsByType)
	}
	fmt.Printf("  Retries:       %d\n", report.RetryCount)
	fmt.Printf("  Requests:      %d\n", report.RequestCount)
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Items/sec:     %.2f\n", itemsPerSec)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}
