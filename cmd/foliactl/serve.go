package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/foliavcs/folia/broadcast"
	"github.com/foliavcs/folia/metrics"
	"github.com/foliavcs/folia/storage/remote"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve this repository's storage, broadcast, and metrics endpoints",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8089", "address to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	adapter, err := cfg.openAdapter()
	if err != nil {
		return err
	}
	defer adapter.Close()

	logger := slog.Default()
	reg := prometheus.NewRegistry()
	_ = metrics.New(reg)

	mux := http.NewServeMux()
	server := remote.NewServer(adapter, logger)
	mux.Handle("/", server.Handler())

	hub := broadcast.NewHub(logger)
	mux.Handle("/broadcast", hub.Handler())

	metricsAddr := cfg.MetricsAddr
	if metricsAddr == "" {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	} else {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			logger.Info("serving metrics", "addr", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	logger.Info("serving", "addr", serveAddr)
	fmt.Printf("listening on %s (storage at /, broadcast at /broadcast)\n", serveAddr)
	return http.ListenAndServe(serveAddr, mux)
}
