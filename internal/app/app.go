// Package app wires the relay binary: configuration from the
// environment, the logging router, prometheus metrics and the HTTP
// surface, with graceful shutdown on context cancel.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pepperonas/neukoelln/logging"
	"github.com/pepperonas/neukoelln/logging/sinks"
	"github.com/pepperonas/neukoelln/relay"
)

type Config struct {
	Addr            string        `env:"RELAY_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"RELAY_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogBufferSize   int           `env:"RELAY_LOG_BUFFER" envDefault:"512"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("app: parse config: %w", err)
	}
	return cfg, nil
}

func Run(ctx context.Context, cfg Config) error {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	logCfg := logging.DefaultConfig()
	if cfg.LogBufferSize > 0 {
		logCfg.BufferSize = cfg.LogBufferSize
	}
	router, err := logging.NewRouter(logCfg, nil, logger, map[string]logging.Sink{
		"console": sinks.NewConsoleSink(os.Stdout),
	})
	if err != nil {
		return fmt.Errorf("app: logging: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server := relay.NewServer(relay.Config{
		Logger:    logger,
		Publisher: router,
		Metrics:   relay.NewMetrics(registry),
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", server)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	httpServer := &http.Server{Addr: cfg.Addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("relay listening on %s", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
	case <-ctx.Done():
		logger.Printf("relay shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("app: http shutdown: %v", err)
	}
	server.Close()
	if err := router.Close(shutdownCtx); err != nil {
		logger.Printf("app: logging shutdown: %v", err)
	}
	return nil
}
