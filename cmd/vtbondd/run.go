package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vtbond/vtbond/internal/bond"
	"github.com/vtbond/vtbond/internal/noiseik"
	"github.com/vtbond/vtbond/internal/supervisor"
	"github.com/vtbond/vtbond/internal/tunio"
	"github.com/vtbond/vtbond/internal/vtbconf"
	"github.com/vtbond/vtbond/internal/vtbmetrics"
)

func newRunCmd() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bonding daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), configPath, verbose)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "/etc/vtbond/config.yaml", "path to the config file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func runDaemon(ctx context.Context, configPath string, verbose bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := vtbconf.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := newLogger(verbose || cfg.LogLevel == "debug")
	log.Info("starting vtbondd", "version", version, "mode", cfg.BondingMode.String(), "links", len(cfg.Links))

	registry := prometheus.NewRegistry()
	metrics := vtbmetrics.NewPrometheus(registry)
	stopMetricsServer := serveMetrics(cfg.MetricsListenAddr, log, registry)
	defer stopMetricsServer()

	tunDev, err := tunio.Open(cfg.Interface, cfg.MTU)
	if err != nil {
		return fmt.Errorf("opening tun device: %w", err)
	}
	defer tunDev.Close()

	dialed, err := bond.DialLinks(ctx, cfg.Links)
	if err != nil {
		return fmt.Errorf("dialing links: %w", err)
	}
	defer func() {
		for _, d := range dialed {
			d.Conn.Close()
		}
	}()

	links := make([]*bond.Link, len(dialed))
	senders := make([]bond.Sender, len(dialed))
	readers := make([]supervisor.Conn, len(dialed))
	for i, d := range dialed {
		links[i] = d.Link
		senders[i] = d.Conn
		readers[i] = d.Conn
	}

	clock := clockwork.NewRealClock()
	manager := bond.NewManager(links, senders, cfg.BondingMode, cfg.ErrorBackoff, cfg.HealthTimeout, clock, log, metrics)

	noise, err := noiseik.NewDriver(cfg.PrivateKey, cfg.PeerPublicKey, cfg.PresharedKey)
	if err != nil {
		return fmt.Errorf("initializing noise driver: %w", err)
	}

	sup := supervisor.New(tunDev, manager, noise, cfg.HealthInterval, clock, log, metrics)

	log.Info("tunnel up", "interface", tunDev.Name(), "mtu", tunDev.MTU())
	if err := sup.Run(ctx, readers); err != nil {
		return fmt.Errorf("supervisor: %w", err)
	}
	log.Info("vtbondd shutting down")
	return nil
}

func serveMetrics(addr string, log *slog.Logger, registry *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format("2006-01-02T15:04:05.000Z"))
			}
			return a
		},
	}))
}
