//go:build linux

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/soypat/ipstack/config"
	"github.com/soypat/ipstack/driver"
	"github.com/soypat/ipstack/metrics"
	"github.com/soypat/ipstack/stack"
)

// shutdownTimeout bounds how long the metrics HTTP server is given to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// runDaemon loads configuration from path (or defaults if empty), brings up
// a TAP device, and runs the stack's poll loop alongside a Prometheus
// metrics HTTP server until SIGINT/SIGTERM.
func runDaemon(path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := newLogger(cfg.Log)
	logger.Info("netlabd starting",
		slog.String("interface", cfg.Interface.Name),
		slog.String("ip", cfg.Interface.IP),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	mac, err := cfg.Interface.MACAddr()
	if err != nil {
		return fmt.Errorf("parse interface mac: %w", err)
	}
	ip, err := cfg.Interface.IPAddr()
	if err != nil {
		return fmt.Errorf("parse interface ip: %w", err)
	}
	prefix, err := cfg.Interface.Prefix()
	if err != nil {
		return fmt.Errorf("build interface prefix: %w", err)
	}

	tap, err := driver.NewTap(cfg.Interface.Name, prefix)
	if err != nil {
		return fmt.Errorf("create tap device %s: %w", cfg.Interface.Name, err)
	}
	defer func() {
		if err := tap.Close(); err != nil {
			logger.Warn("failed to close tap device", slog.String("error", err.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	netStack := stack.New(stack.Config{
		MAC:           mac,
		IP:            ip,
		Driver:        tap,
		BufSize:       cfg.Interface.BufSize,
		ARPResolveTTL: cfg.ARP.ResolveTTL,
		ARPPendingTTL: cfg.ARP.PendingTTL,
		ARPMaxEntries: cfg.ARP.MaxEntries,
		Metrics:       collector,
		Log:           logger,
	})

	if err := netStack.Announce(time.Now()); err != nil {
		logger.Warn("failed to announce interface on link", slog.String("error", err.Error()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(gCtx, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		return runPollLoop(gCtx, netStack)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return shutdownMetricsServer(metricsSrv, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run netlabd: %w", err)
	}
	logger.Info("netlabd stopped")
	return nil
}

// runPollLoop drives stack.Stack.Poll until ctx is cancelled. Poll itself
// blocks inside the TAP driver's Recv when nothing is queued, so this loop
// is a tight `for { Poll() }` rather than a ticker.
func runPollLoop(ctx context.Context, s *stack.Stack) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := s.Poll(time.Now()); err != nil {
			return fmt.Errorf("poll: %w", err)
		}
	}
}

// loadConfig loads configuration from path, or returns defaults if path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

// newLogger builds a structured logger per cfg's level and format.
func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.Level)}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// newMetricsServer creates an HTTP server exposing the Prometheus registry.
func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// listenAndServe serves srv on addr until ctx is cancelled or Serve fails.
func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// shutdownMetricsServer drains srv within shutdownTimeout.
func shutdownMetricsServer(srv *http.Server, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown error", slog.String("error", err.Error()))
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}
