package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/bcperry/tak-server-mcp/internal/config"
	"github.com/bcperry/tak-server-mcp/internal/cot"
	"github.com/bcperry/tak-server-mcp/internal/geofence"
	"github.com/bcperry/tak-server-mcp/internal/mcp"
	"github.com/bcperry/tak-server-mcp/internal/server"
	"github.com/bcperry/tak-server-mcp/internal/spatial"
	"github.com/bcperry/tak-server-mcp/internal/telemetry"
	"github.com/bcperry/tak-server-mcp/internal/track"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("TAKMCP_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	// On stdio transport the protocol owns stdout; logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("takmcp starting", "version", version, "tak_addr", cfg.TAKAddr, "transport", cfg.Transport)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Entity state store with TTL sweep.
	store := track.NewStore(track.Config{
		EntityTTL:     cfg.EntityTTL,
		MaxEntities:   cfg.MaxEntities,
		HistoryWindow: cfg.HistoryWindow,
		HistoryCap:    cfg.HistoryCap,
	}, logger)
	defer func() { _ = store.Close() }()

	fences := geofence.NewEvaluator(cfg.AlertCap, logger)
	engine := spatial.NewEngine(store)

	// TAK server stream client.
	tlsCfg, err := buildTLSConfig(cfg)
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	client := cot.NewClient(cot.ClientConfig{
		Addr:        cfg.TAKAddr,
		TLS:         tlsCfg,
		DialTimeout: cfg.TAKDialTimeout,
	}, logger)

	events := make(chan *cot.Event, 256)
	go func() {
		if err := client.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("cot client stopped", "error", err)
		}
	}()

	// Ingest loop: normalize, reconcile, evaluate geofences on accepted
	// state changes only.
	go func() {
		for ev := range events {
			report, err := cot.Normalize(ev)
			if err != nil {
				logger.Debug("dropping malformed event", "uid", ev.UID, "error", err)
				continue
			}
			if store.Upsert(report) {
				fences.Evaluate(report)
			}
		}
	}()

	mcpSrv := mcp.New(store, engine, fences, client, cfg.StalenessWindow, cfg.DwellDefault, logger)

	switch cfg.Transport {
	case "stdio":
		return runStdio(ctx, mcpSrv.MCPServer())
	case "http":
		return runHTTP(ctx, cfg, mcpSrv.MCPServer(), store, logger)
	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

func runStdio(ctx context.Context, srv *mcpserver.MCPServer) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- mcpserver.ServeStdio(srv)
	}()

	select {
	case <-ctx.Done():
		slog.Info("takmcp stopped")
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio transport: %w", err)
		}
		return nil
	}
}

func runHTTP(ctx context.Context, cfg config.Config, mcpSrv *mcpserver.MCPServer, store *track.Store, logger *slog.Logger) error {
	srv := server.New(server.Config{
		MCPServer:    mcpSrv,
		Store:        store,
		Logger:       logger,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Version:      version,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("takmcp shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("takmcp stopped")
	return nil
}

// buildTLSConfig assembles the client TLS configuration for the TAK
// connection. Returns nil when TLS is not configured.
func buildTLSConfig(cfg config.Config) (*tls.Config, error) {
	if cfg.TAKTLSCert == "" {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.TAKTLSCert, cfg.TAKTLSKey)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	tc := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.TAKTLSCA != "" {
		pem, err := os.ReadFile(cfg.TAKTLSCA)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.TAKTLSCA)
		}
		tc.RootCAs = pool
	}

	return tc, nil
}
