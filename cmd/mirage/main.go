// Command mirage runs the virtual camera service: one frame engine per
// configured device, a TCP and a QUIC ingest listener for producers, and
// an HTTP API for control and inspection.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/mirage/internal/api"
	"github.com/zsiec/mirage/internal/certs"
	"github.com/zsiec/mirage/internal/config"
	"github.com/zsiec/mirage/internal/ingest"
	"github.com/zsiec/mirage/internal/stream"
	"github.com/zsiec/mirage/internal/testpattern"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "mirage.json", "path to JSON config file (missing file uses defaults)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	config.FromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	})))

	slog.Info("starting mirage",
		"version", version,
		"devices", len(cfg.Devices),
		"api_addr", cfg.APIAddr,
		"ingest_addr", cfg.IngestAddr,
		"quic_addr", cfg.QUICAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	var cert *certs.CertInfo
	if cfg.QUICAddr != "" {
		cert, err = certs.Generate(14 * 24 * time.Hour)
		if err != nil {
			slog.Error("failed to generate certificate", "error", err)
			os.Exit(1)
		}
		slog.Info("generated self-signed certificate",
			"fingerprint", cert.FingerprintBase64(),
			"expires", cert.NotAfter.Format(time.RFC3339))
	}

	mgr := stream.NewManager(nil)
	if err := buildDevices(mgr, cfg); err != nil {
		slog.Error("device setup failed", "error", err)
		os.Exit(1)
	}

	registry := ingest.NewRegistry(ingest.ManagerBinder{Manager: mgr}, nil)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.IngestAddr != "" {
		tcpSrv := ingest.NewServer(cfg.IngestAddr, registry, nil)
		g.Go(func() error {
			return tcpSrv.Start(ctx)
		})
	}

	if cfg.QUICAddr != "" {
		quicSrv := ingest.NewQUICServer(cfg.QUICAddr, registry, cert.TLSConfig(), nil)
		g.Go(func() error {
			return quicSrv.Start(ctx)
		})
	}

	apiSrv := api.NewServer(cfg.APIAddr, mgr, registry, nil)
	g.Go(func() error {
		return apiSrv.Start(ctx)
	})

	err = g.Wait()
	mgr.Shutdown()
	if err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

// buildDevices creates one running stream per configured device. Devices
// start at boot so the API and ingest listeners always see live engines.
func buildDevices(mgr *stream.Manager, cfg *config.Config) error {
	for _, dc := range cfg.Devices {
		formats, err := dc.ToFormats()
		if err != nil {
			return err
		}

		img, err := testpattern.Image(dc.TestImage, formats[0].Width, formats[0].Height)
		if err != nil {
			return fmt.Errorf("device %q: %w", dc.Key, err)
		}

		s := stream.New(stream.Config{
			Key:           dc.Key,
			TestImage:     img,
			QueueCapacity: cfg.QueueCapacity,
		})
		s.SetFormats(formats)
		if _, ok := mgr.Create(dc.Key, dc.Name, s); !ok {
			return fmt.Errorf("duplicate device key %q", dc.Key)
		}
		if !s.Start() {
			return fmt.Errorf("device %q has no startable format", dc.Key)
		}
	}
	return nil
}
