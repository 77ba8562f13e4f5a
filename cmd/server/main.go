package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xon-patrick/SongApp/internal/capture"
	"github.com/xon-patrick/SongApp/internal/config"
	"github.com/xon-patrick/SongApp/internal/transport"
	"github.com/xon-patrick/SongApp/pkg/logger"
	"github.com/xon-patrick/SongApp/pkg/songapp"
	"github.com/xon-patrick/SongApp/pkg/songapp/inference"
)

var (
	configPath     string
	addr           string
	dbPath         string
	modelPath      string
	allowedOrigins string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cobra.Command{
		Use:           "songapp-server",
		Short:         "HTTP API for song identification",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config.yaml")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (env: SONGAPP_SERVER_ADDR)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite file or postgres:// DSN (env: SONGAPP_DB_PATH)")
	cmd.Flags().StringVar(&modelPath, "model", "", "Classifier file (env: SONGAPP_MODEL_PATH)")
	cmd.Flags().StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")

	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Errorf("Server failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if modelPath != "" {
		cfg.Training.ModelPath = modelPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.SetLevel(cfg.Level())
	log := logger.GetLogger()

	captureCfg := cfg.CaptureSettings()

	opts := cfg.ServiceOptions()
	if cfg.Server.Live {
		opts = append(opts, songapp.WithCapture(func() (inference.Source, error) {
			src, err := capture.Open(captureCfg)
			if err != nil {
				return nil, err
			}
			return src, nil
		}))
	}

	var (
		catalogue  Catalogue
		recognizer Recognizer
	)
	rec, err := songapp.NewRecognizer(opts...)
	switch {
	case err == nil:
		defer rec.Close()
		if err := rec.Open(); err != nil {
			log.Warnf("Live capture unavailable: %v", err)
			cfg.Server.Live = false
		}
		catalogue, recognizer = rec, rec
	case errors.Is(err, songapp.ErrModelMissing):
		log.Warnf("%v; identification endpoints are disabled", err)
		svc, err := songapp.NewService(opts...)
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()
		catalogue = svc
	default:
		return err
	}

	server := NewServer(catalogue, recognizer, &ServerConfig{
		Addr:           cfg.Server.Addr,
		TempDir:        cfg.Songs.TempDir,
		AllowedOrigins: parseOrigins(allowedOrigins),
		Live:           cfg.Server.Live,
		ListenSeconds:  cfg.Capture.ListenSeconds,
	})

	if cfg.Server.Spectrum {
		hub := transport.NewWebSocketHub(log)
		defer hub.Close()

		src, err := capture.Open(captureCfg)
		if err != nil {
			log.Warnf("Spectrum feed unavailable: %v", err)
		} else {
			defer src.Close()
			vis := &capture.Visualizer{
				Source:   src,
				Sink:     hub,
				Spectrum: capture.NewSpectrum(cfg.Capture.FrameSize, cfg.Capture.HannWindow),
				Interval: cfg.Capture.SpectrumInterval,
			}
			go func() {
				if err := vis.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Errorf("Spectrum feed stopped: %v", err)
				}
			}()
			server.WithSpectrum(hub)
		}
	}

	return server.Start(ctx)
}

func parseOrigins(list string) []string {
	if strings.TrimSpace(list) == "*" {
		return []string{"*"}
	}
	origins := strings.Split(list, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}
