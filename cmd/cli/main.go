package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xon-patrick/SongApp/internal/capture"
	"github.com/xon-patrick/SongApp/internal/config"
	"github.com/xon-patrick/SongApp/pkg/logger"
	"github.com/xon-patrick/SongApp/pkg/songapp"
	"github.com/xon-patrick/SongApp/pkg/songapp/inference"
)

// Global flags
var (
	configPath string
	dbPath     string
	modelPath  string
	logLevel   string

	cfg *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Printf("❌ %v\n", err)
		if errors.Is(err, songapp.ErrModelMissing) {
			fmt.Println("   Run 'songapp train' after ingesting songs.")
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "songapp",
		Short:         "Song identification by spectrum classification",
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: ./config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite file or postgres:// DSN (env: SONGAPP_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "Classifier file (env: SONGAPP_MODEL_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (env: SONGAPP_LOG_LEVEL)")

	rootCmd.AddCommand(
		newIngestCmd(),
		newTrainCmd(),
		newIdentifyCmd(),
		newListenCmd(),
		newListCmd(),
		newDeleteCmd(),
		newPlotCmd(),
		newDevicesCmd(),
		newCacheCmd(),
	)
	return rootCmd
}

func loadConfig() error {
	c, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		c.Database.Path = dbPath
	}
	if modelPath != "" {
		c.Training.ModelPath = modelPath
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.SetLevel(c.Level())
	cfg = c
	return nil
}

// openCapture opens the configured input device for live identification.
func openCapture() (inference.Source, error) {
	src, err := capture.Open(cfg.CaptureSettings())
	if err != nil {
		return nil, err
	}
	return src, nil
}

func newService() (*songapp.Service, error) {
	fmt.Println("🔧 Initializing service...")
	svc, err := songapp.NewService(cfg.ServiceOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, nil
}
