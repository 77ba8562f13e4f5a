package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/xon-patrick/SongApp/internal/capture"
	"github.com/xon-patrick/SongApp/internal/featurecache"
	"github.com/xon-patrick/SongApp/internal/plot"
	"github.com/xon-patrick/SongApp/pkg/logger"
	"github.com/xon-patrick/SongApp/pkg/models"
	"github.com/xon-patrick/SongApp/pkg/songapp"
	"github.com/xon-patrick/SongApp/pkg/songapp/audio"
	"github.com/xon-patrick/SongApp/pkg/songapp/classifier"
	"github.com/xon-patrick/SongApp/pkg/songapp/inference"
	"github.com/xon-patrick/SongApp/pkg/songapp/ingest"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
	"github.com/xon-patrick/SongApp/pkg/utils"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [songs_dir]",
		Short: "Add every song of a folder (with a .png cover next to it) to the catalogue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := cfg.Songs.Dir
			if len(args) == 1 {
				dir = args[0]
			}

			files, err := ingest.Files(dir)
			if err != nil {
				return fmt.Errorf("reading %s: %w", dir, err)
			}
			if len(files) == 0 {
				fmt.Printf("📭 No audio files in %s\n", dir)
				return nil
			}

			progress := newProgress()
			bar := progress.counter("Ingesting: ", len(files))

			svc, err := songapp.NewService(cfg.ServiceOptions(
				songapp.WithIngestObserver(func(string, ingest.Status) { bar.Increment() }),
			)...)
			if err != nil {
				bar.Abort(true)
				progress.Wait()
				return fmt.Errorf("failed to create service: %w", err)
			}
			defer svc.Close()

			report, err := svc.Ingest(cmd.Context(), dir)
			if err != nil {
				bar.Abort(false)
			}
			progress.Wait()
			if err != nil {
				return err
			}

			fmt.Printf("\n✅ Ingest complete: %d added, %d already stored\n", len(report.Added), len(report.Existing))
			for _, id := range report.SkippedNoImage {
				fmt.Printf("   ⚠️  %s skipped (no %s cover)\n", id, ingest.ImageExt)
			}
			for _, f := range report.Failed {
				fmt.Printf("   ❌ %s: %v\n", filepath.Base(f.Path), f.Err)
			}
			return nil
		},
	}
}

func newTrainCmd() *cobra.Command {
	var (
		chunkSeconds float64
		labelKey     string
		noAugment    bool
		epochs       int
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the classifier on the catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("chunk-seconds") {
				cfg.Training.ChunkSeconds = chunkSeconds
			}
			if flags.Changed("label-key") {
				cfg.Training.LabelKey = labelKey
			}
			if noAugment {
				cfg.Training.Augment = false
			}
			if flags.Changed("epochs") {
				cfg.Training.MaxEpochs = epochs
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			var songBar, epochBar *mpb.Bar
			svc, err := songapp.NewService(cfg.ServiceOptions(
				songapp.WithDatasetObserver(func(string) { songBar.Increment() }),
				songapp.WithEpochObserver(func(epoch int, _ float64) { epochBar.SetCurrent(int64(epoch)) }),
			)...)
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			defer svc.Close()

			songs, err := svc.ListSongs()
			if err != nil {
				return err
			}

			maxEpochs := cfg.Training.MaxEpochs
			if maxEpochs <= 0 {
				maxEpochs = classifier.DefaultConfig().MaxEpochs
			}
			progress := newProgress()
			songBar = progress.counter("Dataset:   ", len(songs))
			epochBar = progress.counter("Epochs:    ", maxEpochs)

			report, err := svc.Train(cmd.Context())
			songBar.SetTotal(-1, true)
			epochBar.SetTotal(-1, true)
			progress.Wait()
			if err != nil {
				return err
			}

			fmt.Println("\n✅ Training complete!")
			fmt.Printf("   Songs:    %d\n", report.Songs)
			fmt.Printf("   Labels:   %d\n", report.Labels)
			fmt.Printf("   Examples: %d (train %d / test %d)\n", report.Examples, report.TrainSize, report.TestSize)
			fmt.Printf("   Epochs:   %d (loss %.4f)\n", report.Epochs, report.Loss)
			fmt.Printf("   Model:    %s\n", report.ModelPath)
			if report.ScalerPath != "" {
				fmt.Printf("   Scaler:   %s\n", report.ScalerPath)
			}
			fmt.Printf("\n📈 %s\n", report)
			return nil
		},
	}

	cmd.Flags().Float64Var(&chunkSeconds, "chunk-seconds", 0, "Train on whole chunks of this length (0 uses stored whole-file features)")
	cmd.Flags().StringVar(&labelKey, "label-key", "", "Label column: song_name or identifier")
	cmd.Flags().BoolVar(&noAugment, "no-augment", false, "Skip noisy and smoothed copies")
	cmd.Flags().IntVar(&epochs, "epochs", 0, "Maximum training epochs")
	return cmd
}

func newIdentifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identify <audio_file>",
		Short: "Identify a recorded clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := songapp.NewRecognizer(cfg.ServiceOptions()...)
			if err != nil {
				return err
			}
			defer rec.Close()

			fmt.Println("🔍 Analyzing audio file...")
			res := rec.IdentifyFile(cmd.Context(), args[0])
			printResult(res)
			return nil
		},
	}
}

func newListenCmd() *cobra.Command {
	var (
		seconds float64
		device  int
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Record from the microphone and identify the song",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("device") {
				cfg.Capture.Device = device
			}
			if !cmd.Flags().Changed("seconds") {
				seconds = cfg.Capture.ListenSeconds
			}

			log := logger.GetLogger()
			rec, err := songapp.NewRecognizer(cfg.ServiceOptions(
				songapp.WithCapture(openCapture),
				songapp.WithStateObserver(func(s inference.State) {
					log.Debugf("state: %s", s)
					if s == inference.StateExtracting {
						fmt.Printf("🎙️  Listening for %.0f seconds...\n", seconds)
					}
				}),
			)...)
			if err != nil {
				return err
			}
			defer rec.Close()

			if err := rec.Open(); err != nil {
				return err
			}

			res := rec.IdentifyLive(cmd.Context(), seconds)
			printResult(res)
			return nil
		},
	}

	cmd.Flags().Float64Var(&seconds, "seconds", 10, "Recording length")
	cmd.Flags().IntVar(&device, "device", -1, "Input device ID (see 'devices')")
	return cmd
}

func printResult(res models.Result) {
	switch res.Outcome {
	case models.OutcomeFound:
		fmt.Println("\n✅ Song identified!")
		fmt.Printf("   Title:      %s\n", res.SongName)
		fmt.Printf("   File:       %s\n", res.Identifier)
		if res.Artist != "" {
			fmt.Printf("   Artist:     %s\n", res.Artist)
		}
		fmt.Printf("   Confidence: %.1f%%\n", res.Confidence*100)
		if len(res.Image) > 0 {
			fmt.Printf("   Cover:      %d bytes\n", len(res.Image))
		}
	case models.OutcomeNotFound:
		fmt.Printf("\n❓ Predicted %q (%.1f%%) but it is not in the catalogue\n", res.Label, res.Confidence*100)
	default:
		fmt.Printf("\n❌ Identification failed: %s\n", res.Reason)
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalogued songs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			songs, err := svc.ListSongs()
			if err != nil {
				return err
			}
			if len(songs) == 0 {
				fmt.Println("📭 No songs in database")
				return nil
			}

			fmt.Printf("📚 Found %d song(s):\n\n", len(songs))
			for i, song := range songs {
				artist := song.Artist
				if artist == "" {
					artist = "unknown artist"
				}
				cover := ""
				if !song.HasImage {
					cover = " [no cover]"
				}
				fmt.Printf("%d. \"%s\" by %s%s\n", i+1, song.SongName, artist, cover)
				fmt.Printf("   ID: %d | File: %s\n", song.ID, song.Identifier)
			}
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <identifier|id>",
		Short: "Remove a song from the catalogue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			song, err := svc.GetSong(args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("song not found: %s", args[0])
			}
			if err != nil {
				return err
			}
			if err := svc.DeleteSong(song.Identifier); err != nil {
				return err
			}

			fmt.Println("✅ Successfully deleted song:")
			fmt.Printf("   ID:     %d\n", song.ID)
			fmt.Printf("   Title:  %s\n", song.SongName)
			fmt.Printf("   Artist: %s\n", song.ArtistName())
			fmt.Println("   Retrain the model to drop its label.")
			return nil
		},
	}
}

func newPlotCmd() *cobra.Command {
	var (
		out      string
		features bool
		width    int
		height   int
	)

	cmd := &cobra.Command{
		Use:   "plot <audio_file|identifier>",
		Short: "Render a spectrogram (or the stored feature spectrum) as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			size := plot.Size{Width: width, Height: height}

			var rec *models.SongRecord
			if !utils.FileExists(target) || features {
				svc, err := newService()
				if err != nil {
					return err
				}
				defer svc.Close()

				rec, err = svc.GetSong(filepath.Base(target))
				if err != nil {
					return fmt.Errorf("looking up %s: %w", target, err)
				}
			}

			if out == "" {
				out = strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))
				if features {
					out += "-features.png"
				} else {
					out += "-spectrogram.png"
				}
			}

			if features {
				if err := plot.FeatureBars(rec.Features, out, size); err != nil {
					return err
				}
				fmt.Printf("📊 Feature spectrum written to %s\n", out)
				return nil
			}

			path := target
			if rec != nil {
				path = rec.SourcePath
			}
			decoder := audio.Decoder{UseFFmpeg: cfg.Songs.UseFFmpeg, TempDir: cfg.Songs.TempDir}
			clip, err := decoder.DecodeFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			if err := plot.Spectrogram(clip, out, size); err != nil {
				return err
			}
			fmt.Printf("🖼️  Spectrogram written to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "Output PNG path")
	cmd.Flags().BoolVar(&features, "features", false, "Plot the stored feature vector instead of a spectrogram")
	cmd.Flags().IntVar(&width, "width", 0, "Image width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "Image height in pixels")
	return cmd
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := capture.InputDevices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("📭 No input devices found")
				return nil
			}
			for _, d := range devices {
				fmt.Printf("%2d. %s (%d ch, %.0f Hz)\n", d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
			}
			return nil
		},
	}
}

func newCacheCmd() *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Show or purge the chunk feature cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := cfg.Training.CacheDir
			if dir == "" {
				fmt.Println("📭 Feature cache is disabled (training.cache_dir is empty)")
				return nil
			}

			cache, err := featurecache.Open(dir)
			if err != nil {
				return err
			}
			defer cache.Close()

			n, err := cache.Len()
			if err != nil {
				return fmt.Errorf("reading cache: %w", err)
			}
			if !purge {
				fmt.Printf("🗂️  %s holds %d cached songs\n", dir, n)
				return nil
			}
			if err := cache.Purge(); err != nil {
				return fmt.Errorf("purging cache: %w", err)
			}
			fmt.Printf("🧹 Removed %d cached songs from %s\n", n, dir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "Delete every cached entry")
	return cmd
}
