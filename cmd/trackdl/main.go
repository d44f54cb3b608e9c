package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trackdl/internal/config"
	"trackdl/internal/download"
	"trackdl/internal/logger"
	"trackdl/internal/vk"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "trackdl",
		Short:         "Download audio tracks from VK over HLS",
		Long:          "trackdl resolves a VK audio track, downloads its HLS segments concurrently,\ndecrypts them, and writes an mp3 to the save directory.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to the config file")
	root.PersistentFlags().StringVarP(&flags.logLevel, "log-level", "L", "", "log level (error, warn, info, debug)")

	root.AddCommand(newGetCommand(flags))
	return root
}

func newGetCommand(flags *rootFlags) *cobra.Command {
	var (
		saveDir     string
		concurrency int
		timeout     time.Duration
		strict      bool
		noProgress  bool
	)

	cmd := &cobra.Command{
		Use:   "get <owner_id> <audio_id>",
		Short: "Download one track by its owner and audio id",
		Long:  "Download one track. Owner ids are negative for group-owned tracks,\ne.g.: trackdl get -- -371745470 456463164",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid owner id %q: %w", args[0], err)
			}
			audioID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid audio id %q: %w", args[1], err)
			}

			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			if flags.logLevel != "" {
				cfg.LogLevel = flags.logLevel
			}
			if saveDir != "" {
				cfg.SaveDir = saveDir
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Download.Concurrency = concurrency
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Download.SegmentTimeout = timeout
			}
			if cmd.Flags().Changed("strict") {
				cfg.Download.Strict = strict
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.VK.AccessToken == "" {
				return errors.New("no API credentials: set vk.access_token in the config file")
			}

			log := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
			resolver := vk.NewClient(cfg, log)
			service := download.NewService(cfg, log, resolver,
				download.WithProgress(!noProgress))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path, err := service.DownloadTrack(ctx, ownerID, audioID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&saveDir, "save-dir", "d", "", "override the save directory")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", config.DefaultConcurrency, "max simultaneously in-flight segment downloads")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", config.DefaultSegmentTimeout, "per-segment timeout")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail the job when any segment fails")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")

	return cmd
}

// loadConfig loads the explicit config file when given, otherwise the
// default location, otherwise built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath, err := config.DefaultPath()
	if err != nil {
		return config.Default(), nil
	}
	cfg, err := config.Load(defaultPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}
