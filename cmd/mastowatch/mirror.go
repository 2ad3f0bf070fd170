package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/spf13/cobra"
	"mastowatch/pkg/checkpoint"
	"mastowatch/pkg/config"
	"mastowatch/pkg/logger"
	"mastowatch/pkg/markup"
	"mastowatch/pkg/mirror"
	"mastowatch/pkg/ui"
	"mastowatch/pkg/ui/tui"
)

var (
	watermarkFile     string
	visibility        string
	continueOnFailure bool
	useTUI            bool
	resetPosition     bool
)

// mirrorCmd represents the mirror command
var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Copy new posts from the source account to the target account",
	Long: `Poll the source account and republish every new original post on the
target account, re-uploading its images with their descriptions.

Boosts, replies and posts that start with a mention are skipped. The id of
the last handled post is saved, so a restart resumes where it stopped; on
the very first start only posts written after that moment are copied.

Posts are published strictly in order: a post the target rejects stops the
batch and is retried next cycle, unless --continue-on-failure is given.`,
	Example: `  # Mirror with settings from mastowatch.yaml
  mastowatch mirror

  # Publish copies as unlisted and watch them in a dashboard
  mastowatch mirror --visibility unlisted --tui

  # Forget the saved position and start again from the newest post
  mastowatch mirror --reset-watermark`,
	Args: cobra.NoArgs,
	Run:  runMirror,
}

func init() {
	rootCmd.AddCommand(mirrorCmd)

	mirrorCmd.Flags().StringVar(&watermarkFile, "watermark-file", "", "file holding the last mirrored post id (default watermark.json)")
	mirrorCmd.Flags().StringVar(&visibility, "visibility", "", "visibility of mirrored posts (public, unlisted, private, direct)")
	mirrorCmd.Flags().BoolVar(&continueOnFailure, "continue-on-failure", false, "keep going after a post is rejected instead of retrying it first")
	mirrorCmd.Flags().BoolVar(&useTUI, "tui", false, "show a live dashboard instead of log lines")
	mirrorCmd.Flags().BoolVar(&resetPosition, "reset-watermark", false, "delete the saved position before starting")
}

func runMirror(cmd *cobra.Command, args []string) {
	flags := map[string]interface{}{
		"watermark-file": watermarkFile,
		"visibility":     visibility,
	}
	if cmd.Flags().Changed("continue-on-failure") {
		flags["continue-on-failure"] = continueOnFailure
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		fatal("Failed to load configuration", err)
	}

	var dashboard *tui.TUI
	if useTUI {
		dashboard = tui.NewTUI(cfg.Source.InstanceURL, cfg.Target.InstanceURL)
		l, err := logger.NewWithWriter(&cfg.Logging, dashboard.LogWriter())
		if err != nil {
			fatal("Failed to initialize logger", err)
		}
		logger.SetLogger(l)
	} else if err := logger.Initialize(&cfg.Logging); err != nil {
		fatal("Failed to initialize logger", err)
	}
	log := logger.GetLogger().WithField("command", "mirror")

	fillSecrets(cfg, log)
	if err := cfg.ValidateMirror(); err != nil {
		fatal("Configuration is incomplete for mirroring", err)
	}

	if resetPosition {
		if err := resetWatermark(cfg, log); err != nil {
			fatal("Failed to reset the watermark", err)
		}
		ui.PrintWarning("Watermark reset; only posts written from now on will be mirrored")
	}

	loop, err := newMirrorLoop(cfg, log)
	if err != nil {
		fatal("Failed to set up the mirror", err)
	}

	ctx, stop := signalContext()
	defer stop()

	if dashboard != nil {
		err = runWithDashboard(ctx, loop, dashboard)
	} else {
		printLogo()
		ui.PrintInfo("Source", cfg.Source.InstanceURL)
		ui.PrintInfo("Target", cfg.Target.InstanceURL)
		ui.PrintInfo("Visibility", cfg.Mirror.Visibility)
		err = loop.Run(ctx)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		stop()
		fatal("Mirror stopped", err)
	}

	stats := loop.Stats()
	log.InfoWithFields("Mirror stopped", map[string]interface{}{
		"cycles":       stats.Cycles,
		"published":    stats.Published,
		"skipped":      stats.Skipped,
		"failed":       stats.Failed,
		"rate_limited": stats.RateLimited,
		"last_id":      loop.Watermark(),
	})
	ui.PrintSuccess("Mirror stopped after " + strconv.Itoa(stats.Published) + " post(s); last id " + loop.Watermark())
}

// newMirrorLoop wires the loop to real clients and the watermark file
func newMirrorLoop(cfg *config.Config, log logger.Logger) (*mirror.Loop, error) {
	sanitizer, err := markup.New(cfg.Mirror.Sanitizer)
	if err != nil {
		return nil, err
	}

	source := newClient(cfg.Source, cfg, log.WithField("role", "source"))
	target := newClient(cfg.Target, cfg, log.WithField("role", "target"))
	store := checkpoint.NewWatermarkStore(cfg.Mirror.WatermarkFile, log)

	return mirror.NewLoop(source, target, sanitizer, store, mirror.Options{
		FetchLimit:        cfg.Mirror.FetchLimit,
		Visibility:        cfg.Mirror.Visibility,
		PostDelay:         cfg.Mirror.PostDelay,
		RateLimitCooldown: cfg.Mirror.RateLimitCooldown,
		CycleInterval:     cfg.Mirror.CycleInterval,
		ContinueOnFailure: cfg.Mirror.ContinueOnFailure,
	}, log), nil
}

// resetWatermark deletes the saved position so the loop starts again from
// the newest post
func resetWatermark(cfg *config.Config, log logger.Logger) error {
	return checkpoint.NewWatermarkStore(cfg.Mirror.WatermarkFile, log).Delete()
}

// runWithDashboard runs the loop while the dashboard owns the terminal.
// Quitting the dashboard stops the loop and a loop that ends closes the
// dashboard.
func runWithDashboard(ctx context.Context, loop *mirror.Loop, dashboard *tui.TUI) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop.SetObserver(dashboard.Observer())

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
	}()

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- dashboard.Start()
	}()

	select {
	case err := <-loopDone:
		dashboard.Stop()
		<-tuiDone
		return err
	case err := <-tuiDone:
		cancel()
		loopErr := <-loopDone
		if err != nil {
			return err
		}
		return loopErr
	}
}
