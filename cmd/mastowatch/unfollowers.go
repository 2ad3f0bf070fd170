package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"mastowatch/pkg/checkpoint"
	"mastowatch/pkg/config"
	"mastowatch/pkg/followers"
	"mastowatch/pkg/logger"
	"mastowatch/pkg/notify"
	"mastowatch/pkg/ui"
)

var (
	followersFile string
	schedule      string
	desktopAlert  bool
	keepBackup    bool
)

// unfollowersCmd represents the unfollowers command
var unfollowersCmd = &cobra.Command{
	Use:   "unfollowers",
	Short: "Email the accounts that stopped following since the last run",
	Long: `Fetch every follower of the source account, compare the list with the
snapshot saved by the previous run and email the handles that are gone.
The new snapshot is saved on every successful fetch.

The first run only records a baseline and never sends an alert.`,
	Example: `  # One run, e.g. from a system cron job
  mastowatch unfollowers

  # Keep running and check every six hours
  mastowatch unfollowers --schedule "0 */6 * * *"

  # Keep the previous snapshot next to the new one
  mastowatch unfollowers --backup`,
	Args: cobra.NoArgs,
	Run:  runUnfollowers,
}

func init() {
	rootCmd.AddCommand(unfollowersCmd)

	unfollowersCmd.Flags().StringVar(&followersFile, "followers-file", "", "snapshot file (default followers.json)")
	unfollowersCmd.Flags().StringVar(&schedule, "schedule", "", "cron expression; keep running and check on this schedule")
	unfollowersCmd.Flags().BoolVar(&desktopAlert, "desktop", false, "also show a desktop notification")
	unfollowersCmd.Flags().BoolVar(&keepBackup, "backup", false, "copy the previous snapshot to <file>.backup before saving")
}

func runUnfollowers(cmd *cobra.Command, args []string) {
	flags := map[string]interface{}{
		"followers-file": followersFile,
		"schedule":       schedule,
	}
	if cmd.Flags().Changed("backup") {
		flags["backup"] = keepBackup
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		fatal("Failed to load configuration", err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		fatal("Failed to initialize logger", err)
	}
	log := logger.GetLogger().WithField("command", "unfollowers")

	fillSecrets(cfg, log)
	if err := cfg.ValidateFollowers(); err != nil {
		fatal("Configuration is incomplete for the follower check", err)
	}

	printLogo()
	ui.PrintInfo("Account", cfg.Source.InstanceURL)
	ui.PrintInfo("Snapshot", cfg.Followers.SnapshotFile)

	engine := newFollowerEngine(cfg, log)

	ctx, stop := signalContext()
	defer stop()

	if cfg.Followers.Schedule == "" {
		if err := checkFollowers(ctx, engine, cfg); err != nil {
			stop()
			fatal("Follower check failed", err)
		}
		return
	}

	if err := runScheduled(ctx, cfg.Followers.Schedule, log, func() {
		if err := checkFollowers(ctx, engine, cfg); err != nil {
			log.WithError(err).Error("Scheduled follower check failed")
			ui.PrintError("Follower check failed", err)
		}
	}); err != nil {
		fatal("Invalid schedule", err)
	}
}

// newFollowerEngine wires the engine to a real client, snapshot file and mailer
func newFollowerEngine(cfg *config.Config, log logger.Logger) *followers.Engine {
	client := newClient(cfg.Source, cfg, log)

	store := checkpoint.NewFollowerStore(cfg.Followers.SnapshotFile, log)
	store.KeepBackup(cfg.Followers.Backup)

	var notifier notify.Notifier = notify.NewSMTPNotifier(cfg.SMTP, log)
	if desktopAlert {
		notifier = notify.Multi{notifier, bestEffort(notify.NewDesktopNotifier(), log)}
	}

	return followers.NewEngine(client, store, notifier, followers.Options{
		PageLimit:       cfg.Followers.PageLimit,
		MaxPages:        cfg.Followers.MaxPages,
		MaxRemovalRatio: cfg.Followers.MaxRemovalRatio,
		Subject:         cfg.Followers.Subject,
	}, log)
}

// bestEffort logs failures of n instead of reporting them, so a missing
// desktop notifier never marks the email alert as failed
func bestEffort(n notify.Notifier, log logger.Logger) notify.Notifier {
	return notify.NotifierFunc(func(ctx context.Context, subject, body string) error {
		if err := n.Notify(ctx, subject, body); err != nil {
			log.WithError(err).Warn("Desktop notification failed")
		}
		return nil
	})
}

// checkFollowers runs the engine once under the configured timeout and
// prints the outcome
func checkFollowers(ctx context.Context, engine *followers.Engine, cfg *config.Config) error {
	if cfg.Followers.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Followers.RunTimeout)
		defer cancel()
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	ui.PrintInfo("Followers", strconv.Itoa(result.Followers))
	if len(result.Removed) == 0 {
		ui.PrintSuccess("No new unfollowers")
		return nil
	}

	ui.PrintList(fmt.Sprintf("%d account(s) stopped following:", len(result.Removed)), result.Removed)
	if result.Notified {
		ui.PrintSuccess("Alert sent to " + cfg.SMTP.To)
	} else {
		ui.PrintWarning("Alert could not be sent; see the log")
	}
	return nil
}

// runScheduled runs job on spec until ctx is done. A run that is still
// going when the next one is due makes that next one skip.
func runScheduled(ctx context.Context, spec string, log logger.Logger, job func()) error {
	cl := cronLogger{log: log.WithField("schedule", spec)}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	if _, err := c.AddFunc(spec, job); err != nil {
		return err
	}

	c.Start()
	ui.PrintHighlight("Checking on schedule " + spec + " (Ctrl+C to stop)")
	log.WithField("schedule", spec).Info("Scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("Scheduler stopped")
	return nil
}

// cronLogger adapts the application logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.DebugWithFields(msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).ErrorWithFields(msg, pairs(keysAndValues))
}

func pairs(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
