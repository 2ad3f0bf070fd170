package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mastowatch/pkg/auth"
	"mastowatch/pkg/config"
	"mastowatch/pkg/logger"
	"mastowatch/pkg/mastodon"
	"mastowatch/pkg/ratelimit"
	"mastowatch/pkg/ui"
)

// loadConfig merges the global flags with extra and loads the configuration
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := globalFlags()
	for k, v := range extra {
		flags[k] = v
	}
	return config.Load(configFile, flags)
}

// fillSecrets completes empty tokens and the SMTP password from the
// credential store. A store that cannot be opened is not an error: the
// validation that follows reports what is still missing.
func fillSecrets(cfg *config.Config, log logger.Logger) {
	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("Credential store unavailable")
		return
	}
	fillSecretsFrom(manager, cfg, log)
}

func fillSecretsFrom(manager *auth.Manager, cfg *config.Config, log logger.Logger) {
	for _, profile := range manager.Fill(cfg) {
		log.WithField("profile", profile).Debug("Using stored secret")
	}
}

// newClient builds a rate-limited API client for one account
func newClient(account config.AccountConfig, cfg *config.Config, log logger.Logger) *mastodon.Client {
	client := mastodon.NewClient(account.InstanceURL, account.AccessToken, cfg.HTTP.Timeout, log)
	if cfg.HTTP.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.HTTP.UserAgent)
	}
	client.SetLimiter(ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute))
	return client
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// fatal reports err on the terminal and in the log, then exits 1
func fatal(msg string, err error) {
	logger.WithError(err).Error(msg)
	ui.PrintError(msg, err)
	os.Exit(1)
}

func printLogo() {
	if !noLogo {
		ui.PrintLogo()
	}
}
