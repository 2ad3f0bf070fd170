// Package followers detects accounts that stopped following the owner of an
// access token since the previous run.
package followers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	errs "mastowatch/pkg/errors"
	"mastowatch/pkg/logger"
	"mastowatch/pkg/mastodon"
	"mastowatch/pkg/notify"
)

// ErrSuspiciousShrink is returned when more followers vanished in one run
// than the configured ratio allows. Nothing is persisted or sent.
var ErrSuspiciousShrink = errors.New("follower set shrank suspiciously")

// Client is the part of the Mastodon API the engine uses
type Client interface {
	BaseURL() string
	VerifyCredentials(ctx context.Context) (*mastodon.Account, error)
	FollowersPage(ctx context.Context, pageURL string) (*mastodon.FollowersPage, error)
}

// Store persists snapshots between runs
type Store interface {
	LoadFollowers() (map[string]string, error)
	SaveFollowers(snapshot map[string]string) error
}

// Options tunes an Engine. Zero values fall back to defaults.
type Options struct {
	// PageLimit is the page size requested from the followers endpoint
	PageLimit int
	// MaxPages bounds pagination
	MaxPages int
	// MaxRemovalRatio refuses runs that lose more than this share of the
	// previous snapshot; 0 disables the check
	MaxRemovalRatio float64
	// Subject of the alert
	Subject string
}

const (
	defaultPageLimit = 80
	defaultMaxPages  = 1000
	defaultSubject   = "Mastodon Unfollower Alert"
)

// Engine runs the follower diff for one account
type Engine struct {
	client   Client
	store    Store
	notifier notify.Notifier
	opts     Options
	domain   string
	logger   logger.Logger
}

// Result summarizes one run
type Result struct {
	RunID     string
	Followers int
	Removed   []string
	Notified  bool
}

// NewEngine wires an engine. notifier may be nil, in which case removals
// are only logged.
func NewEngine(client Client, store Store, notifier notify.Notifier, opts Options, log logger.Logger) *Engine {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = defaultPageLimit
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	if opts.Subject == "" {
		opts.Subject = defaultSubject
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(log)
	}

	return &Engine{
		client:   client,
		store:    store,
		notifier: notifier,
		opts:     opts,
		domain:   InstanceDomain(client.BaseURL()),
		logger:   log.WithField("component", "followers"),
	}
}

// Reconcile fetches the complete current follower set and diffs it against
// previous. It fails when credentials cannot be verified, when any page
// fails, when pagination does not terminate or when the removal guard trips.
func (e *Engine) Reconcile(ctx context.Context, previous Snapshot) ([]string, Snapshot, error) {
	return e.reconcile(ctx, previous, e.logger)
}

func (e *Engine) reconcile(ctx context.Context, previous Snapshot, log logger.Logger) ([]string, Snapshot, error) {
	owner, err := e.client.VerifyCredentials(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to verify credentials: %w", err)
	}

	next, err := e.fetchAll(ctx, owner.ID, log)
	if err != nil {
		return nil, nil, err
	}

	removed := Diff(previous, next)

	if e.opts.MaxRemovalRatio > 0 && len(previous) > 0 {
		ratio := float64(len(removed)) / float64(len(previous))
		if ratio > e.opts.MaxRemovalRatio {
			log.WarnWithFields("Removal guard tripped", map[string]interface{}{
				"previous":  len(previous),
				"current":   len(next),
				"removed":   len(removed),
				"max_ratio": e.opts.MaxRemovalRatio,
			})
			return nil, nil, fmt.Errorf("%w: %d of %d followers gone (limit %.0f%%)",
				ErrSuspiciousShrink, len(removed), len(previous), e.opts.MaxRemovalRatio*100)
		}
	}

	return removed, next, nil
}

// fetchAll walks the followers pages from the first URL until the server
// stops advertising a next page
func (e *Engine) fetchAll(ctx context.Context, accountID string, log logger.Logger) (Snapshot, error) {
	next := make(Snapshot)
	visited := make(map[string]bool)
	pageURL := mastodon.FollowersURL(e.client.BaseURL(), accountID, e.opts.PageLimit)

	for pages := 0; pageURL != ""; pages++ {
		if pages >= e.opts.MaxPages {
			return nil, errs.New(errs.ErrorTypePagination, 0, "followers pagination exceeded %d pages", e.opts.MaxPages)
		}
		if visited[pageURL] {
			return nil, errs.New(errs.ErrorTypePagination, 0, "followers pagination revisited %s", pageURL)
		}
		visited[pageURL] = true

		page, err := e.client.FollowersPage(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch followers page %d: %w", pages+1, err)
		}

		for _, account := range page.Accounts {
			next[account.ID] = NormalizeHandle(account.Acct, e.domain)
		}

		log.DebugWithFields("Followers page processed", map[string]interface{}{
			"page":     pages + 1,
			"accounts": len(page.Accounts),
			"total":    len(next),
		})

		pageURL = page.Next
	}

	return next, nil
}

// Run performs one complete batch: load the previous snapshot, reconcile,
// alert about removals and persist the new snapshot. A notification failure
// is logged and does not fail the run.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	result := &Result{RunID: uuid.NewString()}
	log := e.logger.WithField("run_id", result.RunID)

	log.Info("Loading cached follower state")
	stored, err := e.store.LoadFollowers()
	if err != nil {
		return result, fmt.Errorf("failed to load follower snapshot: %w", err)
	}
	previous := Snapshot(stored)

	log.Info("Fetching current followers")
	removed, next, err := e.reconcile(ctx, previous, log)
	if err != nil {
		return result, err
	}
	result.Followers = len(next)
	result.Removed = removed

	if len(removed) > 0 {
		log.WarnWithFields("Detected unfollowers", map[string]interface{}{
			"count":   len(removed),
			"handles": removed,
		})
		if err := e.notifier.Notify(ctx, e.opts.Subject, AlertBody(removed)); err != nil {
			log.WithError(err).Error("Failed to send unfollower alert")
		} else {
			result.Notified = true
		}
	} else {
		log.Info("No new unfollowers detected")
	}

	if err := e.store.SaveFollowers(next); err != nil {
		return result, fmt.Errorf("failed to save follower snapshot: %w", err)
	}

	log.InfoWithFields("Follower check complete", map[string]interface{}{
		"previous":  len(previous),
		"followers": len(next),
		"removed":   len(removed),
	})

	return result, nil
}
