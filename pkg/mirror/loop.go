// Package mirror re-posts new original posts of a source account to a
// target account on another server.
//
// The loop polls the source timeline for posts newer than a watermark,
// processes them oldest first, re-uploads their media to the target and
// publishes them there. The watermark only moves forward, and only past
// posts that were published or deliberately skipped, and it is checkpointed
// after every move so a restart resumes where the previous process stopped.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"mastowatch/pkg/checkpoint"
	errs "mastowatch/pkg/errors"
	"mastowatch/pkg/logger"
	"mastowatch/pkg/markup"
	"mastowatch/pkg/mastodon"
)

const (
	// previewRunes is how much of a post's text is logged
	previewRunes = 30

	// maxFetchPages bounds how many pages one cycle reads while paging back
	// toward the watermark
	maxFetchPages = 25
)

// Source is the account being mirrored
type Source interface {
	VerifyCredentials(ctx context.Context) (*mastodon.Account, error)
	AccountStatuses(ctx context.Context, accountID, sinceID, maxID string, limit int) ([]mastodon.Status, error)
	LatestStatusID(ctx context.Context, accountID string) (string, error)
	DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error)
}

// Target is the account receiving copies
type Target interface {
	UploadMedia(ctx context.Context, filename string, data []byte, description string) (string, error)
	PostStatus(ctx context.Context, status mastodon.NewStatus) (*mastodon.Status, error)
}

// WatermarkStore persists the watermark
type WatermarkStore interface {
	LoadWatermark() (*checkpoint.Watermark, error)
	SaveWatermark(wm *checkpoint.Watermark) error
}

// Options tunes a Loop. Zero durations mean no delay.
type Options struct {
	FetchLimit        int
	Visibility        string
	PostDelay         time.Duration
	RateLimitCooldown time.Duration
	CycleInterval     time.Duration
	// ContinueOnFailure keeps processing the batch after a failed publish
	// instead of stopping so later posts cannot overtake it
	ContinueOnFailure bool
}

// SleepFunc pauses for d or until ctx ends
type SleepFunc func(ctx context.Context, d time.Duration) error

// Wait sleeps for delay unless ctx is cancelled first
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loop is the mirror state machine
type Loop struct {
	source    Source
	target    Target
	sanitizer markup.Sanitizer
	store     WatermarkStore
	opts      Options
	sleep     SleepFunc
	now       func() time.Time
	observer  Observer
	logger    logger.Logger

	account   *mastodon.Account
	watermark string
	stats     Stats
}

// NewLoop wires a loop. A nil sanitizer selects markup.PatternSanitizer.
func NewLoop(source Source, target Target, sanitizer markup.Sanitizer, store WatermarkStore, opts Options, log logger.Logger) *Loop {
	if log == nil {
		log = logger.GetLogger()
	}
	if sanitizer == nil {
		sanitizer = markup.NewPatternSanitizer()
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = mastodon.DefaultStatusesLimit
	}
	if opts.Visibility == "" {
		opts.Visibility = "private"
	}

	return &Loop{
		source:    source,
		target:    target,
		sanitizer: sanitizer,
		store:     store,
		opts:      opts,
		sleep:     Wait,
		now:       time.Now,
		observer:  func(Event) {},
		logger:    log.WithField("component", "mirror"),
	}
}

// SetObserver registers fn to receive loop events
func (l *Loop) SetObserver(fn Observer) {
	if fn == nil {
		fn = func(Event) {}
	}
	l.observer = fn
}

// SetSleep replaces the function used for every timed delay
func (l *Loop) SetSleep(fn SleepFunc) {
	l.sleep = fn
}

// Watermark returns the id of the newest handled source post
func (l *Loop) Watermark() string {
	return l.watermark
}

// Stats returns the counters accumulated so far
func (l *Loop) Stats() Stats {
	return l.stats
}

func (l *Loop) emit(ev Event) {
	ev.Time = l.now()
	ev.Watermark = l.watermark
	l.observer(ev)
}

// Start resolves the source account and the initial watermark. A stored
// watermark for the same account is resumed; otherwise the newest existing
// post becomes the watermark so the backlog is not reposted.
func (l *Loop) Start(ctx context.Context) error {
	account, err := l.source.VerifyCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify source credentials: %w", err)
	}
	l.account = account

	l.logger.InfoWithFields("Mirror started for account", map[string]interface{}{
		"username":   account.Username,
		"account_id": account.ID,
	})

	stored, err := l.store.LoadWatermark()
	if err != nil {
		return fmt.Errorf("failed to load watermark: %w", err)
	}

	switch {
	case stored != nil && stored.AccountID == account.ID:
		l.watermark = stored.LastID
		l.logger.InfoWithFields("Resuming from stored watermark", map[string]interface{}{
			"last_id": l.watermark,
		})
	default:
		if stored != nil {
			l.logger.WarnWithFields("Stored watermark belongs to another account, ignoring it", map[string]interface{}{
				"stored_account_id": stored.AccountID,
			})
		}
		latest, err := l.source.LatestStatusID(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("failed to resolve latest post: %w", err)
		}
		l.watermark = latest
		if latest != "" {
			l.checkpoint()
		}
	}

	l.logger.InfoWithFields("Waiting for new posts", map[string]interface{}{
		"last_id": l.watermark,
	})
	l.emit(Event{Kind: EventStarted, Reason: account.Username})

	return nil
}

// Run starts the loop and cycles until ctx is cancelled. Only startup
// failures and cancellation end it.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Start(ctx); err != nil {
		return err
	}

	for {
		if err := l.RunCycle(ctx); err != nil {
			return err
		}

		l.emit(Event{Kind: EventCycleFinished, Until: l.now().Add(l.opts.CycleInterval)})
		if err := l.sleep(ctx, l.opts.CycleInterval); err != nil {
			return err
		}
	}
}

// RunCycle fetches and processes one batch. It only returns an error when
// ctx is cancelled; every other failure is logged and handled by leaving
// the watermark where it is.
func (l *Loop) RunCycle(ctx context.Context) error {
	if l.account == nil {
		return errors.New("mirror loop not started")
	}

	l.stats.Cycles++
	log := l.logger.WithField("cycle_id", uuid.NewString())
	l.emit(Event{Kind: EventCycleStarted})

	statuses, err := l.fetch(ctx, log)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("Failed to fetch new posts, skipping cycle")
		l.emit(Event{Kind: EventFetchFailed, Err: err})
		return nil
	}

	if len(statuses) > 0 {
		log.DebugWithFields("Fetched new posts", map[string]interface{}{
			"count":    len(statuses),
			"since_id": l.watermark,
		})
	}

	// The server returns newest first.
	for i := len(statuses) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}

		cont, err := l.process(ctx, &statuses[i], log)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}

	return nil
}

// fetch returns every post newer than the watermark, newest first. The
// server answers with the newest page after since_id, so while pages come
// back full the older posts between them and the watermark are requested
// with max_id. Without a watermark only the newest page is read.
func (l *Loop) fetch(ctx context.Context, log logger.Logger) ([]mastodon.Status, error) {
	limit := l.opts.FetchLimit
	if limit <= 0 {
		limit = mastodon.DefaultStatusesLimit
	}

	statuses, err := l.source.AccountStatuses(ctx, l.account.ID, l.watermark, "", limit)
	if err != nil || l.watermark == "" {
		return statuses, err
	}

	page := statuses
	for pages := 1; len(page) >= limit; pages++ {
		oldest := page[len(page)-1].ID
		if pages == maxFetchPages {
			log.WarnWithFields("Backlog exceeds the fetch window, older posts will not be mirrored", map[string]interface{}{
				"since_id":  l.watermark,
				"oldest_id": oldest,
				"pages":     pages,
			})
			break
		}

		page, err = l.source.AccountStatuses(ctx, l.account.ID, l.watermark, oldest, limit)
		if err != nil {
			return nil, err
		}
		if len(page) > 0 && !mastodon.IDAfter(oldest, page[0].ID) {
			// max_id was ignored; stop rather than reread the same page
			break
		}
		statuses = append(statuses, page...)
	}

	return statuses, nil
}

// process handles one post. It reports whether the batch should go on.
func (l *Loop) process(ctx context.Context, status *mastodon.Status, log logger.Logger) (bool, error) {
	if !mastodon.IDAfter(status.ID, l.watermark) {
		return true, nil
	}

	if reason := skipReason(status); reason != "" {
		l.skip(status.ID, reason, log)
		return true, nil
	}

	text := l.sanitizer.ToText(status.Content)
	if strings.HasPrefix(text, "@") {
		l.skip(status.ID, "mention", log)
		return true, nil
	}

	postLog := log.WithField("status_id", status.ID)
	postLog.InfoWithFields("New post", map[string]interface{}{
		"preview": preview(text),
		"media":   len(status.MediaAttachments),
	})

	mediaIDs := l.uploadMedia(ctx, status, postLog)
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := l.target.PostStatus(ctx, mastodon.NewStatus{
		Status:     text,
		Visibility: l.opts.Visibility,
		MediaIDs:   mediaIDs,
	})

	switch {
	case err == nil:
		l.advance(status.ID)
		l.stats.Published++
		postLog.InfoWithFields("Post mirrored", map[string]interface{}{
			"media": len(mediaIDs),
		})
		l.emit(Event{Kind: EventPublished, StatusID: status.ID, Preview: preview(text), Media: len(mediaIDs)})
		return true, l.sleep(ctx, l.opts.PostDelay)

	case ctx.Err() != nil:
		return false, ctx.Err()

	case errs.IsRateLimited(err):
		l.stats.RateLimited++
		postLog.WarnWithFields("Rate limited by target, cooling down", map[string]interface{}{
			"cooldown": l.opts.RateLimitCooldown,
		})
		l.emit(Event{Kind: EventRateLimited, StatusID: status.ID, Err: err, Until: l.now().Add(l.opts.RateLimitCooldown)})
		return false, l.sleep(ctx, l.opts.RateLimitCooldown)

	default:
		l.stats.Failed++
		postLog.WithError(err).ErrorWithFields("Failed to publish post", map[string]interface{}{
			"continue": l.opts.ContinueOnFailure,
		})
		l.emit(Event{Kind: EventFailed, StatusID: status.ID, Preview: preview(text), Err: err})
		if !l.opts.ContinueOnFailure {
			return false, nil
		}
		return true, l.sleep(ctx, l.opts.PostDelay)
	}
}

// skipReason reports why a post is never mirrored, or "" if it is eligible
func skipReason(status *mastodon.Status) string {
	switch {
	case status.IsReblog():
		return "reblog"
	case status.IsReply():
		return "reply"
	default:
		return ""
	}
}

func (l *Loop) skip(id, reason string, log logger.Logger) {
	l.advance(id)
	l.stats.Skipped++
	log.DebugWithFields("Skipping post", map[string]interface{}{
		"status_id": id,
		"reason":    reason,
	})
	l.emit(Event{Kind: EventSkipped, StatusID: id, Reason: reason})
}

// uploadMedia re-uploads every attachment to the target, dropping the ones
// that fail
func (l *Loop) uploadMedia(ctx context.Context, status *mastodon.Status, log logger.Logger) []string {
	mediaIDs := make([]string, 0, len(status.MediaAttachments))

	for i := range status.MediaAttachments {
		attachment := &status.MediaAttachments[i]
		if ctx.Err() != nil {
			return mediaIDs
		}

		id, err := l.reupload(ctx, attachment)
		if err != nil {
			l.stats.MediaFailed++
			log.WithError(err).WarnWithFields("Skipping attachment", map[string]interface{}{
				"url": attachment.URL,
			})
			l.emit(Event{Kind: EventMediaFailed, StatusID: status.ID, Err: err})
			continue
		}
		mediaIDs = append(mediaIDs, id)
	}

	return mediaIDs
}

func (l *Loop) reupload(ctx context.Context, attachment *mastodon.MediaAttachment) (string, error) {
	data, err := l.source.DownloadMedia(ctx, attachment.URL)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}

	id, err := l.target.UploadMedia(ctx, mastodon.MediaFilename(attachment.URL), data, attachment.AltText())
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return id, nil
}

// advance moves the watermark forward to id and checkpoints it
func (l *Loop) advance(id string) {
	if !mastodon.IDAfter(id, l.watermark) {
		return
	}
	l.watermark = id
	l.checkpoint()
}

func (l *Loop) checkpoint() {
	wm := &checkpoint.Watermark{LastID: l.watermark, AccountID: l.account.ID}
	if err := l.store.SaveWatermark(wm); err != nil {
		l.logger.WithError(err).Error("Failed to checkpoint watermark")
	}
}

// preview returns the first runes of text for logs
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes])
}
