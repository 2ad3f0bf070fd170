package mastodon

import (
	"context"

	errs "mastowatch/pkg/errors"
)

// AccountStatuses returns up to limit posts of accountID newer than sinceID
// and older than maxID, newest first as the server orders them. The server
// fills the page from the newest end, so a full page may leave posts between
// sinceID and the page; ask again with maxID set to the oldest id received.
func (c *Client) AccountStatuses(ctx context.Context, accountID, sinceID, maxID string, limit int) ([]Status, error) {
	var statuses []Status
	if _, err := c.getJSON(ctx, StatusesURL(c.baseURL, accountID, sinceID, maxID, limit), &statuses); err != nil {
		c.logger.WithError(err).WarnWithFields("failed to fetch statuses", map[string]interface{}{
			"account_id": accountID,
			"since_id":   sinceID,
			"max_id":     maxID,
		})
		return nil, err
	}

	return statuses, nil
}

// LatestStatusID returns the id of the account's newest post, or "" when the
// account has never posted
func (c *Client) LatestStatusID(ctx context.Context, accountID string) (string, error) {
	statuses, err := c.AccountStatuses(ctx, accountID, "", "", 1)
	if err != nil {
		return "", err
	}
	if len(statuses) == 0 {
		return "", nil
	}
	return statuses[0].ID, nil
}

// PostStatus publishes a post. A 429 from the server comes back as an error
// of type errors.ErrorTypeRateLimit. Once the server answered 2xx the post
// exists, so an unreadable answer only costs the returned Status its fields.
func (c *Client) PostStatus(ctx context.Context, status NewStatus) (*Status, error) {
	if status.MediaIDs == nil {
		status.MediaIDs = []string{}
	}

	var created Status
	if err := c.postJSON(ctx, GetPostStatusURL(c.baseURL), status, &created); err != nil {
		if !errs.IsAccepted(err) {
			return nil, err
		}
		c.logger.WithError(err).Warn("status accepted but the response could not be decoded")
		return &Status{}, nil
	}

	c.logger.DebugWithFields("published status", map[string]interface{}{
		"status_id": created.ID,
		"media":     len(status.MediaIDs),
	})

	return &created, nil
}

// IDAfter reports whether status id a is newer than id b. Mastodon ids are
// decimal strings of growing length, so a longer id is always newer and
// equal lengths compare lexically. Every id is after the empty id.
func IDAfter(a, b string) bool {
	if b == "" {
		return a != ""
	}
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}
