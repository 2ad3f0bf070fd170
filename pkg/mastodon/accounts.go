package mastodon

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/tomnomnom/linkheader"
)

// VerifyCredentials returns the account the access token belongs to
func (c *Client) VerifyCredentials(ctx context.Context) (*Account, error) {
	var account Account
	if _, err := c.getJSON(ctx, GetVerifyCredentialsURL(c.baseURL), &account); err != nil {
		c.logger.WithError(err).Error("failed to verify credentials")
		return nil, err
	}

	c.logger.DebugWithFields("verified credentials", map[string]interface{}{
		"account_id": account.ID,
		"username":   account.Username,
	})

	return &account, nil
}

// FollowersPage fetches one page of followers from pageURL. The next page,
// if any, is taken from the rel="next" entry of the Link header and resolved
// against pageURL.
func (c *Client) FollowersPage(ctx context.Context, pageURL string) (*FollowersPage, error) {
	var accounts []Account
	header, err := c.getJSON(ctx, pageURL, &accounts)
	if err != nil {
		return nil, err
	}

	page := &FollowersPage{
		Accounts: accounts,
		Next:     nextLink(header, pageURL),
	}

	c.logger.DebugWithFields("fetched followers page", map[string]interface{}{
		"count":    len(accounts),
		"has_next": page.Next != "",
	})

	return page, nil
}

// nextLink extracts the rel="next" target from the Link headers
func nextLink(header http.Header, current string) string {
	values := header.Values("Link")
	if len(values) == 0 {
		return ""
	}

	links := linkheader.Parse(strings.Join(values, ", "))
	for _, link := range links.FilterByRel("next") {
		if link.URL == "" {
			continue
		}
		base, err := url.Parse(current)
		if err != nil {
			return link.URL
		}
		ref, err := url.Parse(link.URL)
		if err != nil {
			return ""
		}
		return base.ResolveReference(ref).String()
	}

	return ""
}
