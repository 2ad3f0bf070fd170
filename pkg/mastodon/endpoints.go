package mastodon

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// VerifyCredentialsEndpoint returns the account that owns the token
	VerifyCredentialsEndpoint = "/api/v1/accounts/verify_credentials"

	// FollowersEndpoint is the endpoint pattern for an account's followers
	FollowersEndpoint = "/api/v1/accounts/%s/followers"

	// StatusesEndpoint is the endpoint pattern for an account's posts
	StatusesEndpoint = "/api/v1/accounts/%s/statuses"

	// MediaEndpoint accepts multipart media uploads
	MediaEndpoint = "/api/v2/media"

	// PostStatusEndpoint publishes a new post
	PostStatusEndpoint = "/api/v1/statuses"

	// DefaultFollowersLimit is the page size requested when none is given
	DefaultFollowersLimit = 80

	// MaxFollowersLimit is the largest page the server will hand out
	MaxFollowersLimit = 80

	// DefaultStatusesLimit is the number of posts fetched per poll
	DefaultStatusesLimit = 40
)

// normalizeBase strips trailing slashes so paths can be appended directly
func normalizeBase(baseURL string) string {
	return strings.TrimRight(baseURL, "/")
}

// GetVerifyCredentialsURL constructs the credential check URL
func GetVerifyCredentialsURL(baseURL string) string {
	return normalizeBase(baseURL) + VerifyCredentialsEndpoint
}

// FollowersURL constructs the first page URL of an account's followers.
// Later pages come from the Link header of each response.
func FollowersURL(baseURL, accountID string, limit int) string {
	if limit <= 0 {
		limit = DefaultFollowersLimit
	} else if limit > MaxFollowersLimit {
		limit = MaxFollowersLimit
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	path := fmt.Sprintf(FollowersEndpoint, url.PathEscape(accountID))
	return fmt.Sprintf("%s%s?%s", normalizeBase(baseURL), path, params.Encode())
}

// StatusesURL constructs the URL for an account's posts newer than sinceID
// and older than maxID. Empty ids leave that end open.
func StatusesURL(baseURL, accountID, sinceID, maxID string, limit int) string {
	if limit <= 0 {
		limit = DefaultStatusesLimit
	}

	params := url.Values{}
	if sinceID != "" {
		params.Set("since_id", sinceID)
	}
	if maxID != "" {
		params.Set("max_id", maxID)
	}
	params.Set("limit", strconv.Itoa(limit))

	path := fmt.Sprintf(StatusesEndpoint, url.PathEscape(accountID))
	return fmt.Sprintf("%s%s?%s", normalizeBase(baseURL), path, params.Encode())
}

// GetMediaURL constructs the media upload URL
func GetMediaURL(baseURL string) string {
	return normalizeBase(baseURL) + MediaEndpoint
}

// GetPostStatusURL constructs the publish URL
func GetPostStatusURL(baseURL string) string {
	return normalizeBase(baseURL) + PostStatusEndpoint
}
