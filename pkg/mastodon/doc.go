// Package mastodon is a small client for the parts of the Mastodon REST API
// mastowatch needs.
//
// This package includes:
//   - A client that adds bearer authentication, paces requests through a
//     ratelimit.Limiter and maps HTTP failures onto typed errors
//   - Models for accounts, statuses and media attachments
//   - Helper functions for constructing API endpoints
//   - Follower pagination driven by the Link response header
//
// Example usage:
//
//	client := mastodon.NewClient("https://mastodon.social", token, 60*time.Second, log)
//
//	me, err := client.VerifyCredentials(ctx)
//	if err != nil {
//	    if errors.TypeOf(err) == errors.ErrorTypeAuth {
//	        // Token rejected
//	    }
//	}
//
//	next := mastodon.FollowersURL(client.BaseURL(), me.ID, 80)
//	for next != "" {
//	    page, err := client.FollowersPage(ctx, next)
//	    // Handle page.Accounts
//	    next = page.Next
//	}
package mastodon
