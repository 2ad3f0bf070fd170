// Package ratelimit paces outbound API requests.
//
// Mastodon instances answer 429 once an account exceeds its request budget
// (300 requests per 5 minutes by default). Every request made by a
// mastodon.Client first takes a token from a TokenBucket, so a long follower
// pagination or a burst of media uploads stays under the server budget:
//
//	limiter := ratelimit.NewTokenBucket(60, time.Minute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // context cancelled while waiting
//	}
package ratelimit
