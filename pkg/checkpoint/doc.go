// Package checkpoint persists the small amount of state mastowatch carries
// between runs.
//
// Two documents are kept:
//   - The follower snapshot, a JSON object mapping account id to normalized
//     handle, fully replaced at the end of every follower-diff run
//   - The mirror watermark, the id of the newest source post already handled
//
// Files are written atomically (temporary file, fsync, rename) so a crash
// mid-write never leaves a truncated document behind. A snapshot that is
// missing or cannot be parsed loads as empty.
package checkpoint
