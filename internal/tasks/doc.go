// Package tasks exports a user's library from a catalog into a snapshot with real-time progress reporting.
//
// # Core Operations
//
//  1. [ExportCollection] : Page through one collection
//     - Fetches the first page, then follows the continuation cursor until it is empty
//     - Flattens every item with [ExtractRecord], keeping source order
//     - Labels records with the playlist name, or "Liked Tracks" for the liked collection
//
//  2. [OwnedPlaylists] : Page through the playlist listing
//     - Keeps playlists whose owner is the given user, in listing order
//
//  3. [Backup] : Produce one snapshot
//     - Exports owned playlists, then liked tracks, on a rate-limited worker pool
//     - Writes records to a [formatter.Sink] in collection order
//     - Aborts the sink on the first failure, so no partial snapshot is left behind
//
// # Retries
//
// Page fetches go through a bounded [RetryPolicy] with exponential backoff.
// Expired tokens, missing playlists, and cancellation are returned immediately.
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
