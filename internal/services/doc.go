// Package services defines the [Catalog] interface for paging through a user's music library and implements it for Spotify.
//
// # Catalog Interface
//
// A catalog exposes two operations per collection: fetch the first page, and follow a page's continuation cursor.
// [Page.Next] carries the cursor; an empty cursor means the collection is exhausted.
// The playlist index and track collections use the same shape, so the exporter loops over both the same way.
//
// # Spotify Implementation
//
// [SpotifyService] wraps the github.com/zmb3/spotify/v2 client.
// Next pages are fetched by seeding an empty library page with the cursor URL and calling Client.NextPage.
//
// Authentication uses [oauth2.Config] with the Spotify accounts endpoints.
// The [oauth2] client refreshes expired tokens using the refresh token and reports new tokens through
// the callback registered with [SpotifyService.SetTokenRefreshCallback], so they can be persisted.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : token rejected or refresh failed, reauthorization needed
//   - [shared.ErrPlaylistNotFound] : playlist ID not found
//   - [shared.ErrAPIRequest] : any other failed request
//
// The client error stays in the chain so callers can inspect it with errors.As.
package services
