// Package server runs the short-lived HTTP server that completes the OAuth authorization code flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback to prevent replay attacks.
//
// # Usage
//
// When the stored token is missing or rejected, the CLI starts a [CallbackServer] on the redirect URI's host and port,
// opens the authorization URL in a browser, waits for [OAuthHandler.Wait], and shuts the server down.
package server
