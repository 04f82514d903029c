// package services defines the Catalog interface for reading a user's library from a music service
//
// Spotify (via github.com/zmb3/spotify/v2)
package services

import (
	"context"

	"github.com/desertthunder/spotback/internal/models"
	"golang.org/x/oauth2"
)

// Page is one batch of items plus the continuation cursor for the next batch.
//
// An empty Next means the collection is exhausted.
type Page[T any] struct {
	Collection models.Collection // collection the page was read from; zero for the playlist index
	Items      []T
	Next       string
	Total      int // total items in the collection as reported by the service
}

// HasNext reports whether another page exists after p.
func (p *Page[T]) HasNext() bool {
	return p != nil && p.Next != ""
}

// RawArtist is an artist as the catalog returns it.
type RawArtist struct {
	ID   string
	Name string
}

// RawAlbum is the album a track belongs to.
type RawAlbum struct {
	ID   string
	Name string
}

// RawTrack is one track item exactly as the catalog returned it, before flattening.
type RawTrack struct {
	ID         string
	Name       string
	Artists    []RawArtist
	Album      RawAlbum
	Popularity int
	URI        string
}

// Catalog reads collections page by page.
//
// First* calls fetch the initial page of a collection and Next* calls follow its cursor.
// Implementations are used strictly sequentially per page chain.
type Catalog interface {
	// CurrentUser returns the authenticated user.
	CurrentUser(ctx context.Context) (*models.User, error)

	// FirstPlaylists fetches the first page of the playlist index for userID.
	FirstPlaylists(ctx context.Context, userID string) (*Page[models.Playlist], error)

	// NextPlaylists follows page's cursor.
	NextPlaylists(ctx context.Context, page *Page[models.Playlist]) (*Page[models.Playlist], error)

	// FirstTracks fetches the first page of a playlist or of the liked tracks.
	FirstTracks(ctx context.Context, c models.Collection) (*Page[RawTrack], error)

	// NextTracks follows page's cursor.
	NextTracks(ctx context.Context, page *Page[RawTrack]) (*Page[RawTrack], error)
}

// OAuthService is a [Catalog] that authenticates through an OAuth2 authorization code flow.
type OAuthService interface {
	Catalog

	// AuthURL returns the URL the user visits to grant access.
	AuthURL(state string) string

	// OAuthConfig exposes the client configuration used for code exchange.
	OAuthConfig() *oauth2.Config

	// Authenticate installs token and makes the catalog usable.
	Authenticate(ctx context.Context, token *oauth2.Token) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}
