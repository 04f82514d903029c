// Spotify implementation of [Catalog]
//
// Requests go through github.com/zmb3/spotify/v2; this file maps its page types onto [Page].
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/spotback/internal/models"
	"github.com/desertthunder/spotback/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	defaultRedirectURI = "http://127.0.0.1:3000/callback"

	playlistPageSize = 50
	itemPageSize     = 100
	likedPageSize    = 50
)

// SpotifyService implements [OAuthService] for the Spotify Web API.
type SpotifyService struct {
	config         *oauth2.Config
	baseURL        string
	client         *spotify.Client
	onTokenRefresh func(*oauth2.Token)
	mu             sync.RWMutex
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithAPIBaseURL points the client at a different API root, e.g. an httptest server.
// The URL must end with a slash.
func WithAPIBaseURL(url string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = url }
}

// WithEndpoint replaces the accounts service endpoints used for code exchange and refresh.
func WithEndpoint(endpoint oauth2.Endpoint) SpotifyOption {
	return func(s *SpotifyService) { s.config.Endpoint = endpoint }
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(creds shared.SpotifyConfig, opts ...SpotifyOption) (*SpotifyService, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := creds.RedirectURI
	if redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes: []string{
				spotifyauth.ScopeUserLibraryRead,
				spotifyauth.ScopePlaylistReadPrivate,
				spotifyauth.ScopePlaylistReadCollaborative,
			},
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// OAuthConfig returns the underlying [oauth2.Config].
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// SetTokenRefreshCallback registers fn to be called whenever the client obtains a new access token.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = fn
}

// Authenticate builds an HTTP client that attaches token to every request and refreshes it when it expires.
func (s *SpotifyService) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: no access or refresh token", shared.ErrNotAuthenticated)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	source := &refreshableTokenSource{
		source:   s.config.TokenSource(context.WithoutCancel(ctx), token),
		callback: s.onTokenRefresh,
	}
	httpClient := oauth2.NewClient(context.WithoutCancel(ctx), source)

	var opts []spotify.ClientOption
	if s.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.baseURL))
	}
	s.client = spotify.New(httpClient, opts...)
	return nil
}

func (s *SpotifyService) api() (*spotify.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}
	return s.client, nil
}

// CurrentUser retrieves the current authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*models.User, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, classify(err)
	}

	return &models.User{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// FirstPlaylists fetches the first page of userID's public and followed playlists.
func (s *SpotifyService) FirstPlaylists(ctx context.Context, userID string) (*Page[models.Playlist], error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	page, err := client.GetPlaylistsForUser(ctx, userID, spotify.Limit(playlistPageSize))
	if err != nil {
		return nil, classify(err)
	}

	return playlistPage(page), nil
}

// NextPlaylists follows the cursor of a playlist index page.
func (s *SpotifyService) NextPlaylists(ctx context.Context, page *Page[models.Playlist]) (*Page[models.Playlist], error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	next := &spotify.SimplePlaylistPage{}
	next.Next = page.Next
	if err := client.NextPage(ctx, next); err != nil {
		return nil, classify(err)
	}

	return playlistPage(next), nil
}

// FirstTracks fetches the first page of a playlist's items or of the user's saved tracks.
func (s *SpotifyService) FirstTracks(ctx context.Context, c models.Collection) (*Page[RawTrack], error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	switch c.Kind {
	case models.KindLiked:
		page, err := client.CurrentUsersTracks(ctx, spotify.Limit(likedPageSize))
		if err != nil {
			return nil, classify(err)
		}
		return savedTrackPage(c, page), nil
	case models.KindPlaylist:
		page, err := client.GetPlaylistItems(ctx, spotify.ID(c.ID), spotify.Limit(itemPageSize))
		if err != nil {
			return nil, classifyPlaylist(c.ID, err)
		}
		return playlistItemPage(c, page), nil
	default:
		return nil, fmt.Errorf("%w: collection kind %d", shared.ErrInvalidArgument, c.Kind)
	}
}

// NextTracks follows the cursor of a track page.
func (s *SpotifyService) NextTracks(ctx context.Context, page *Page[RawTrack]) (*Page[RawTrack], error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	switch page.Collection.Kind {
	case models.KindLiked:
		next := &spotify.SavedTrackPage{}
		next.Next = page.Next
		if err := client.NextPage(ctx, next); err != nil {
			return nil, classify(err)
		}
		return savedTrackPage(page.Collection, next), nil
	default:
		next := &spotify.PlaylistItemPage{}
		next.Next = page.Next
		if err := client.NextPage(ctx, next); err != nil {
			return nil, classifyPlaylist(page.Collection.ID, err)
		}
		return playlistItemPage(page.Collection, next), nil
	}
}

func playlistPage(page *spotify.SimplePlaylistPage) *Page[models.Playlist] {
	out := &Page[models.Playlist]{
		Items: make([]models.Playlist, 0, len(page.Playlists)),
		Next:  page.Next,
		Total: int(page.Total),
	}
	for _, p := range page.Playlists {
		out.Items = append(out.Items, models.Playlist{
			ID:          string(p.ID),
			Name:        p.Name,
			OwnerID:     p.Owner.ID,
			Description: p.Description,
			TrackCount:  int(p.Tracks.Total),
			Public:      p.IsPublic,
		})
	}
	return out
}

func savedTrackPage(c models.Collection, page *spotify.SavedTrackPage) *Page[RawTrack] {
	out := &Page[RawTrack]{
		Collection: c,
		Items:      make([]RawTrack, 0, len(page.Tracks)),
		Next:       page.Next,
		Total:      int(page.Total),
	}
	for _, st := range page.Tracks {
		out.Items = append(out.Items, rawTrack(&st.FullTrack))
	}
	return out
}

// playlistItemPage keeps track items only; episodes and unavailable items carry no track metadata.
func playlistItemPage(c models.Collection, page *spotify.PlaylistItemPage) *Page[RawTrack] {
	out := &Page[RawTrack]{
		Collection: c,
		Items:      make([]RawTrack, 0, len(page.Items)),
		Next:       page.Next,
		Total:      int(page.Total),
	}
	for _, item := range page.Items {
		if item.Track.Track == nil {
			continue
		}
		out.Items = append(out.Items, rawTrack(item.Track.Track))
	}
	return out
}

func rawTrack(t *spotify.FullTrack) RawTrack {
	artists := make([]RawArtist, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, RawArtist{ID: string(a.ID), Name: a.Name})
	}
	return RawTrack{
		ID:         string(t.ID),
		Name:       t.Name,
		Artists:    artists,
		Album:      RawAlbum{ID: string(t.Album.ID), Name: t.Album.Name},
		Popularity: int(t.Popularity),
		URI:        string(t.URI),
	}
}

// classify maps client errors onto the shared sentinels while keeping the original in the chain.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", shared.ErrTokenExpired, err)
		case apiErr.Status == http.StatusTooManyRequests:
			// transient, falls through to ErrAPIRequest
		case apiErr.Status >= 400 && apiErr.Status < 500:
			return fmt.Errorf("%w: %w: %w", shared.ErrAPIRequest, shared.ErrRequestRejected, err)
		}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %w", shared.ErrTokenExpired, err)
	}

	return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
}

func classifyPlaylist(id string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return classify(err)
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and reports every new access token to callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	mu       sync.Mutex
	last     string
}

func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.source.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := token.AccessToken != s.last
	s.last = token.AccessToken
	s.mu.Unlock()

	if changed && s.callback != nil {
		s.callback(token)
	}
	return token, nil
}
