// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/spotback/internal/models"
	"github.com/desertthunder/spotback/internal/services"
)

// MockCatalog is a scripted test double for [services.Catalog].
//
// Pages are served in order. Cursors have the form "<collection id>#<page index>".
// Failures are keyed by the same cursor, so "p2#0" fails the first page of p2.
type MockCatalog struct {
	User      models.User
	Playlists [][]models.Playlist
	Tracks    map[string][][]services.RawTrack
	Fail      map[string]error

	mu    sync.Mutex
	calls map[string]int
}

// NewMockCatalog returns a catalog for userID with no playlists and no liked tracks.
func NewMockCatalog(userID string) *MockCatalog {
	return &MockCatalog{
		User:   models.User{ID: userID, DisplayName: userID},
		Tracks: map[string][][]services.RawTrack{},
		Fail:   map[string]error{},
		calls:  map[string]int{},
	}
}

// AddPlaylist appends p to the playlist index as a new single-item page
// and registers its track pages.
func (m *MockCatalog) AddPlaylist(p models.Playlist, pages ...[]services.RawTrack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Playlists = append(m.Playlists, []models.Playlist{p})
	m.Tracks[p.ID] = pages
}

// SetLiked registers the pages of the liked-tracks collection.
func (m *MockCatalog) SetLiked(pages ...[]services.RawTrack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tracks[models.LikedTracks().ID] = pages
}

// FailOn makes the fetch for cursor return err. A nil err clears the failure.
func (m *MockCatalog) FailOn(cursor string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.Fail, cursor)
		return
	}
	m.Fail[cursor] = err
}

// Calls returns the number of page fetches made for a collection id, or "playlists" for the index.
func (m *MockCatalog) Calls(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id]
}

func (m *MockCatalog) CurrentUser(ctx context.Context) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u := m.User
	return &u, nil
}

func (m *MockCatalog) FirstPlaylists(ctx context.Context, userID string) (*services.Page[models.Playlist], error) {
	return m.playlistPage(ctx, 0)
}

func (m *MockCatalog) NextPlaylists(ctx context.Context, page *services.Page[models.Playlist]) (*services.Page[models.Playlist], error) {
	_, idx, err := parseCursor(page.Next)
	if err != nil {
		return nil, err
	}
	return m.playlistPage(ctx, idx)
}

func (m *MockCatalog) FirstTracks(ctx context.Context, c models.Collection) (*services.Page[services.RawTrack], error) {
	return m.trackPage(ctx, c, 0)
}

func (m *MockCatalog) NextTracks(ctx context.Context, page *services.Page[services.RawTrack]) (*services.Page[services.RawTrack], error) {
	_, idx, err := parseCursor(page.Next)
	if err != nil {
		return nil, err
	}
	return m.trackPage(ctx, page.Collection, idx)
}

func (m *MockCatalog) playlistPage(ctx context.Context, idx int) (*services.Page[models.Playlist], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["playlists"]++

	if err := m.Fail[cursor("playlists", idx)]; err != nil {
		return nil, err
	}

	page := &services.Page[models.Playlist]{}
	for _, p := range m.Playlists {
		page.Total += len(p)
	}
	if idx < len(m.Playlists) {
		page.Items = append(page.Items, m.Playlists[idx]...)
	}
	if idx+1 < len(m.Playlists) {
		page.Next = cursor("playlists", idx+1)
	}
	return page, nil
}

func (m *MockCatalog) trackPage(ctx context.Context, c models.Collection, idx int) (*services.Page[services.RawTrack], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[c.ID]++

	if err := m.Fail[cursor(c.ID, idx)]; err != nil {
		return nil, err
	}

	pages, ok := m.Tracks[c.ID]
	if !ok {
		return nil, fmt.Errorf("mock: unknown collection %q", c.ID)
	}

	page := &services.Page[services.RawTrack]{Collection: c}
	for _, p := range pages {
		page.Total += len(p)
	}
	if idx < len(pages) {
		page.Items = append(page.Items, pages[idx]...)
	}
	if idx+1 < len(pages) {
		page.Next = cursor(c.ID, idx+1)
	}
	return page, nil
}

func cursor(id string, idx int) string {
	return id + "#" + strconv.Itoa(idx)
}

func parseCursor(c string) (string, int, error) {
	id, n, ok := strings.Cut(c, "#")
	if !ok {
		return "", 0, fmt.Errorf("mock: bad cursor %q", c)
	}
	idx, err := strconv.Atoi(n)
	if err != nil {
		return "", 0, fmt.Errorf("mock: bad cursor %q: %w", c, err)
	}
	return id, idx, nil
}

// Track builds a raw track with a single album and the given artists.
func Track(id, name, album string, popularity int, artists ...string) services.RawTrack {
	raw := services.RawTrack{
		ID:         id,
		Name:       name,
		Album:      services.RawAlbum{ID: "album-" + id, Name: album},
		Popularity: popularity,
		URI:        "spotify:track:" + id,
	}
	for i, a := range artists {
		raw.Artists = append(raw.Artists, services.RawArtist{ID: fmt.Sprintf("artist-%s-%d", id, i), Name: a})
	}
	return raw
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

// AssertDirEntries fails unless dir holds exactly want entries.
func AssertDirEntries(t *testing.T, dir string, want int) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read directory %s: %v", dir, err)
	}
	if len(entries) != want {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected %d entries in %s, got %d: %v", want, dir, len(entries), names)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
