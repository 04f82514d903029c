package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotback/internal/models"
	"github.com/desertthunder/spotback/internal/services"
	"github.com/desertthunder/spotback/internal/shared"
	"golang.org/x/time/rate"
)

// Exporter reads collections from a [services.Catalog] page by page.
//
// Every page fetch waits on the limiter (when set) and goes through the retry policy.
// An Exporter is safe for concurrent use when its catalog is.
type Exporter struct {
	catalog services.Catalog
	retry   RetryPolicy
	limiter *rate.Limiter
}

// ExporterOption configures an [Exporter].
type ExporterOption func(*Exporter)

// WithRetry sets the retry policy for page fetches.
func WithRetry(p RetryPolicy) ExporterOption {
	return func(e *Exporter) { e.retry = p }
}

// WithRateLimit paces page fetches to rps requests per second. Zero or less disables pacing.
func WithRateLimit(rps float64) ExporterOption {
	return func(e *Exporter) {
		if rps > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			e.limiter = nil
		}
	}
}

// NewExporter creates an Exporter over catalog. Without options it does not retry or pace requests.
func NewExporter(catalog services.Catalog, opts ...ExporterOption) *Exporter {
	e := &Exporter{catalog: catalog, retry: NoRetry}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportCollection retrieves every item of c and flattens it into track records in source order.
func ExportCollection(ctx context.Context, catalog services.Catalog, c models.Collection) ([]models.TrackRecord, error) {
	return NewExporter(catalog).ExportCollection(ctx, c)
}

// OwnedPlaylists returns the playlists in the user's listing whose owner is userID, in listing order.
func OwnedPlaylists(ctx context.Context, catalog services.Catalog, userID string) ([]models.Playlist, error) {
	return NewExporter(catalog).OwnedPlaylists(ctx, userID)
}

// ExportCollection follows the continuation cursor from the first page until it is empty.
// Records are labeled with the collection name; the liked-tracks collection uses [models.LikedTracksName].
func (e *Exporter) ExportCollection(ctx context.Context, c models.Collection) ([]models.TrackRecord, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	label := c.Label()
	var records []models.TrackRecord

	err := paginate(ctx, e,
		func(ctx context.Context) (*services.Page[services.RawTrack], error) {
			return e.catalog.FirstTracks(ctx, c)
		},
		e.catalog.NextTracks,
		func(page *services.Page[services.RawTrack]) {
			if records == nil {
				records = make([]models.TrackRecord, 0, max(page.Total, c.Size, len(page.Items)))
			}
			for _, raw := range page.Items {
				records = append(records, ExtractRecord(label, raw))
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("export %s %q: %w", c.Kind, label, err)
	}

	if records == nil {
		records = []models.TrackRecord{}
	}
	return records, nil
}

// OwnedPlaylists pages through the playlist listing and keeps the playlists owned by userID.
func (e *Exporter) OwnedPlaylists(ctx context.Context, userID string) ([]models.Playlist, error) {
	return e.listPlaylists(ctx, userID, func(p models.Playlist) bool { return p.OwnerID == userID })
}

// AllPlaylists returns the full playlist listing for userID, including followed playlists.
func (e *Exporter) AllPlaylists(ctx context.Context, userID string) ([]models.Playlist, error) {
	return e.listPlaylists(ctx, userID, func(models.Playlist) bool { return true })
}

func (e *Exporter) listPlaylists(ctx context.Context, userID string, keep func(models.Playlist) bool) ([]models.Playlist, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	playlists := []models.Playlist{}
	err := paginate(ctx, e,
		func(ctx context.Context) (*services.Page[models.Playlist], error) {
			return e.catalog.FirstPlaylists(ctx, userID)
		},
		e.catalog.NextPlaylists,
		func(page *services.Page[models.Playlist]) {
			for _, p := range page.Items {
				if keep(p) {
					playlists = append(playlists, p)
				}
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("list playlists for %s: %w", userID, err)
	}
	return playlists, nil
}

// ExtractRecord projects the fields kept in a snapshot out of a raw catalog item.
func ExtractRecord(name string, raw services.RawTrack) models.TrackRecord {
	artists := make([]string, 0, len(raw.Artists))
	for _, a := range raw.Artists {
		artists = append(artists, a.Name)
	}
	return models.TrackRecord{
		PlaylistName: name,
		Artists:      artists,
		TrackName:    raw.Name,
		AlbumName:    raw.Album.Name,
		Popularity:   raw.Popularity,
		URI:          raw.URI,
	}
}

// paginate calls first once and next once per non-empty cursor, handing every page to visit in fetch order.
func paginate[T any](
	ctx context.Context,
	e *Exporter,
	first func(context.Context) (*services.Page[T], error),
	next func(context.Context, *services.Page[T]) (*services.Page[T], error),
	visit func(*services.Page[T]),
) error {
	page, err := fetch(ctx, e, first)
	if err != nil {
		return err
	}
	visit(page)

	for page.HasNext() {
		current := page
		page, err = fetch(ctx, e, func(ctx context.Context) (*services.Page[T], error) {
			return next(ctx, current)
		})
		if err != nil {
			return err
		}
		visit(page)
	}
	return nil
}

func fetch[T any](ctx context.Context, e *Exporter, fn func(context.Context) (*services.Page[T], error)) (*services.Page[T], error) {
	return retry(ctx, e.retry, func(ctx context.Context) (*services.Page[T], error) {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		page, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if page == nil {
			return nil, fmt.Errorf("%w: empty response", shared.ErrAPIRequest)
		}
		return page, nil
	})
}
