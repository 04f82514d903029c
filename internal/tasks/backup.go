package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/spotback/internal/formatter"
	"github.com/desertthunder/spotback/internal/models"
	"github.com/desertthunder/spotback/internal/services"
	"github.com/desertthunder/spotback/internal/shared"
)

const (
	defaultWorkers = 4
	maxWorkers     = 10
)

// BackupOpts contains configuration for a single snapshot run.
type BackupOpts struct {
	Catalog    services.Catalog
	Sink       formatter.Sink
	Username   string      // Owner whose playlists are exported; resolved from the catalog when empty
	NumWorkers int         // Concurrent collection exports (default: 4, max: 10)
	RateLimit  float64     // Page requests per second across all workers; 0 disables pacing
	Retry      RetryPolicy // Per-page retry policy; zero value uses [DefaultRetryPolicy]
}

// CollectionResult reports one collection's contribution to a snapshot.
type CollectionResult struct {
	Collection models.Collection
	Records    int
}

// BackupResult summarizes a committed snapshot.
type BackupResult struct {
	Path        string // Final snapshot path; empty for stream sinks
	Format      formatter.Format
	Username    string
	Playlists   int
	Records     int
	Collections []CollectionResult
	Duration    time.Duration
}

// outcome is the result of one collection export, delivered to the writer in collection order.
type outcome struct {
	records []models.TrackRecord
	err     error
}

// Backup exports every playlist owned by the user followed by the liked tracks into opts.Sink.
//
// Collections are fetched concurrently, but records reach the sink in a fixed order:
// playlists in listing order, then liked tracks. The first failure cancels the run and aborts the sink,
// so a snapshot is either committed whole or not at all.
func Backup(ctx context.Context, progress chan<- ProgressUpdate, opts BackupOpts) (*BackupResult, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("%w: no snapshot sink", shared.ErrMissingArgument)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultWorkers
	}
	if opts.NumWorkers > maxWorkers {
		opts.NumWorkers = maxWorkers
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy()
	}

	started := time.Now()
	exporter := NewExporter(opts.Catalog, WithRetry(opts.Retry), WithRateLimit(opts.RateLimit))

	username := opts.Username
	if username == "" {
		sendProgress(progress, fetchUserUpdate())
		user, err := opts.Catalog.CurrentUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve current user: %w", err)
		}
		username = user.ID
	}

	sendProgress(progress, fetchPlaylistsUpdate(username))
	owned, err := exporter.OwnedPlaylists(ctx, username)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, foundPlaylistsUpdate(owned))

	collections := make([]models.Collection, 0, len(owned)+1)
	for _, p := range owned {
		collections = append(collections, models.PlaylistCollection(p))
	}
	collections = append(collections, models.LikedTracks())

	result := &BackupResult{
		Format:      formatter.FormatCSV,
		Username:    username,
		Playlists:   len(owned),
		Collections: make([]CollectionResult, 0, len(collections)),
	}

	if s, ok := opts.Sink.(interface{ Path() string }); ok {
		result.Path = s.Path()
	}
	if s, ok := opts.Sink.(interface{ Format() formatter.Format }); ok {
		result.Format = s.Format()
	}

	if err := opts.Sink.Begin(); err != nil {
		return nil, err
	}

	if err := writeCollections(ctx, progress, exporter, opts, collections, result); err != nil {
		if abortErr := opts.Sink.Abort(); abortErr != nil {
			err = errors.Join(err, abortErr)
		}
		return nil, err
	}

	sendProgress(progress, writeSnapshotUpdate(result.Records))
	if err := opts.Sink.Commit(); err != nil {
		if abortErr := opts.Sink.Abort(); abortErr != nil {
			err = errors.Join(err, abortErr)
		}
		return nil, err
	}

	result.Duration = time.Since(started)
	sendProgress(progress, doneUpdate(result))
	return result, nil
}

// writeCollections runs the worker pool and writes outcomes to the sink strictly in collection order.
// An outcome that arrives early waits in its slot until every earlier collection has been written.
func writeCollections(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	exporter *Exporter,
	opts BackupOpts,
	collections []models.Collection,
	result *BackupResult,
) error {
	ctx, cancel := context.WithCancel(ctx)

	slots := make([]chan outcome, len(collections))
	jobs := make(chan int, len(collections))
	for i := range collections {
		slots[i] = make(chan outcome, 1)
		jobs <- i
	}
	close(jobs)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	// cause prefers the failure that triggered cancellation over the cancellation itself.
	cause := func(err error) error {
		mu.Lock()
		defer mu.Unlock()
		if firstErr != nil {
			return firstErr
		}
		return err
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	for range min(opts.NumWorkers, len(collections)) {
		wg.Add(1)
		go exportWorker(ctx, &wg, exporter, collections, jobs, slots, fail)
	}

	total := len(collections)
	for i, c := range collections {
		var out outcome
		select {
		case out = <-slots[i]:
		case <-ctx.Done():
			return cause(ctx.Err())
		}

		if out.err != nil {
			err := cause(out.err)
			sendProgress(progress, exportFailedUpdate(i+1, total, c, err))
			return err
		}
		if err := opts.Sink.Write(out.records...); err != nil {
			return err
		}

		result.Records += len(out.records)
		result.Collections = append(result.Collections, CollectionResult{Collection: c, Records: len(out.records)})
		sendProgress(progress, exportedCollectionUpdate(i+1, total, c, len(out.records)))
	}
	return nil
}

// exportWorker exports collections by index until jobs is drained. A failure is reported through fail,
// which cancels the remaining exports.
func exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	exporter *Exporter,
	collections []models.Collection,
	jobs <-chan int,
	slots []chan outcome,
	fail func(error),
) {
	defer wg.Done()

	for i := range jobs {
		if err := ctx.Err(); err != nil {
			slots[i] <- outcome{err: err}
			continue
		}

		records, err := exporter.ExportCollection(ctx, collections[i])
		if err != nil && ctx.Err() == nil {
			fail(err)
		}
		slots[i] <- outcome{records: records, err: err}
	}
}
