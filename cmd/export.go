package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotback/internal/formatter"
	"github.com/desertthunder/spotback/internal/models"
	"github.com/desertthunder/spotback/internal/shared"
	"github.com/urfave/cli/v3"
)

// Export writes a single collection, a playlist by ID or the liked tracks, to stdout or a file.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	liked := cmd.Bool("liked")

	switch {
	case playlistID == "" && !liked:
		return fmt.Errorf("%w: one of --id or --liked is required", shared.ErrMissingArgument)
	case playlistID != "" && liked:
		return fmt.Errorf("%w: cannot specify both --id and --liked", shared.ErrInvalidArgument)
	}

	format, err := r.format(cmd)
	if err != nil {
		return err
	}

	collection := models.LikedTracks()
	if !liked {
		if collection, err = r.findPlaylist(ctx, playlistID); err != nil {
			return err
		}
	}

	outputFile := cmd.String("output")
	if outputFile == "" {
		_, err := r.exportTo(ctx, collection, formatter.NewWriterSink(r.output, format))
		return err
	}

	n, err := r.exportTo(ctx, collection, formatter.NewFileSink(outputFile, format))
	if err != nil {
		return err
	}

	r.logger.Infof("collection exported to %v with %v tracks", outputFile, n)
	r.writePlain("✓ Exported to %s\n", outputFile)
	r.writePlain("  Collection: %s\n", collection.Label())
	r.writePlain("  Tracks: %d\n", n)
	return nil
}

// format resolves --format against the configured default.
func (r *Runner) format(cmd *cli.Command) (formatter.Format, error) {
	if f := cmd.String("format"); f != "" {
		return formatter.ParseFormat(f)
	}
	return formatter.ParseFormat(r.config.Backup.Format)
}

// findPlaylist looks up id in the user's full playlist listing so records carry the playlist name.
func (r *Runner) findPlaylist(ctx context.Context, id string) (models.Collection, error) {
	playlists, err := r.listPlaylists(ctx, true)
	if err != nil {
		return models.Collection{}, err
	}
	for _, p := range playlists {
		if p.ID == id {
			return models.PlaylistCollection(p), nil
		}
	}
	return models.Collection{}, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
}

// exportTo exports c into sink as one snapshot and returns the record count.
// An expired token triggers one reauthorization and a second attempt.
func (r *Runner) exportTo(ctx context.Context, c models.Collection, sink formatter.Sink) (int, error) {
	catalog, err := r.connect(ctx)
	if err != nil {
		return 0, err
	}

	records, err := r.exporter(catalog).ExportCollection(ctx, c)
	if reauthed, authErr := r.reauthorize(ctx, err); reauthed {
		if authErr != nil {
			return 0, authErr
		}
		records, err = r.exporter(r.catalog).ExportCollection(ctx, c)
	}
	if err != nil {
		return 0, err
	}

	if err := sink.Begin(); err != nil {
		return 0, err
	}
	if err := sink.Write(records...); err != nil {
		sink.Abort()
		return 0, err
	}
	if err := sink.Commit(); err != nil {
		sink.Abort()
		return 0, err
	}
	return len(records), nil
}
