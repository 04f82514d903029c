package main

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotback/internal/formatter"
	"github.com/desertthunder/spotback/internal/models"
	"github.com/desertthunder/spotback/internal/shared"
	"github.com/desertthunder/spotback/internal/ui"
	"github.com/urfave/cli/v3"
)

// Playlists lists the playlists that a backup would include, or every followed playlist with --all.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("tui") {
		return r.browse(ctx, cmd)
	}

	playlists, err := r.listPlaylists(ctx, cmd.Bool("all"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Owner: %s\n", p.OwnerID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		if p.Public {
			r.writePlain("   Visibility: Public\n")
		} else {
			r.writePlain("   Visibility: Private\n")
		}
		r.writePlain("\n")
	}
	return nil
}

// listPlaylists returns the owned playlists of the configured user, or the full listing when all is set.
func (r *Runner) listPlaylists(ctx context.Context, all bool) ([]models.Playlist, error) {
	catalog, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}

	username, err := r.username(ctx)
	if err != nil {
		return nil, err
	}

	r.logger.Info("fetching playlists", "user", username, "all", all)
	exporter := r.exporter(catalog)
	if all {
		return exporter.AllPlaylists(ctx, username)
	}
	return exporter.OwnedPlaylists(ctx, username)
}

// username is the configured user, or the authenticated user when none is configured.
func (r *Runner) username(ctx context.Context) (string, error) {
	if name := r.config.Credentials.Spotify.Username; name != "" {
		return name, nil
	}

	catalog, err := r.connect(ctx)
	if err != nil {
		return "", err
	}
	user, err := catalog.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve current user: %w", err)
	}
	return user.ID, nil
}

// browse opens the interactive playlist browser. Selected playlists are exported into the output directory.
func (r *Runner) browse(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}
	all := cmd.Bool("all")
	dir := r.config.Backup.OutputDir

	model := ui.NewBrowserModel(ctx,
		func(ctx context.Context) ([]models.Playlist, error) {
			return r.listPlaylists(ctx, all)
		},
		func(ctx context.Context, p models.Playlist) (string, int, error) {
			path := filepath.Join(dir, fmt.Sprintf("%s.%s", p.ID, format.Ext()))
			n, err := r.exportTo(ctx, models.PlaylistCollection(p), formatter.NewFileSink(path, format))
			return path, n, err
		},
	)

	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("%w: failed to run browser: %w", shared.ErrServiceUnavailable, err)
	}
	return model.Err()
}
