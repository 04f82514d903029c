package main

import (
	"context"
	"time"

	"github.com/desertthunder/spotback/internal/models"
	"github.com/desertthunder/spotback/internal/ui"
	"github.com/urfave/cli/v3"
)

// snapshotView is the JSON shape of one history entry.
type snapshotView struct {
	ID         string    `json:"id"`
	Path       string    `json:"path,omitempty"`
	Format     string    `json:"format"`
	Username   string    `json:"username"`
	Playlists  int       `json:"playlists"`
	Records    int       `json:"records"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

func newSnapshotView(s *models.Snapshot) snapshotView {
	return snapshotView{
		ID:         s.ID,
		Path:       s.Path,
		Format:     s.Format,
		Username:   s.Username,
		Playlists:  s.Playlists,
		Records:    s.Records,
		Status:     string(s.Status),
		Error:      s.Error,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}

// History lists recorded backup runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.snapshots()
	if err != nil {
		return err
	}
	defer closeDB()

	snapshots, err := repo.List(int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]snapshotView, len(snapshots))
		for i, s := range snapshots {
			views[i] = newSnapshotView(s)
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(snapshots) == 0 {
		r.writePlain("No snapshots recorded yet. Run `spotback backup` to create one.\n")
		return nil
	}

	r.writePlainHeader("Snapshot History")
	for _, s := range snapshots {
		var status string
		switch s.Status {
		case models.SnapshotComplete:
			status = ui.Success("✓ " + string(s.Status))
		case models.SnapshotFailed:
			status = ui.Failure("✗ " + string(s.Status))
		default:
			status = ui.Warning("… " + string(s.Status))
		}

		r.writePlain("%s  %s\n", s.StartedAt.Local().Format(time.DateTime), status)
		r.writePlain("   ID: %s\n", s.ID)
		r.writePlain("   User: %s\n", s.Username)
		if s.Path != "" {
			r.writePlain("   Path: %s (%s)\n", s.Path, s.Format)
		}
		r.writePlain("   Playlists: %d, Records: %d\n", s.Playlists, s.Records)
		if d := s.Duration(); d > 0 {
			r.writePlain("   Duration: %s\n", d.Round(time.Millisecond))
		}
		if s.Error != "" {
			r.writePlain("   Error: %s\n", ui.Muted(s.Error))
		}
		r.writePlain("\n")
	}
	return nil
}
