package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotback/internal/formatter"
	"github.com/desertthunder/spotback/internal/models"
	"github.com/desertthunder/spotback/internal/repositories"
	"github.com/desertthunder/spotback/internal/shared"
	"github.com/desertthunder/spotback/internal/tasks"
	"github.com/desertthunder/spotback/internal/ui"
	"github.com/urfave/cli/v3"
)

// backupPlan is the resolved set of options for one backup command.
type backupPlan struct {
	format    formatter.Format
	outputDir string
	workers   int
	stdout    bool
	progress  bool
	history   bool
}

func (r *Runner) backupPlan(cmd *cli.Command) (backupPlan, error) {
	plan := backupPlan{
		outputDir: r.config.Backup.OutputDir,
		workers:   r.config.Backup.Workers,
		stdout:    cmd.Bool("stdout"),
		progress:  cmd.Bool("progress"),
		history:   !cmd.Bool("no-history"),
	}

	format := r.config.Backup.Format
	if f := cmd.String("format"); f != "" {
		format = f
	}
	var err error
	if plan.format, err = formatter.ParseFormat(format); err != nil {
		return plan, err
	}

	if dir := cmd.String("output-dir"); dir != "" {
		plan.outputDir = dir
	}
	if w := cmd.Int("workers"); w > 0 {
		plan.workers = int(w)
	}
	if plan.stdout && plan.progress {
		return plan, fmt.Errorf("%w: --progress cannot be combined with --stdout", shared.ErrInvalidFlag)
	}
	return plan, nil
}

// sink returns the destination for one run. Stdout snapshots are buffered so a failed run prints nothing.
func (r *Runner) sink(plan backupPlan) formatter.Sink {
	if plan.stdout {
		return formatter.NewWriterSink(r.output, plan.format)
	}
	return formatter.NewFileSink(formatter.SnapshotPath(plan.outputDir, time.Now(), plan.format), plan.format)
}

// Backup exports every owned playlist and the liked tracks into a single snapshot.
func (r *Runner) Backup(ctx context.Context, cmd *cli.Command) error {
	plan, err := r.backupPlan(cmd)
	if err != nil {
		return err
	}

	catalog, err := r.connect(ctx)
	if err != nil {
		return err
	}

	run := func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.BackupResult, error) {
		return tasks.Backup(ctx, progress, tasks.BackupOpts{
			Catalog:    catalog,
			Sink:       r.sink(plan),
			Username:   r.config.Credentials.Spotify.Username,
			NumWorkers: plan.workers,
			RateLimit:  r.config.Backup.RateLimit,
			Retry:      r.retryPolicy(),
		})
	}

	var history *snapshotLog
	if plan.history {
		history = r.beginSnapshot(plan)
		defer history.close()
	}

	result, err := r.runBackup(ctx, plan, run)
	if reauthed, authErr := r.reauthorize(ctx, err); reauthed {
		if authErr != nil {
			history.finish(nil, authErr)
			return authErr
		}
		result, err = r.runBackup(ctx, plan, run)
	}
	history.finish(result, err)

	if err != nil {
		return err
	}

	if plan.stdout {
		r.logger.Info("backup complete",
			"user", result.Username, "playlists", result.Playlists, "records", result.Records,
			"duration", result.Duration.Round(time.Millisecond))
		return nil
	}
	if !plan.progress {
		r.writePlain("%s\n", ui.Summary(result))
	}
	return nil
}

// runBackup executes run either behind the progress UI or with progress lines sent to the logger.
func (r *Runner) runBackup(ctx context.Context, plan backupPlan, run ui.BackupFunc) (*tasks.BackupResult, error) {
	if plan.progress {
		model := ui.NewBackupModel(ctx, run)
		if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
			return nil, fmt.Errorf("failed to run progress display: %w", err)
		}
		return model.Result()
	}

	logger := shared.WithLogger(r.logger, "format", plan.format)
	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			logger.Info(update.Message, "phase", update.Phase)
		}
	}()

	result, err := run(ctx, progress)
	close(progress)
	<-done
	return result, err
}

// snapshotLog tracks one run in the history database. A nil snapshotLog records nothing.
type snapshotLog struct {
	repo     *repositories.SnapshotRepository
	snapshot *models.Snapshot
	closeDB  func()
	logger   *log.Logger
}

// beginSnapshot records a running snapshot. History is best-effort: failures are logged
// and yield a nil log so the backup proceeds without it.
func (r *Runner) beginSnapshot(plan backupPlan) *snapshotLog {
	repo, closeDB, err := r.snapshots()
	if err != nil {
		r.logger.Warn("snapshot history unavailable", "error", err)
		return nil
	}

	snapshot := &models.Snapshot{
		Format:   string(plan.format),
		Username: r.config.Credentials.Spotify.Username,
		Status:   models.SnapshotRunning,
	}
	if !plan.stdout {
		snapshot.Path = formatter.SnapshotPath(plan.outputDir, time.Now(), plan.format)
	}
	if err := repo.Create(snapshot); err != nil {
		r.logger.Warn("failed to record snapshot", "error", err)
		closeDB()
		return nil
	}

	r.logger.Debug("snapshot started", "id", snapshot.ID)
	return &snapshotLog{repo: repo, snapshot: snapshot, closeDB: closeDB, logger: r.logger}
}

// finish stores the outcome of the run.
func (h *snapshotLog) finish(result *tasks.BackupResult, runErr error) {
	if h == nil {
		return
	}

	s := h.snapshot
	s.FinishedAt = time.Now().UTC()
	s.Status = models.SnapshotComplete
	if runErr != nil {
		s.Status = models.SnapshotFailed
		s.Error = runErr.Error()
	}
	if result != nil {
		s.Path = result.Path
		s.Playlists = result.Playlists
		s.Records = result.Records
		s.Collections = s.Collections[:0]
		for i, c := range result.Collections {
			s.Collections = append(s.Collections, models.SnapshotCollection{
				Position:     i,
				CollectionID: c.Collection.ID,
				Name:         c.Collection.Label(),
				Records:      c.Records,
			})
		}
	}

	if err := h.repo.Update(s); err != nil {
		h.logger.Warn("failed to update snapshot", "id", s.ID, "error", err)
		return
	}
	h.logger.Debug("snapshot recorded", "id", s.ID, "status", s.Status)
}

func (h *snapshotLog) close() {
	if h != nil {
		h.closeDB()
	}
}

// snapshots opens the history repository. The returned func releases a database opened here.
func (r *Runner) snapshots() (*repositories.SnapshotRepository, func(), error) {
	if r.db != nil {
		return repositories.NewSnapshotRepository(r.db), func() {}, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewSnapshotRepository(db), func() { db.Close() }, nil
}
