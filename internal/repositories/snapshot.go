package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotback/internal/models"
	"github.com/desertthunder/spotback/internal/shared"
)

// SnapshotRepository persists the history of backup runs.
//
// A snapshot row is created when a run starts and updated once when it finishes.
// Per-collection counts live in snapshot_collections and are replaced as a whole on update.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SnapshotRepository with the given database connection
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const snapshotColumns = `id, path, format, username, playlists, records, status, error, started_at, finished_at`

// Create inserts a new snapshot with a generated ID. A zero StartedAt is set to now
// and an empty Status to [models.SnapshotRunning].
func (r *SnapshotRepository) Create(s *models.Snapshot) error {
	if s.Username == "" {
		return fmt.Errorf("%w: snapshot username", shared.ErrMissingArgument)
	}

	s.ID = shared.GenerateID()
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = models.SnapshotRunning
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO snapshots (` + snapshotColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		s.ID,
		s.Path,
		s.Format,
		s.Username,
		s.Playlists,
		s.Records,
		string(s.Status),
		s.Error,
		s.StartedAt,
		nullTime(s.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if err := insertCollections(tx, s.ID, s.Collections); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Get retrieves a snapshot and its collections by ID
func (r *SnapshotRepository) Get(id string) (*models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE id = ?`

	s, err := scanSnapshot(r.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}

	if s.Collections, err = r.collections(s.ID); err != nil {
		return nil, err
	}
	return s, nil
}

// Latest returns the most recently started snapshot
func (r *SnapshotRepository) Latest() (*models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots ORDER BY started_at DESC, rowid DESC LIMIT 1`

	s, err := scanSnapshot(r.db.QueryRow(query))
	if err != nil {
		return nil, err
	}

	if s.Collections, err = r.collections(s.ID); err != nil {
		return nil, err
	}
	return s, nil
}

// Update stores the outcome of a run: counts, status, error, finish time and collections.
func (r *SnapshotRepository) Update(s *models.Snapshot) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE snapshots
		SET path = ?, format = ?, playlists = ?, records = ?, status = ?, error = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := tx.Exec(query,
		s.Path,
		s.Format,
		s.Playlists,
		s.Records,
		string(s.Status),
		s.Error,
		nullTime(s.FinishedAt),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSnapshotNotFound, s.ID)
	}

	if _, err := tx.Exec(`DELETE FROM snapshot_collections WHERE snapshot_id = ?`, s.ID); err != nil {
		return fmt.Errorf("failed to clear snapshot collections: %w", err)
	}
	if err := insertCollections(tx, s.ID, s.Collections); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// List returns up to limit snapshots, newest first. Collections are not loaded.
// A limit of zero or less returns every snapshot.
func (r *SnapshotRepository) List(limit int) ([]*models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []*models.Snapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// Delete removes a snapshot and, through the foreign key, its collections
func (r *SnapshotRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSnapshotNotFound, id)
	}
	return nil
}

func (r *SnapshotRepository) collections(id string) ([]models.SnapshotCollection, error) {
	query := `
		SELECT position, collection_id, name, records
		FROM snapshot_collections
		WHERE snapshot_id = ?
		ORDER BY position
	`

	rows, err := r.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot collections: %w", err)
	}
	defer rows.Close()

	collections := []models.SnapshotCollection{}
	for rows.Next() {
		var c models.SnapshotCollection
		if err := rows.Scan(&c.Position, &c.CollectionID, &c.Name, &c.Records); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot collection: %w", err)
		}
		collections = append(collections, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot collections: %w", err)
	}
	return collections, nil
}

func insertCollections(tx *sql.Tx, id string, collections []models.SnapshotCollection) error {
	if len(collections) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO snapshot_collections (snapshot_id, position, collection_id, name, records)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare collection insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range collections {
		if _, err := stmt.Exec(id, i, c.CollectionID, c.Name, c.Records); err != nil {
			return fmt.Errorf("failed to insert snapshot collection %q: %w", c.Name, err)
		}
	}
	return nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows]
type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*models.Snapshot, error) {
	var (
		s        models.Snapshot
		status   string
		finished sql.NullTime
	)

	err := row.Scan(&s.ID, &s.Path, &s.Format, &s.Username, &s.Playlists, &s.Records, &status, &s.Error, &s.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	s.Status = models.SnapshotStatus(status)
	if finished.Valid {
		s.FinishedAt = finished.Time
	}
	return &s, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
