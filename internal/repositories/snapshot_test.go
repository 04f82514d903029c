package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/spotback/internal/models"
	"github.com/desertthunder/spotback/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func newSnapshot(username string, started time.Time) *models.Snapshot {
	return &models.Snapshot{
		Path:      "backups/playlist_backups_2024-01-01.csv",
		Format:    "csv",
		Username:  username,
		StartedAt: started,
	}
}

func TestSnapshotRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewSnapshotRepository(setupTestDB(t))
		s := newSnapshot("alice", time.Time{})

		if err := repo.Create(s); err != nil {
			t.Fatalf("failed to create snapshot: %v", err)
		}

		if s.ID == "" {
			t.Error("snapshot ID should be set after creation")
		}
		if s.Status != models.SnapshotRunning {
			t.Errorf("expected status running, got %s", s.Status)
		}
		if s.StartedAt.IsZero() {
			t.Error("StartedAt should be set after creation")
		}
	})

	t.Run("CreateRequiresUsername", func(t *testing.T) {
		repo := NewSnapshotRepository(setupTestDB(t))
		if err := repo.Create(newSnapshot("", time.Now())); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewSnapshotRepository(setupTestDB(t))
		s := newSnapshot("alice", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
		if err := repo.Create(s); err != nil {
			t.Fatalf("failed to create snapshot: %v", err)
		}

		got, err := repo.Get(s.ID)
		if err != nil {
			t.Fatalf("failed to get snapshot: %v", err)
		}

		if got.Username != "alice" || got.Path != s.Path || got.Format != "csv" {
			t.Errorf("unexpected snapshot: %+v", got)
		}
		if !got.StartedAt.Equal(s.StartedAt) {
			t.Errorf("expected started %v, got %v", s.StartedAt, got.StartedAt)
		}
		if !got.FinishedAt.IsZero() {
			t.Errorf("running snapshot should have no finish time, got %v", got.FinishedAt)
		}
		if len(got.Collections) != 0 {
			t.Errorf("expected no collections, got %d", len(got.Collections))
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		repo := NewSnapshotRepository(setupTestDB(t))
		if _, err := repo.Get("missing"); !errors.Is(err, shared.ErrSnapshotNotFound) {
			t.Errorf("expected ErrSnapshotNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewSnapshotRepository(setupTestDB(t))
		started := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		s := newSnapshot("alice", started)
		if err := repo.Create(s); err != nil {
			t.Fatalf("failed to create snapshot: %v", err)
		}

		s.Status = models.SnapshotComplete
		s.Playlists = 2
		s.Records = 5
		s.FinishedAt = started.Add(3 * time.Second)
		s.Collections = []models.SnapshotCollection{
			{CollectionID: "p1", Name: "One", Records: 3},
			{CollectionID: "p2", Name: "Two", Records: 1},
			{CollectionID: "liked", Name: models.LikedTracksName, Records: 1},
		}
		if err := repo.Update(s); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}

		got, err := repo.Get(s.ID)
		if err != nil {
			t.Fatalf("failed to get snapshot: %v", err)
		}
		if got.Status != models.SnapshotComplete || got.Records != 5 || got.Playlists != 2 {
			t.Errorf("unexpected snapshot after update: %+v", got)
		}
		if got.Duration() != 3*time.Second {
			t.Errorf("expected duration 3s, got %v", got.Duration())
		}
		if len(got.Collections) != 3 {
			t.Fatalf("expected 3 collections, got %d", len(got.Collections))
		}
		for i, c := range got.Collections {
			if c.Position != i {
				t.Errorf("collection %d has position %d", i, c.Position)
			}
		}
		if got.Collections[2].Name != models.LikedTracksName {
			t.Errorf("expected liked tracks last, got %s", got.Collections[2].Name)
		}

		s.Collections = s.Collections[:1]
		if err := repo.Update(s); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}
		if got, _ := repo.Get(s.ID); len(got.Collections) != 1 {
			t.Errorf("expected collections to be replaced, got %d", len(got.Collections))
		}
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		repo := NewSnapshotRepository(setupTestDB(t))
		s := newSnapshot("alice", time.Now())
		s.ID = "missing"
		if err := repo.Update(s); !errors.Is(err, shared.ErrSnapshotNotFound) {
			t.Errorf("expected ErrSnapshotNotFound, got %v", err)
		}
	})

	t.Run("ListAndLatest", func(t *testing.T) {
		repo := NewSnapshotRepository(setupTestDB(t))
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		var ids []string
		for i := range 3 {
			s := newSnapshot("alice", base.Add(time.Duration(i)*time.Hour))
			if err := repo.Create(s); err != nil {
				t.Fatalf("failed to create snapshot: %v", err)
			}
			ids = append(ids, s.ID)
		}

		all, err := repo.List(0)
		if err != nil {
			t.Fatalf("failed to list snapshots: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 snapshots, got %d", len(all))
		}
		if all[0].ID != ids[2] || all[2].ID != ids[0] {
			t.Error("snapshots should be listed newest first")
		}

		limited, err := repo.List(2)
		if err != nil {
			t.Fatalf("failed to list snapshots: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 snapshots, got %d", len(limited))
		}

		latest, err := repo.Latest()
		if err != nil {
			t.Fatalf("failed to get latest snapshot: %v", err)
		}
		if latest.ID != ids[2] {
			t.Errorf("expected latest %s, got %s", ids[2], latest.ID)
		}
	})

	t.Run("LatestEmpty", func(t *testing.T) {
		repo := NewSnapshotRepository(setupTestDB(t))
		if _, err := repo.Latest(); !errors.Is(err, shared.ErrSnapshotNotFound) {
			t.Errorf("expected ErrSnapshotNotFound, got %v", err)
		}
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSnapshotRepository(db)
		s := newSnapshot("alice", time.Now())
		s.Collections = []models.SnapshotCollection{{CollectionID: "liked", Name: models.LikedTracksName, Records: 4}}
		if err := repo.Create(s); err != nil {
			t.Fatalf("failed to create snapshot: %v", err)
		}

		if err := repo.Delete(s.ID); err != nil {
			t.Fatalf("failed to delete snapshot: %v", err)
		}

		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM snapshot_collections`).Scan(&count); err != nil {
			t.Fatalf("failed to count collections: %v", err)
		}
		if count != 0 {
			t.Errorf("expected collections to be deleted, got %d", count)
		}
		if err := repo.Delete(s.ID); !errors.Is(err, shared.ErrSnapshotNotFound) {
			t.Errorf("expected ErrSnapshotNotFound, got %v", err)
		}
	})
}
