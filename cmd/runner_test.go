package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotback/internal/models"
	"github.com/desertthunder/spotback/internal/repositories"
	"github.com/desertthunder/spotback/internal/services"
	"github.com/desertthunder/spotback/internal/shared"
	th "github.com/desertthunder/spotback/internal/testing"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// libraryCatalog serves user "alice": two owned playlists, one followed playlist and two liked tracks.
func libraryCatalog() *th.MockCatalog {
	catalog := th.NewMockCatalog("alice")
	catalog.AddPlaylist(
		models.Playlist{ID: "p1", Name: "Road Trip", OwnerID: "alice", TrackCount: 2},
		[]services.RawTrack{th.Track("t1", "Song One", "Album One", 50, "Artist A", "Artist B")},
		[]services.RawTrack{th.Track("t2", "Song Two", "Album Two", 40, "Artist C")},
	)
	catalog.AddPlaylist(
		models.Playlist{ID: "p2", Name: "Followed", OwnerID: "bob", TrackCount: 1},
		[]services.RawTrack{th.Track("t9", "Not Mine", "Elsewhere", 10, "Artist Z")},
	)
	catalog.AddPlaylist(
		models.Playlist{ID: "p3", Name: "Focus", OwnerID: "alice", TrackCount: 1},
		[]services.RawTrack{th.Track("t3", "Song Three", "Album Three", 30, "Artist D")},
	)
	catalog.SetLiked(
		[]services.RawTrack{th.Track("t4", "Liked One", "Album Four", 20, "Artist E")},
		[]services.RawTrack{th.Track("t5", "Liked Two", "Album Five", 10, "Artist F")},
	)
	return catalog
}

type fixture struct {
	runner *Runner
	output *bytes.Buffer
	db     *sql.DB
	dir    string
}

func newFixture(t *testing.T, catalog services.Catalog) *fixture {
	t.Helper()
	config := shared.DefaultConfig()
	config.Credentials.Spotify.Username = "alice"
	config.Backup.Retries = 1

	dir := t.TempDir()
	config.Backup.OutputDir = filepath.Join(dir, "backups")

	f := &fixture{output: &bytes.Buffer{}, db: setupTestDB(t), dir: config.Backup.OutputDir}
	f.runner = NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: filepath.Join(dir, "config.toml"),
		Catalog:    catalog,
		DB:         f.db,
		Logger:     shared.NewLogger(io.Discard),
		Output:     f.output,
	})
	return f
}

func (f *fixture) run(args ...string) error {
	app := &cli.Command{
		Name:     "spotback",
		Flags:    globalFlags(),
		Commands: f.runner.register(),
		Writer:   io.Discard,
	}
	return app.Run(context.Background(), append([]string{"spotback"}, args...))
}

func (f *fixture) snapshotFile(t *testing.T) string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		t.Fatalf("failed to read output dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one snapshot, got %d", len(entries))
	}
	return filepath.Join(f.dir, entries[0].Name())
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			catalog := th.NewMockCatalog("alice")

			runner := NewRunner(RunnerOpts{
				Config:  config,
				Logger:  logger,
				Output:  output,
				Catalog: catalog,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.catalog != catalog {
				t.Error("expected catalog to be set")
			}
			if runner.oauth != nil {
				t.Error("expected mock catalog not to be used for reauthorization")
			}
			if !runner.configLoaded {
				t.Error("expected provided config to be kept")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.configLoaded {
				t.Error("expected default config to be replaced on load")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			if runner := NewRunner(RunnerOpts{Logger: nil}); runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			if runner := NewRunner(RunnerOpts{Output: nil}); runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with empty configPath uses default", func(t *testing.T) {
			if runner := NewRunner(RunnerOpts{}); runner.configPath != defaultConfigPath {
				t.Errorf("expected %s, got %s", defaultConfigPath, runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &th.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := th.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &th.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
			if cmd.Before == nil {
				t.Errorf("expected %q to load configuration before running", cmd.Name)
			}
		}
		for _, want := range []string{"init", "auth", "backup", "playlists", "export", "history"} {
			if !names[want] {
				t.Errorf("expected %q command to be registered", want)
			}
		}
	})

	t.Run("saveToken", func(t *testing.T) {
		t.Run("persists tokens", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")
			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientID = "test_id"
			if err := shared.SaveConfig(configPath, config); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			runner := NewRunner(RunnerOpts{Config: config, ConfigPath: configPath, Logger: shared.NewLogger(io.Discard)})
			runner.saveToken(&oauth2.Token{AccessToken: "new_access_token", RefreshToken: "new_refresh_token"})

			loaded, err := shared.LoadConfig(configPath)
			if err != nil {
				t.Fatalf("failed to reload config: %v", err)
			}
			if loaded.Credentials.Spotify.AccessToken != "new_access_token" {
				t.Errorf("expected access token to be saved, got %s", loaded.Credentials.Spotify.AccessToken)
			}
			if loaded.Credentials.Spotify.RefreshToken != "new_refresh_token" {
				t.Errorf("expected refresh token to be saved, got %s", loaded.Credentials.Spotify.RefreshToken)
			}
			if loaded.Credentials.Spotify.ClientID != "test_id" {
				t.Error("expected credentials to be preserved")
			}
		})

		t.Run("environment credentials stay out of the file", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(configPath, []byte("[credentials.spotify]\nusername = \"alice\"\n"), 0600); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}
			t.Setenv("SPOTBACK_CLIENT_SECRET", "env-only-secret")

			config, err := shared.LoadOrDefault(configPath)
			if err != nil {
				t.Fatalf("failed to load config: %v", err)
			}
			runner := NewRunner(RunnerOpts{Config: config, ConfigPath: configPath, Logger: shared.NewLogger(io.Discard)})
			runner.saveToken(&oauth2.Token{AccessToken: "abc"})

			data, err := os.ReadFile(configPath)
			if err != nil {
				t.Fatalf("failed to read config: %v", err)
			}
			if strings.Contains(string(data), "env-only-secret") {
				t.Errorf("client secret from environment written to %s:\n%s", configPath, data)
			}
			if runner.config.Credentials.Spotify.AccessToken != "abc" {
				t.Errorf("expected in-memory token to be updated, got %q", runner.config.Credentials.Spotify.AccessToken)
			}
			if runner.config.Credentials.Spotify.ClientSecret != "env-only-secret" {
				t.Error("expected in-memory secret to be kept")
			}
		})

		t.Run("nil token leaves config untouched", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")
			runner := NewRunner(RunnerOpts{ConfigPath: configPath, Logger: shared.NewLogger(io.Discard)})

			runner.saveToken(nil)
			th.AssertNoFile(t, configPath)
		})
	})

	t.Run("Before", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "custom.toml")
		config := shared.DefaultConfig()
		config.Credentials.Spotify.Username = "from-file"
		if err := shared.SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: &bytes.Buffer{}})
		app := &cli.Command{
			Name:   "spotback",
			Flags:  globalFlags(),
			Before: runner.Before,
			Action: func(ctx context.Context, cmd *cli.Command) error { return nil },
		}
		if err := app.Run(context.Background(), []string{"spotback", "--config", configPath}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if runner.configPath != configPath {
			t.Errorf("expected config path %s, got %s", configPath, runner.configPath)
		}
		if runner.config.Credentials.Spotify.Username != "from-file" {
			t.Errorf("expected config to be loaded from file, got %q", runner.config.Credentials.Spotify.Username)
		}
	})
}

func TestBackupCommand(t *testing.T) {
	t.Run("WritesSnapshotInOrder", func(t *testing.T) {
		f := newFixture(t, libraryCatalog())

		if err := f.run("backup", "--workers", "3"); err != nil {
			t.Fatalf("backup failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(th.MustReadFile(t, f.snapshotFile(t))), "\n")
		want := []string{
			"playlist_name,artist_name,track_name,album_name,popularity,spotify_uri",
			"Road Trip,Artist A;Artist B,Song One,Album One,50,spotify:track:t1",
			"Road Trip,Artist C,Song Two,Album Two,40,spotify:track:t2",
			"Focus,Artist D,Song Three,Album Three,30,spotify:track:t3",
			"Liked Tracks,Artist E,Liked One,Album Four,20,spotify:track:t4",
			"Liked Tracks,Artist F,Liked Two,Album Five,10,spotify:track:t5",
		}
		if len(lines) != len(want) {
			t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), strings.Join(lines, "\n"))
		}
		for i := range want {
			if lines[i] != want[i] {
				t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
			}
		}

		if !strings.Contains(f.output.String(), "Backup complete") {
			t.Errorf("expected summary, got:\n%s", f.output.String())
		}
	})

	t.Run("RecordsHistory", func(t *testing.T) {
		f := newFixture(t, libraryCatalog())
		if err := f.run("backup"); err != nil {
			t.Fatalf("backup failed: %v", err)
		}

		latest, err := repositories.NewSnapshotRepository(f.db).Latest()
		if err != nil {
			t.Fatalf("expected snapshot in history: %v", err)
		}
		if latest.Status != models.SnapshotComplete {
			t.Errorf("expected complete status, got %s", latest.Status)
		}
		if latest.Records != 5 || latest.Playlists != 2 {
			t.Errorf("unexpected counts: records=%d playlists=%d", latest.Records, latest.Playlists)
		}
		if len(latest.Collections) != 3 || latest.Collections[2].Name != models.LikedTracksName {
			t.Errorf("unexpected collections: %+v", latest.Collections)
		}
		if latest.Path != f.snapshotFile(t) {
			t.Errorf("expected path %s, got %s", f.snapshotFile(t), latest.Path)
		}
	})

	t.Run("FailureLeavesNoSnapshot", func(t *testing.T) {
		catalog := libraryCatalog()
		catalog.FailOn("liked#1", shared.ErrAPIRequest)
		f := newFixture(t, catalog)

		err := f.run("backup")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if _, statErr := os.Stat(f.dir); statErr == nil {
			th.AssertDirEntries(t, f.dir, 0)
		}

		latest, err := repositories.NewSnapshotRepository(f.db).Latest()
		if err != nil {
			t.Fatalf("expected failed run in history: %v", err)
		}
		if latest.Status != models.SnapshotFailed || latest.Error == "" {
			t.Errorf("expected failed status with error, got %s %q", latest.Status, latest.Error)
		}

		catalog.FailOn("liked#1", nil)
		if err := f.run("backup"); err != nil {
			t.Fatalf("rerun failed: %v", err)
		}
		if got := strings.Count(th.MustReadFile(t, f.snapshotFile(t)), "\n"); got != 6 {
			t.Errorf("expected complete snapshot of 6 lines, got %d", got)
		}
	})

	t.Run("Stdout", func(t *testing.T) {
		f := newFixture(t, libraryCatalog())

		if err := f.run("backup", "--stdout", "--format", "txt", "--no-history"); err != nil {
			t.Fatalf("backup failed: %v", err)
		}

		out := f.output.String()
		for _, want := range []string{"Playlist: Road Trip", "Playlist: Focus", "Playlist: Liked Tracks"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
		if strings.Contains(out, "Not Mine") {
			t.Error("expected followed playlist to be skipped")
		}
		if _, err := os.Stat(f.dir); !os.IsNotExist(err) {
			t.Error("expected no output directory for stdout backups")
		}
		if _, err := repositories.NewSnapshotRepository(f.db).Latest(); err == nil {
			t.Error("expected --no-history to skip the history record")
		}
	})

	t.Run("InvalidFlags", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
		}{
			{name: "unknown format", args: []string{"backup", "--format", "xml"}},
			{name: "progress with stdout", args: []string{"backup", "--stdout", "--progress"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t, libraryCatalog())
				if err := f.run(tt.args...); !errors.Is(err, shared.ErrInvalidFlag) {
					t.Errorf("expected ErrInvalidFlag, got %v", err)
				}
			})
		}
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		f := newFixture(t, nil)

		if err := f.run("backup"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("AuthFailure", func(t *testing.T) {
		f := newFixture(t, nil)
		logs := &bytes.Buffer{}
		f.runner.logger = shared.NewLogger(logs)
		f.runner.openBrowser = func(string) error { return errors.New("no browser") }

		config := f.runner.config
		config.Credentials.Spotify.ClientID = "id"
		config.Credentials.Spotify.ClientSecret = "secret"
		config.Server.Port = 0
		config.Server.Timeout = shared.Duration{Duration: 50 * time.Millisecond}

		err := f.run("backup")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}
		if !strings.Contains(logs.String(), "can't get token for alice") {
			t.Errorf("expected log naming the user, got:\n%s", logs.String())
		}
		th.AssertNoFile(t, f.dir)

		snapshots, err := repositories.NewSnapshotRepository(f.db).List(10)
		if err != nil {
			t.Fatalf("failed to list snapshots: %v", err)
		}
		if len(snapshots) != 0 {
			t.Errorf("expected no history rows, got %d", len(snapshots))
		}
	})
}

func TestExportCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
		want    []string
	}{
		{
			name: "liked tracks",
			args: []string{"export", "--liked"},
			want: []string{"Liked Tracks,Artist E,Liked One", "Liked Tracks,Artist F,Liked Two"},
		},
		{
			name: "playlist by id",
			args: []string{"export", "--id", "p3", "--format", "markdown"},
			want: []string{"## Focus", "Artist D - Song Three (Album Three)"},
		},
		{
			name: "followed playlist by id",
			args: []string{"export", "--id", "p2"},
			want: []string{"Followed,Artist Z,Not Mine"},
		},
		{name: "unknown playlist", args: []string{"export", "--id", "nope"}, wantErr: shared.ErrPlaylistNotFound},
		{name: "no collection", args: []string{"export"}, wantErr: shared.ErrMissingArgument},
		{name: "both collections", args: []string{"export", "--id", "p1", "--liked"}, wantErr: shared.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, libraryCatalog())
			err := f.run(tt.args...)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("export failed: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(f.output.String(), want) {
					t.Errorf("expected %q in output:\n%s", want, f.output.String())
				}
			}
		})
	}

	t.Run("ToFile", func(t *testing.T) {
		f := newFixture(t, libraryCatalog())
		path := filepath.Join(t.TempDir(), "liked.json")

		if err := f.run("export", "--liked", "-o", path, "--format", "json"); err != nil {
			t.Fatalf("export failed: %v", err)
		}

		var records []models.TrackRecord
		if err := json.Unmarshal([]byte(th.MustReadFile(t, path)), &records); err != nil {
			t.Fatalf("invalid JSON snapshot: %v", err)
		}
		if len(records) != 2 || records[0].TrackName != "Liked One" {
			t.Errorf("unexpected records: %+v", records)
		}
		if !strings.Contains(f.output.String(), "Tracks: 2") {
			t.Errorf("expected export summary, got:\n%s", f.output.String())
		}
	})
}

func TestPlaylistsCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "owned", args: []string{"playlists", "--json"}, want: []string{"p1", "p3"}},
		{name: "all", args: []string{"playlists", "--json", "--all"}, want: []string{"p1", "p2", "p3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, libraryCatalog())
			if err := f.run(tt.args...); err != nil {
				t.Fatalf("playlists failed: %v", err)
			}

			var playlists []models.Playlist
			if err := json.Unmarshal(f.output.Bytes(), &playlists); err != nil {
				t.Fatalf("invalid JSON output: %v", err)
			}
			if len(playlists) != len(tt.want) {
				t.Fatalf("expected %d playlists, got %d", len(tt.want), len(playlists))
			}
			for i, id := range tt.want {
				if playlists[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, playlists[i].ID)
				}
			}
		})
	}

	t.Run("PlainListing", func(t *testing.T) {
		f := newFixture(t, libraryCatalog())
		if err := f.run("playlists"); err != nil {
			t.Fatalf("playlists failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "Found 2 playlists") {
			t.Errorf("unexpected output:\n%s", f.output.String())
		}
	})

	t.Run("ResolvesCurrentUser", func(t *testing.T) {
		f := newFixture(t, libraryCatalog())
		f.runner.config.Credentials.Spotify.Username = ""

		if err := f.run("playlists", "--json"); err != nil {
			t.Fatalf("playlists failed: %v", err)
		}
		if !strings.Contains(f.output.String(), `"Road Trip"`) {
			t.Errorf("expected playlists of the authenticated user, got:\n%s", f.output.String())
		}
	})
}

func TestHistoryCommand(t *testing.T) {
	f := newFixture(t, libraryCatalog())

	if err := f.run("history"); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(f.output.String(), "No snapshots recorded yet") {
		t.Errorf("expected empty history message, got:\n%s", f.output.String())
	}

	if err := f.run("backup"); err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	f.output.Reset()

	if err := f.run("history", "--json", "--limit", "5"); err != nil {
		t.Fatalf("history failed: %v", err)
	}

	var views []snapshotView
	if err := json.Unmarshal(f.output.Bytes(), &views); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(views) != 1 || views[0].Status != string(models.SnapshotComplete) || views[0].Records != 5 {
		t.Errorf("unexpected history: %+v", views)
	}

	f.output.Reset()
	if err := f.run("history"); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(f.output.String(), "Snapshot History") || !strings.Contains(f.output.String(), "Records: 5") {
		t.Errorf("unexpected history listing:\n%s", f.output.String())
	}
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: output})
	app := &cli.Command{
		Name:     "spotback",
		Flags:    globalFlags(),
		Commands: runner.register(),
		Writer:   io.Discard,
	}

	if err := app.Run(context.Background(), []string{"spotback", "init"}); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	th.AssertFileExists(t, filepath.Join(dir, defaultConfigPath))
	th.AssertFileExists(t, filepath.Join(dir, "spotback.db"))
	if !strings.Contains(output.String(), "credentials") {
		t.Errorf("expected missing credentials hint, got:\n%s", output.String())
	}

	if err := app.Run(context.Background(), []string{"spotback", "init"}); err != nil {
		t.Errorf("expected init to be idempotent, got %v", err)
	}
}
