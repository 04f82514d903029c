package ui

import (
	"github.com/desertthunder/spotback/internal/models"
	"github.com/desertthunder/spotback/internal/tasks"
)

type progressUpdateMsg tasks.ProgressUpdate

type backupCompleteMsg struct {
	result *tasks.BackupResult
	err    error
}

type playlistsFetchedMsg struct {
	playlists []models.Playlist
	err       error
}

type exportCompleteMsg struct {
	playlist models.Playlist
	path     string
	records  int
	err      error
}
