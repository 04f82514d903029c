package tasks

import (
	"fmt"

	"github.com/desertthunder/spotback/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchUser Phase = iota
	FetchPlaylists
	ExportingCollection
	WriteSnapshot
	Done
)

func (p Phase) String() string {
	switch p {
	case FetchUser:
		return "fetch_user"
	case FetchPlaylists:
		return "fetch_playlists"
	case ExportingCollection:
		return "export_collection"
	case WriteSnapshot:
		return "write_snapshot"
	case Done:
		return "done"
	default:
		return ""
	}
}

func fetchUserUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchUser,
		Message: "Resolving current user...",
	}
}

func fetchPlaylistsUpdate(username string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Message: fmt.Sprintf("Fetching playlists owned by %s...", username),
	}
}

func foundPlaylistsUpdate(owned []models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    len(owned),
		Total:   len(owned),
		Message: fmt.Sprintf("Found %d owned playlists", len(owned)),
		Data:    owned,
	}
}

func exportedCollectionUpdate(step, total int, c models.Collection, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportingCollection,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, c.Label(), count),
		Data:    c,
	}
}

func exportFailedUpdate(step, total int, c models.Collection, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportingCollection,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, c.Label(), err),
		Data:    c,
	}
}

func writeSnapshotUpdate(records int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteSnapshot,
		Step:    records,
		Total:   records,
		Message: fmt.Sprintf("Writing snapshot (%d records)...", records),
	}
}

func doneUpdate(result *BackupResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    len(result.Collections),
		Total:   len(result.Collections),
		Message: fmt.Sprintf("Backed up %d records from %d collections", result.Records, len(result.Collections)),
		Data:    result,
	}
}

// sendProgress delivers update unless progress is nil or full.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
