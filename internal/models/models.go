// package models defines the data model for library snapshots
package models

import (
	"strings"
	"time"
)

// LikedTracksName labels every record exported from the liked-tracks collection.
const LikedTracksName = "Liked Tracks"

// TrackRecord is one track's metadata as it appears within one collection.
type TrackRecord struct {
	PlaylistName string   `json:"playlist_name" csv:"playlist_name"`
	Artists      []string `json:"artist_name" csv:"artist_name"`
	TrackName    string   `json:"track_name" csv:"track_name"`
	AlbumName    string   `json:"album_name" csv:"album_name"`
	Popularity   int      `json:"popularity" csv:"popularity"`
	URI          string   `json:"spotify_uri" csv:"spotify_uri"`
}

// ArtistNames joins the record's artists with sep.
func (r TrackRecord) ArtistNames(sep string) string {
	return strings.Join(r.Artists, sep)
}

// User is the authenticated catalog user.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Playlist is one entry of the user's playlist index.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	OwnerID     string `json:"owner_id"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
}

// CollectionKind distinguishes playlists from the implicit liked-tracks list.
type CollectionKind int

const (
	KindPlaylist CollectionKind = iota
	KindLiked
)

func (k CollectionKind) String() string {
	switch k {
	case KindPlaylist:
		return "playlist"
	case KindLiked:
		return "liked"
	default:
		return ""
	}
}

// Collection identifies one exportable, ordered group of tracks.
type Collection struct {
	Kind CollectionKind
	ID   string
	Name string
	Size int // expected item count when known, used to pre-size buffers
}

// PlaylistCollection returns the collection reference for p.
func PlaylistCollection(p Playlist) Collection {
	return Collection{Kind: KindPlaylist, ID: p.ID, Name: p.Name, Size: p.TrackCount}
}

// LikedTracks returns the sentinel reference for the current user's liked tracks.
func LikedTracks() Collection {
	return Collection{Kind: KindLiked, ID: "liked", Name: LikedTracksName}
}

// Label is the playlist_name written on every record produced from c.
func (c Collection) Label() string {
	if c.Kind == KindLiked {
		return LikedTracksName
	}
	return c.Name
}

// SnapshotStatus is the lifecycle state of a recorded backup run.
type SnapshotStatus string

const (
	SnapshotRunning  SnapshotStatus = "running"
	SnapshotComplete SnapshotStatus = "complete"
	SnapshotFailed   SnapshotStatus = "failed"
)

// Snapshot is the history entry for one backup run.
type Snapshot struct {
	ID          string
	Path        string
	Format      string
	Username    string
	Playlists   int
	Records     int
	Status      SnapshotStatus
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Collections []SnapshotCollection
}

// SnapshotCollection records how many tracks one collection contributed to a snapshot.
type SnapshotCollection struct {
	Position     int
	CollectionID string
	Name         string
	Records      int
}

// Duration is the wall time of a finished run, or zero while it is running.
func (s *Snapshot) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
