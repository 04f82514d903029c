// Package models defines the entities shared by the catalog client, the exporter and the snapshot writers.
//
//   - [TrackRecord] : flattened metadata of one track within one collection
//   - [Playlist] : one entry of the playlist index, with its owner
//   - [Collection] : reference to a playlist or to the liked-tracks sentinel ([LikedTracks])
//   - [Snapshot] : history row describing one backup run
//
// Records carry no identity across runs; every snapshot is rebuilt from scratch.
package models
