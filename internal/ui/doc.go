// Package ui implements the terminal interface using bubbletea's Elm architecture.
//
// Two programs are provided:
//  1. [BackupModel] : Live view of a backup run with a spinner, a progress bar over collections,
//     and the most recently exported collections. Esc or ctrl+c cancels the run.
//  2. [BrowserModel] : Filterable list of owned playlists; enter exports the selected playlist.
//
// Progress updates flow through a channel from [tasks.Backup], providing non-blocking status reporting.
//
// Styles come from a lipgloss [Palette]; [Summary] and the Success/Failure helpers reuse it for plain CLI output.
package ui
