// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Create a config file from the template and initialize the history database",
		Action: r.Init,
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authenticate with Spotify using OAuth2 and save the tokens",
		Action: r.Auth,
	}
}

func backupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Export all owned playlists and liked tracks into one snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Snapshot format: csv, txt, json or markdown (default: from config)",
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Directory for the snapshot file (default: from config)",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Number of collections exported concurrently (max 10)",
			},
			&cli.BoolFlag{
				Name:  "stdout",
				Usage: "Write the snapshot to stdout instead of a file",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record this run in the history database",
			},
			&cli.BoolFlag{
				Name:    "progress",
				Aliases: []string{"p"},
				Usage:   "Show an interactive progress display",
			},
		},
		Action: r.Backup,
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"ls"},
		Usage:   "List the playlists included in a backup",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Include playlists owned by other users",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Browse playlists interactively and export the selected one",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Format for playlists exported from the browser",
			},
		},
		Action: r.Playlists,
	}
}

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export a single playlist or the liked tracks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "Playlist ID to export",
			},
			&cli.BoolFlag{
				Name:  "liked",
				Usage: "Export the liked tracks",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file (default: stdout)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: csv, txt, json or markdown (default: from config)",
			},
		},
		Action: r.Export,
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List previous backup runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of snapshots to show (0 for all)",
				Value:   10,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.History,
	}
}
