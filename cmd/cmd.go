// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func formatFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, markdown or json",
			Value:   "text",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output JSON (same as --format json)",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

// tasksCommand lists, runs and toggles scheduled tasks
func tasksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "Inspect and run pipeline tasks",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "Show every task with its interval, dependencies and state",
				Flags:   formatFlags(),
				Action:  r.TasksList,
			},
			{
				Name:  "run",
				Usage: "Force-run one task, ignoring its dependencies",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Action: r.TasksRun,
			},
			{
				Name:   "run-all",
				Usage:  "Force-run every enabled task in dependency order",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output JSON"}},
				Action: r.TasksRunAll,
			},
			{
				Name:  "history",
				Usage: "Show recent runs, of one task or of all tasks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: append(formatFlags(), &cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"n"},
					Usage:   "Maximum number of runs to show",
					Value:   20,
				}),
				Action: r.TasksHistory,
			},
			{
				Name:      "enable",
				Usage:     "Let the scheduler run a task",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Action:    r.TasksEnable,
			},
			{
				Name:      "disable",
				Usage:     "Stop the scheduler and run-all from running a task",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Action:    r.TasksDisable,
			},
		},
	}
}

// daemonCommand runs the background scheduler
func daemonCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "daemon",
		Usage: "Run due tasks in the background until interrupted",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "server",
				Usage: "Serve the status API (overrides server.enabled)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Status API port (overrides server.port)",
			},
		},
		Action: r.Daemon,
	}
}

// downloadCommand downloads a single track synchronously
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Search for one track, pick the best file and enqueue it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "artist", Aliases: []string{"a"}, Usage: "Track artist", Required: true},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Track title", Required: true},
			&cli.StringFlag{Name: "id", Usage: "Track id (defaults to a generated id)"},
			&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
		},
		Action: r.Download,
	}
}

// importCommand imports a local file as a track's download
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Copy a local audio file into the library for a track",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Track id", Required: true},
			&cli.StringFlag{Name: "file", Usage: "Audio file to import", Required: true},
			&cli.IntFlag{Name: "bitrate", Usage: "Bitrate in kbps, when known"},
		},
		Action: r.Import,
	}
}

// exportCommand regenerates library artifacts
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write library files",
		Commands: []*cli.Command{
			{
				Name:   "xml",
				Usage:  "Write the iTunes library XML",
				Action: r.ExportXML,
			},
			{
				Name:   "m3u8",
				Usage:  "Rebuild every M3U8 playlist from the database",
				Action: r.ExportM3U8,
			},
		},
	}
}

// scrapeCommand scrapes playlists outside the scheduler
func scrapeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "scrape",
		Usage:     "Scrape the given playlist URLs, or every playlist in the sources file",
		ArgsUsage: "[url...]",
		Flags:     []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output JSON"}},
		Action:    r.Scrape,
	}
}

// blacklistCommand manages rejected files
func blacklistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "blacklist",
		Usage: "Manage files excluded from candidate selection",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Exclude a file id",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{&cli.StringFlag{Name: "reason", Usage: "Why the file is excluded"}},
				Action:    r.BlacklistAdd,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Allow a file id again",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.BlacklistRemove,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "Show excluded file ids",
				Flags:   []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output JSON"}},
				Action:  r.BlacklistList,
			},
		},
	}
}

// statsCommand summarizes track statuses
func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "stats",
		Aliases: []string{"status"},
		Usage:   "Count tracks by download status",
		Flags:   []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output JSON"}},
		Action:  r.Stats,
	}
}

// dashboardCommand opens the terminal dashboard
func dashboardCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "dashboard",
		Aliases: []string{"tui"},
		Usage:   "Watch and trigger tasks in an interactive terminal UI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the dashboard owns the terminal",
				Value: "./tmp/spotiseek-tui.log",
			},
		},
		Action: r.Dashboard,
	}
}
