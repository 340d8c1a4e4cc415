// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "page",
			Aliases: []string{"p"},
			Usage:   "Library page to operate on",
			Value:   1,
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "Media type filter: all, image, audio or video",
			Value:   "all",
		},
	}
}

func yesFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "Skip the confirmation prompt",
	}
}

// generateCommand submits one generation request.
func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Aliases:   []string{"gen"},
		Usage:     "Generate an image, audio clip or video from a prompt",
		ArgsUsage: "<prompt>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mode",
				Aliases: []string{"m"},
				Usage:   "Media type: image, audio or video",
				Value:   "image",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Generation model (default: the mode's first model)",
			},
			&cli.StringFlag{
				Name:  "style",
				Usage: "Style preset for image and video",
			},
			&cli.StringFlag{
				Name:  "voice",
				Usage: "Voice for audio",
			},
			&cli.BoolFlag{
				Name:  "no-preview",
				Usage: "Do not open the result",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the record as JSON",
			},
		},
		Action: r.Generate,
	}
}

// libraryCommand browses and manages generated records.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Browse and manage generated records",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Show one page of records",
				Flags: append(pageFlags(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				),
				Action: r.LibraryList,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete one record, or several selected on the same page",
				ArgsUsage: "<id> [id...]",
				Flags:     append(pageFlags(), yesFlag()),
				Action:    r.LibraryDelete,
			},
			{
				Name:      "download",
				Aliases:   []string{"dl"},
				Usage:     "Download one record, or several as a zip archive",
				ArgsUsage: "<id> [id...]",
				Flags: append(pageFlags(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Destination file (default: download_dir)",
					},
					&cli.BoolFlag{
						Name:  "browser",
						Usage: "Hand the download URL to the browser instead",
					},
				),
				Action: r.LibraryDownload,
			},
			{
				Name:      "preview",
				Usage:     "Open a record's asset",
				ArgsUsage: "<id>",
				Flags:     pageFlags(),
				Action:    r.LibraryPreview,
			},
			{
				Name:  "import",
				Usage: "Create a record for an existing asset URL",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "url",
						Usage:    "Asset location",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Media type: image, audio or video",
						Value: "image",
					},
					&cli.StringFlag{Name: "model", Usage: "Model that produced the asset"},
					&cli.StringFlag{Name: "prompt", Usage: "Prompt used"},
					&cli.StringFlag{Name: "style", Usage: "Style preset"},
					&cli.StringFlag{Name: "voice", Usage: "Voice"},
				},
				Action: r.LibraryImport,
			},
			{
				Name:  "export",
				Usage: "Export one page of records",
				Flags: append(pageFlags(),
					&cli.StringFlag{
						Name:  "format",
						Usage: "json, csv, markdown or txt",
						Value: "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: library_page<N>.<ext>)",
					},
				),
				Action: r.LibraryExport,
			},
		},
	}
}

// journalCommand reads the local generation journal.
func journalCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "journal",
		Usage: "Local history of generation attempts",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List journaled attempts, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "pending, succeeded or failed",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "image, audio or video",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.JournalList,
			},
		},
	}
}

// apiCommand handles direct calls against the service.
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls to the media service",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body and the session's CSRF token",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// setupCommand handles configuration, database and session setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the journal database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:  "auth",
				Usage: "Save a browser session from a copied cURL command",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
				},
				Action: r.SetupAuth,
			},
			{
				Name:  "login",
				Usage: "Sign in with a username and password and save the session",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Required: true,
					},
					&cli.StringFlag{
						Name:    "password",
						Usage:   "Password (default: $STUDIO_PASSWORD)",
						Sources: cli.EnvVars("STUDIO_PASSWORD"),
					},
				},
				Action: r.SetupLogin,
			},
			{
				Name:   "logout",
				Usage:  "End the saved session and clear it from the config",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupLogout,
			},
		},
	}
}

// sandboxCommand serves the in-memory fake service.
func sandboxCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sandbox",
		Usage: "Serve an in-memory media service for local testing",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address",
				Value: "127.0.0.1:8000",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "Username accepted by the login form",
				Value: "demo",
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "Password accepted by the login form",
				Value: "demo",
			},
			&cli.IntFlag{
				Name:  "seed",
				Usage: "Number of sample records to create",
			},
			&cli.BoolFlag{
				Name:  "require-session",
				Usage: "Reject API requests without a session",
			},
		},
		Action: r.Sandbox,
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Interactive generation and library interface",
		Action: r.TUI,
	}
}
