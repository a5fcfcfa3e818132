// Command ncss flattens nested stylesheets: converts files, directories and
// archives, serves them over HTTP and creates samples.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"ncss/convert"
	"ncss/misc"
	"ncss/scaffold"
	"ncss/server"
	"ncss/state"
)

func main() {
	// server runs until interrupted, batch processing stops between files
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "flattens nested (DRY) stylesheets into plain CSS",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          setup,
		After:           teardown,
		OnUsageError:    onUsageError,
		ExitErrHandler:  onExitError,
		CommandNotFound: onCommandNotFound,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "changes program behavior to help troubleshooting, produces report archive"},
		},
		Commands: []*cli.Command{
			{
				Name:         "convert",
				Aliases:      []string{"flatten"},
				Usage:        "Flattens nested stylesheet(s) into plain CSS files",
				OnUsageError: onUsageError,
				Action:       convert.Run,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "indent", Aliases: []string{"i"}, Usage: "indent declarations of flattened nested rules with `N` spaces (overrides configuration)"},
					&cli.BoolFlag{Name: "nodirs", Aliases: []string{"nd"}, Usage: "when producing output do not keep input directory structure"},
					&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "continue even if destination exits, overwrite files"},
					&cli.BoolFlag{Name: "transliterate", Aliases: []string{"tr"}, Usage: "transliterate output file names"},
					&cli.BoolFlag{Name: "templates", Aliases: []string{"t"}, Usage: "expand stylesheets as templates (with partials) before flattening"},
					&cli.BoolFlag{Name: "verify", Usage: "check that produced CSS is flat and log problems"},
					&cli.StringFlag{Name: "encoding",
						Usage: "Force `ENCODING` for stylesheets without BOM (see IANA.org for character set names)"},
				},
				ArgsUsage: "SOURCE [DESTINATION]",
				CustomHelpTemplate: fmt.Sprintf(`%s
SOURCE:
    path to nested stylesheet(s) to process, following formats are supported:
        path to a file: "[path_to_file]file.css.ncss"
        path to a directory: "[path_to_directory]directory" - recursively process all stylesheets under directory (symbolic links are not followed)
        path to archive with path inside archive to a particular stylesheet: "[path_to_archive]archive.zip[path_in_archive]/file.css.ncss"
        path to archive with path inside archive: "[path_to_archive]archive.zip[path_in_archive]" - recursively process all stylesheets under archive path
        "-" - read stylesheet from STDIN and write flattened result to STDOUT

	Partials (file names starting with partial prefix) are never processed directly.
	Templates are not supported inside archives.

DESTINATION:
    always a path, output file name(s) will be derived from source names:
    "site.css.ncss" and "site.ncss" both become "site.css"
    if absent - current working directory
`, cli.CommandHelpTemplate),
			},
			{
				Name:         "serve",
				Usage:        "Serves flattened stylesheets over HTTP",
				OnUsageError: onUsageError,
				Action:       server.Run,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "listen on `ADDRESS` (host:port)"},
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "serve stylesheets from `DIRECTORY`"},
					&cli.BoolFlag{Name: "templates", Aliases: []string{"t"}, Usage: "expand stylesheets as templates (with partials) before flattening"},
					&cli.IntFlag{Name: "indent", Aliases: []string{"i"}, Usage: "indent declarations of flattened nested rules with `N` spaces"},
				},
				CustomHelpTemplate: fmt.Sprintf(`%s
Requests for "/<url>/name.css" are answered with flattened "<path>/name.ncss"
(or "<path>/name.css.ncss"), everything else is 404. Values for url and path
come from configuration, path could be changed from command line.
`, cli.CommandHelpTemplate),
			},
			{
				Name:         "generate",
				Usage:        "Creates sample nested stylesheets",
				OnUsageError: onUsageError,
				Action:       scaffold.Run,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "additionally create stylesheet with `NAME`"},
					&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "overwrite existing files instead of skipping them"},
				},
				ArgsUsage: "[DIRECTORY]",
				CustomHelpTemplate: fmt.Sprintf(`%s
DIRECTORY:
    stylesheets are created in "stylesheets" subdirectory of it
    if absent - current working directory
`, cli.CommandHelpTemplate),
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError: onUsageError,
				Action:       dumpConfiguration,
				ArgsUsage:    "DESTINATION",
				CustomHelpTemplate: fmt.Sprintf(`%s

DESTINATION:
    file name to write configuration to, if absent - STDOUT

Produces file with actual "active" configuration values which is composition of
default values and values specified in configuration file. To see default
configuration embedded into the program use --default flag.
`, cli.CommandHelpTemplate),
			},
		},
	}

	// os.Exit skips deferred calls, so it is the very last thing main does
	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		// log is either not ready (bad command line) or already closed
		if !errLogged {
			fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
		}
		os.Exit(1)
	}
}
