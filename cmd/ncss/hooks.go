package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"ncss/config"
	"ncss/misc"
	"ncss/state"
)

// errLogged is set when failure was already written to program log.
var errLogged bool

// resultsOnStdout checks if command line asks to write results to standard
// output, console logs must stay away from it then.
func resultsOnStdout(cmd *cli.Command) bool {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "convert", "flatten":
		return slices.Contains(args[1:], "-")
	case "dumpconfig":
		return !slices.ContainsFunc(args[1:], func(a string) bool { return !strings.HasPrefix(a, "-") })
	}
	return false
}

// setup runs after command line is parsed but before any command.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.NArg() == 0 {
		return ctx, nil
	}
	env := state.EnvFromContext(ctx)

	cfgFile := cmd.String("config")
	cfg, err := config.LoadConfiguration(cfgFile)
	if err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	env.Cfg = cfg

	if cmd.Bool("debug") {
		if env.Rpt, err = cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
		if len(cfgFile) > 0 {
			if data, err := config.Dump(cfg); err == nil {
				env.Rpt.StoreData("config/"+filepath.Base(cfgFile), data)
			}
		}
	}

	cfg.Logging.StdoutBusy = resultsOnStdout(cmd)
	log, err := cfg.Logging.Prepare(env.Rpt)
	if err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.SetLogger(log)

	log.Debug("Program started",
		zap.Strings("args", os.Args),
		zap.String("ver", misc.GetVersion()),
		zap.String("runtime", runtime.Version()),
		zap.String("hash", misc.GetGitHash()))
	if len(cfgFile) == 0 {
		log.Debug("Using defaults (no configuration file)")
	}
	if env.Rpt != nil {
		log.Info("Creating debug report", zap.String("location", env.Rpt.Name()))
	}
	return ctx, nil
}

// teardown flushes logs and finalizes report. After it returns errors could
// only go to stderr.
func teardown(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Elapsed()), zap.Strings("parsed args", cmd.Args().Slice()))
	}
	env.ReleaseLogger()

	var err error
	if er := env.Rpt.Close(); er != nil {
		err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", er))
	}
	if env.Cfg != nil {
		err = multierr.Append(err, env.Cfg.Logging.ReleasePanics())
	}
	return err
}

// onExitError is called before teardown, so command failure makes it into
// the log and report.
func onExitError(ctx context.Context, _ *cli.Command, err error) {
	if log := state.EnvFromContext(ctx).Log; log != nil {
		log.Error("Program ended with error", zap.Error(err))
		errLogged = true
	}
}

func onUsageError(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return err
}

func onCommandNotFound(ctx context.Context, _ *cli.Command, name string) {
	if log := state.EnvFromContext(ctx).Log; log != nil {
		log.Warn("Unknown command, nothing to do", zap.String("command", name))
	}
}

// dumpConfiguration writes default or effective configuration to a file or
// standard output.
func dumpConfiguration(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	kind, dump := "actual", func() ([]byte, error) { return config.Dump(env.Cfg) }
	if cmd.Bool("default") {
		kind, dump = "default", config.Prepare
	}
	data, err := dump()
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	fname := cmd.Args().First()
	if len(fname) == 0 {
		env.Log.Debug("Outputting configuration", zap.String("state", kind), zap.String("file", "STDOUT"))
		_, err = os.Stdout.Write(data)
	} else {
		env.Log.Debug("Outputting configuration", zap.String("state", kind), zap.String("file", fname))
		err = os.WriteFile(fname, data, 0644)
	}
	if err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}
