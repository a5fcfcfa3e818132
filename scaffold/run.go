package scaffold

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"ncss/state"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("generate")

	dir := cmd.Args().Get(0)
	if len(dir) == 0 {
		if dir, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	results, err := Generate(dir, Options{
		Name:      cmd.String("name"),
		Overwrite: cmd.Bool("overwrite"),
		Templates: &env.Cfg.Templates,
	}, env.Log)

	skipped := 0
	for _, r := range results {
		if r.Status == Skipped {
			skipped++
			log.Warn("File exists, skipping", zap.String("file", r.Path))
		}
	}
	if err != nil {
		return fmt.Errorf("unable to generate stylesheets: %w", err)
	}
	log.Info("Generation completed", zap.Int("files", len(results)), zap.Int("skipped", skipped))
	return nil
}
