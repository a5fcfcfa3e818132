package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"ncss/state"
)

const shutdownTimeout = 5 * time.Second

func Run(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("serve")

	cfg := *env.Cfg
	if cmd.IsSet("listen") {
		cfg.Server.Listen = cmd.String("listen")
	}
	if cmd.IsSet("path") {
		cfg.Server.Path = cmd.String("path")
	}
	if cmd.IsSet("templates") {
		cfg.Server.Templates = cmd.Bool("templates")
	}
	if cmd.IsSet("indent") {
		cfg.Processing.Indent = cmd.Int("indent")
	}
	if cfg.Processing.Indent < 0 {
		return fmt.Errorf("indentation could not be negative: %d", cfg.Processing.Indent)
	}

	m, err := New(&cfg, env.Rpt, env.Log)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", cfg.Server.Listen, err)
	}

	srv := &http.Server{
		Handler:      m.Handler(http.NotFoundHandler()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorLog:     zap.NewStdLog(log),
	}

	log.Info("Serving stylesheets",
		zap.String("listen", ln.Addr().String()), zap.String("url", m.marker), zap.String("path", cfg.Server.Path), zap.Bool("templates", cfg.Server.Templates))
	defer func(start time.Time) {
		log.Info("Server stopped", zap.Duration("uptime", time.Since(start)))
	}(time.Now())

	return serve(ctx, srv, ln, log)
}

// serve runs server until context is cancelled, then shuts it down giving
// active requests some time to complete.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, log *zap.Logger) error {
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ln)
	}()

	select {
	case err := <-done:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("unable to serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("unable to shutdown server: %w", err)
	}
	if err := <-done; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("unable to serve: %w", err)
	}
	return nil
}
