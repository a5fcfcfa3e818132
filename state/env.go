// Package state carries program wide settings through context.
package state

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"ncss/config"
	"ncss/dryer"
)

// LocalEnv is created once per program run and shared by all commands.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger // nil until configuration is loaded

	// convert options, command line flags take precedence over configuration
	NoDirs, Overwrite, Transliterate, Templates, Verify bool

	Indent   int
	Encoding encoding.Encoding

	started time.Time
	undo    func()
}

type ctxKey int

const envKey ctxKey = 0

// ContextWithEnv attaches fresh environment with defaults to ctx.
func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey, &LocalEnv{
		Indent:  dryer.DefaultIndent,
		started: time.Now(),
	})
}

// EnvFromContext panics when ctx was not prepared with ContextWithEnv.
func EnvFromContext(ctx context.Context) *LocalEnv {
	env, ok := ctx.Value(envKey).(*LocalEnv)
	if !ok {
		panic("program environment is missing from context")
	}
	return env
}

// Elapsed returns time since environment was created.
func (e *LocalEnv) Elapsed() time.Duration {
	return time.Since(e.started)
}

// SetLogger makes log program logger and sends output of standard "log"
// package (net/http uses it) there as well.
func (e *LocalEnv) SetLogger(log *zap.Logger) {
	e.ReleaseLogger()
	e.Log = log
	if log != nil {
		e.undo = zap.RedirectStdLog(log)
	}
}

// ReleaseLogger flushes program logger and restores standard "log" output.
// Logger itself stays usable.
func (e *LocalEnv) ReleaseLogger() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.undo != nil {
		e.undo()
		e.undo = nil
	}
}
