package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"ncss/misc"
)

type LoggerConfig struct {
	Level       string `yaml:"level" validate:"required,oneof=none debug normal"`
	Destination string `yaml:"destination,omitempty" sanitize:"path_clean,assure_dir_exists_for_file" validate:"omitempty,filepath"`
	Mode        string `yaml:"mode,omitempty" validate:"omitempty,oneof=append overwrite"`
}

type LoggingConfig struct {
	FileLogger    LoggerConfig `yaml:"file"`
	ConsoleLogger LoggerConfig `yaml:"console"`

	// StdoutBusy is set when standard output carries program results, all
	// console logging goes to stderr then.
	StdoutBusy bool `yaml:"-"`
}

// lowestLevel maps configured level name, false means logging is off.
func lowestLevel(name string) (zapcore.Level, bool) {
	switch name {
	case "debug":
		return zapcore.DebugLevel, true
	case "normal":
		return zapcore.InfoLevel, true
	}
	return zapcore.InvalidLevel, false
}

// consoleCore splits console output: errors go to stderr, everything else
// allowed by level to stdout (or stderr when stdout is busy). Error details
// are shortened on console, complete ones are in the file log.
func (conf *LoggingConfig) consoleCore() zapcore.Core {
	lowest, ok := lowestLevel(conf.ConsoleLogger.Level)
	if !ok {
		return zapcore.NewNopCore()
	}

	out := os.Stdout
	if conf.StdoutBusy {
		out = os.Stderr
	}
	regular := zapcore.NewCore(consoleEncoder(out), zapcore.Lock(out),
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lowest <= lvl && lvl < zapcore.ErrorLevel
		}))
	failures := zapcore.NewCore(plainErrors{consoleEncoder(os.Stderr)}, zapcore.Lock(os.Stderr),
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zapcore.ErrorLevel
		}))
	return zapcore.NewTee(failures, regular)
}

// consoleEncoder uses colors only when stream is a terminal.
func consoleEncoder(stream *os.File) zapcore.Encoder {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	if EnableColorOutput(stream) {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.TimeKey = zapcore.OmitKey
	}
	return zapcore.NewConsoleEncoder(ec)
}

func openLog(fname, mode string) (*os.File, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if mode == "append" {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	return os.OpenFile(fname, flags, 0644)
}

// capturePanics sends crash output next to the log, or to temporary file
// when that is not possible.
func capturePanics(dir, mode string, rpt *Report) {
	f, err := openLog(filepath.Join(dir, misc.GetAppName()+"-panic.log"), mode)
	if err != nil {
		if f, err = os.CreateTemp("", misc.GetAppName()+"-panic.*.log"); err != nil {
			return
		}
	}
	defer f.Close()
	debug.SetCrashOutput(f, debug.CrashOptions{})
	rpt.Store("panic.log", f.Name())
}

// fileCore opens file log. When configured destination is not accessible
// log goes to temporary file, its name is returned.
func (conf *LoggingConfig) fileCore(rpt *Report) (zapcore.Core, string, error) {
	level, mode := conf.FileLogger.Level, conf.FileLogger.Mode
	if rpt != nil {
		// report always gets everything
		level, mode = "debug", "overwrite"
	}
	lowest, ok := lowestLevel(level)
	if !ok {
		return zapcore.NewNopCore(), "", nil
	}

	capturePanics(filepath.Dir(conf.FileLogger.Destination), mode, rpt)

	var redirected string
	f, err := openLog(conf.FileLogger.Destination, mode)
	if err != nil {
		if f, err = os.CreateTemp("", misc.GetAppName()+".*.log"); err != nil {
			return nil, "", fmt.Errorf("unable to access file log destination (%s): %w", conf.FileLogger.Destination, err)
		}
		redirected = f.Name()
	}
	rpt.Store("final.log", f.Name())

	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zapcore.NewCore(enc, zapcore.Lock(f), zap.NewAtomicLevelAt(lowest)), redirected, nil
}

// Prepare returns configured program logger.
func (conf *LoggingConfig) Prepare(rpt *Report) (*zap.Logger, error) {
	fc, redirected, err := conf.fileCore(rpt)
	if err != nil {
		return nil, err
	}

	log := zap.New(zapcore.NewTee(conf.consoleCore(), fc), zap.AddCaller())
	if len(redirected) != 0 {
		log.Warn("Log file was redirected to new location", zap.String("location", redirected))
	}
	return log.Named(misc.GetAppName()), nil
}

// plainErrors strips verbose details (stacks and causes) from errors.
type plainErrors struct {
	zapcore.Encoder
}

func (p plainErrors) Clone() zapcore.Encoder {
	return plainErrors{p.Encoder.Clone()}
}

func (p plainErrors) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	plain := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		if err, ok := f.Interface.(error); ok && f.Type == zapcore.ErrorType {
			f.Interface = errors.New(err.Error())
		}
		plain[i] = f
	}
	return p.Encoder.EncodeEntry(ent, plain)
}

// ReleasePanics stops crash output capture and removes panic log next to
// the file log if nothing was written there.
func (conf *LoggingConfig) ReleasePanics() error {
	debug.SetCrashOutput(nil, debug.CrashOptions{})
	if len(conf.FileLogger.Destination) == 0 {
		return nil
	}
	fname := filepath.Join(filepath.Dir(conf.FileLogger.Destination), misc.GetAppName()+"-panic.log")
	if fi, err := os.Stat(fname); err != nil || fi.Size() != 0 {
		return nil
	}
	if err := os.Remove(fname); err != nil {
		return fmt.Errorf("unable to remove empty panic log file '%s': %w", fname, err)
	}
	return nil
}
