//go:build !windows

package config

import (
	"os"
	"strings"

	"golang.org/x/term"
)

const badFileName = "_bad_file_name_"

// CleanFileName drops separators and control characters from file name.
// Leading dots are removed so result is never hidden.
func CleanFileName(in string) string {
	out := strings.TrimLeft(strings.Map(func(sym rune) rune {
		if sym < ' ' || sym == os.PathSeparator || sym == os.PathListSeparator {
			return -1
		}
		return sym
	}, in), ".")
	if len(out) == 0 {
		return badFileName
	}
	return out
}

// EnableColorOutput checks if colorized output is possible. NO_COLOR
// environment variable disables colors.
func EnableColorOutput(stream *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(stream.Fd()))
}
