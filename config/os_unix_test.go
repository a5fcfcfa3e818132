//go:build !windows

package config

import (
	"os"
	"testing"
)

func TestCleanFileName(t *testing.T) {
	tests := map[string]string{
		"site":         "site",
		"a/b":          "ab",
		"a:b":          "ab",
		"..hidden":     "hidden",
		"tab\there":    "tabhere",
		"name.css":     "name.css",
		"":             badFileName,
		"...":          badFileName,
		"/":            badFileName,
		"spaced name ": "spaced name ",
	}
	for in, want := range tests {
		if got := CleanFileName(in); got != want {
			t.Errorf("CleanFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnableColorOutput_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if EnableColorOutput(os.Stdout) {
		t.Error("EnableColorOutput() = true with NO_COLOR set")
	}
}
