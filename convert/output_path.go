package convert

import (
	"path/filepath"

	"github.com/gosimple/slug"

	"ncss/config"
	"ncss/state"
)

// buildOutputPath returns output file path for the stylesheet. "src" is
// source path relative to original input (just a base name when single file
// was specified). Source directory structure is kept unless requested
// otherwise.
func buildOutputPath(src, dst string, env *state.LocalEnv) string {
	return filepath.Join(determineOutputDir(src, dst, env), buildFileName(src, env))
}

func determineOutputDir(src, dst string, env *state.LocalEnv) string {
	if env.NoDirs {
		return dst
	}
	return filepath.Join(dst, filepath.Dir(src))
}

// buildFileName strips stylesheet extension and makes sure result ends with
// ".css": both "site.css.ncss" and "site.ncss" become "site.css".
func buildFileName(src string, env *state.LocalEnv) string {
	base := filepath.Base(src)
	if ext := env.Cfg.Templates.Extension; hasExt(base, ext) {
		base = base[:len(base)-len(ext)]
	}
	if hasExt(base, ".css") {
		base = base[:len(base)-len(".css")]
	}
	if env.Transliterate {
		base = slug.Make(base)
	}
	return config.CleanFileName(base) + ".css"
}
