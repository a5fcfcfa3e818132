// Package scaffold creates starter stylesheets: a sample nested stylesheet, a
// partial it includes and optionally named empty stylesheet.
package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/gosimple/slug"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"ncss/config"
)

//go:embed files/*.tmpl
var files embed.FS

// Status of generated file.
type Status int

const (
	Created Status = iota
	Skipped
	Overwritten
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case Skipped:
		return "skipped"
	case Overwritten:
		return "overwritten"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result describes single file produced by Generate.
type Result struct {
	Path   string
	Status Status
}

// Options control generation.
type Options struct {
	Name      string // when not empty additional stylesheet is created
	Overwrite bool   // replace existing files instead of skipping them
	Templates *config.TemplatesConfig
}

// values are used when expanding embedded files, generated stylesheets are
// templates themselves so different delimiters are used here.
type values struct {
	Name    string
	Left    string
	Right   string
	Partial string
}

// Dir is directory under destination where stylesheets are created.
const Dir = "stylesheets"

// Generate creates stylesheets under "<dir>/stylesheets". Problems with
// individual files do not stop generation, all of them are returned together.
func Generate(dir string, opts Options, log *zap.Logger) (results []Result, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("scaffold")

	tcfg := opts.Templates
	out := filepath.Join(dir, Dir)
	if err := os.MkdirAll(out, 0755); err != nil {
		return nil, fmt.Errorf("unable to create stylesheets directory: %w", err)
	}

	v := values{
		Name:    opts.Name,
		Left:    tcfg.LeftDelim,
		Right:   tcfg.RightDelim,
		Partial: tcfg.PartialPrefix + "foo.css",
	}
	plan := []struct{ tmpl, name string }{
		{"test.css.ncss.tmpl", "test.css" + tcfg.Extension},
		{"partial.css.ncss.tmpl", v.Partial + tcfg.Extension},
	}
	if len(opts.Name) > 0 {
		plan = append(plan, struct{ tmpl, name string }{"named.css.ncss.tmpl", slug.Make(opts.Name) + ".css" + tcfg.Extension})
	}

	for _, p := range plan {
		res, e := generateFile(p.tmpl, filepath.Join(out, p.name), v, opts.Overwrite)
		if e != nil {
			err = multierr.Append(err, e)
			continue
		}
		log.Info("Stylesheet generated", zap.String("file", res.Path), zap.Stringer("status", res.Status))
		results = append(results, res)
	}
	return results, err
}

func generateFile(tmpl, path string, v values, overwrite bool) (Result, error) {
	res := Result{Path: path, Status: Created}

	if fi, err := os.Stat(path); err == nil {
		if !fi.Mode().IsRegular() {
			return res, fmt.Errorf("unable to generate %s: not a regular file", path)
		}
		if !overwrite {
			res.Status = Skipped
			return res, nil
		}
		res.Status = Overwritten
	} else if !os.IsNotExist(err) {
		return res, fmt.Errorf("unable to generate %s: %w", path, err)
	}

	t, err := template.New(tmpl).Delims("[[", "]]").ParseFS(files, "files/"+tmpl)
	if err != nil {
		return res, fmt.Errorf("unable to parse %s: %w", tmpl, err)
	}
	buf := new(bytes.Buffer)
	if err := t.Execute(buf, v); err != nil {
		return res, fmt.Errorf("unable to expand %s: %w", tmpl, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return res, fmt.Errorf("unable to generate %s: %w", path, err)
	}
	return res, nil
}
