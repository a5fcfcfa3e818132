// Package templates renders nested stylesheets written as Go templates and
// flattens the result.
//
// All files with configured extension under root directory form a single
// template set. Template name is a path relative to root (always with forward
// slashes) without the extension, so "site.css.ncss" is "site.css" and
// "parts/_colors.ncss" is "parts/_colors". Files which base name starts with
// partial prefix are partials: they could be included by other templates
//
//	{{ template "_colors" . }}
//
// but never rendered directly.
package templates

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"ncss/config"
	"ncss/dryer"
)

var (
	ErrNotFound = errors.New("template not found")
	ErrPartial  = errors.New("partial template could not be rendered directly")
)

// Values is a struct that holds variables we make available for template
// expansion. Data is whatever caller wants to pass along.
type Values struct {
	Name   string            // Name of the rendered template
	Indent int               // Indentation used for flattened rules
	Params map[string]string // Request or command line parameters
	Data   any
}

// Engine loads templates from disk on every render, so changes are picked up
// without restart. Engine is safe for concurrent use.
type Engine struct {
	log    *zap.Logger
	proc   *dryer.Processor
	root   string
	ext    string
	prefix string
	left   string
	right  string
}

// NewEngine creates template engine for the directory.
func NewEngine(root string, cfg *config.TemplatesConfig, proc *dryer.Processor, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if proc == nil {
		proc = dryer.New(log, dryer.DefaultIndent)
	}
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("unable to access templates directory: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("templates root is not a directory: %s", root)
	}
	return &Engine{
		log:    log.Named("templates"),
		proc:   proc,
		root:   root,
		ext:    cfg.Extension,
		prefix: cfg.PartialPrefix,
		left:   cfg.LeftDelim,
		right:  cfg.RightDelim,
	}, nil
}

// Root returns templates directory.
func (e *Engine) Root() string {
	return e.root
}

// IsPartial checks if name refers to partial template.
func (e *Engine) IsPartial(name string) bool {
	return strings.HasPrefix(path.Base(name), e.prefix)
}

// NameFor returns template name for file path relative to root, false if file
// is not a template.
func (e *Engine) NameFor(rel string) (string, bool) {
	rel = filepath.ToSlash(rel)
	if !strings.HasSuffix(rel, e.ext) || len(rel) == len(e.ext) {
		return "", false
	}
	return strings.TrimSuffix(rel, e.ext), true
}

// Has checks if template with the name exists on disk.
func (e *Engine) Has(name string) bool {
	fi, err := os.Stat(filepath.Join(e.root, filepath.FromSlash(name)+e.ext))
	return err == nil && fi.Mode().IsRegular()
}

// Names returns all renderable (not partial) template names in natural order.
func (e *Engine) Names() ([]string, error) {
	var names []string
	err := e.walk(func(name, _ string) error {
		if !e.IsPartial(name) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(names, func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return 0
	})
	return names, nil
}

func (e *Engine) walk(fn func(name, file string) error) error {
	return filepath.WalkDir(e.root, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(e.root, file)
		if err != nil {
			return err
		}
		name, ok := e.NameFor(rel)
		if !ok {
			return nil
		}
		return fn(name, file)
	})
}

// load parses complete template set.
func (e *Engine) load() (*template.Template, error) {
	set := template.New("").Delims(e.left, e.right).Funcs(sprig.FuncMap())
	count := 0
	err := e.walk(func(name, file string) error {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		if _, err := set.New(name).Parse(string(data)); err != nil {
			return fmt.Errorf("unable to parse template %s: %w", name, err)
		}
		count++
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug("Templates loaded", zap.String("root", e.root), zap.Int("count", count))
	return set, nil
}

// Execute expands template without flattening.
func (e *Engine) Execute(name string, params map[string]string, data any) (string, error) {
	if e.IsPartial(name) {
		return "", fmt.Errorf("%w: %s", ErrPartial, name)
	}
	set, err := e.load()
	if err != nil {
		return "", err
	}
	tmpl := set.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	values := Values{
		Name:   name,
		Indent: e.proc.Indent(),
		Params: params,
		Data:   data,
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", fmt.Errorf("unable to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// Render expands template and flattens the result.
func (e *Engine) Render(name string, params map[string]string, data any) (string, error) {
	text, err := e.Execute(name, params, data)
	if err != nil {
		return "", err
	}
	return e.proc.Process(text), nil
}
