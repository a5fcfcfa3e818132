// Package server serves flattened stylesheets over http.
//
// Middleware intercepts requests for "/<url>/name.css" and answers them with
// flattened content of "<path>/name.ncss" (or "<path>/name.css.ncss"), any
// other request is passed to the next handler.
package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ncss/config"
	"ncss/dryer"
	"ncss/templates"
)

// Middleware flattens nested stylesheets on request.
type Middleware struct {
	log    *zap.Logger
	rpt    *config.Report
	marker string // "/<url>/"
	root   string
	ext    string
	prefix string
	proc   *dryer.Processor
	engine *templates.Engine
}

// New prepares middleware from configuration. When templates are requested
// stylesheet directory must exist.
func New(cfg *config.Config, rpt *config.Report, log *zap.Logger) (*Middleware, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("server")

	m := &Middleware{
		log:    log,
		rpt:    rpt,
		marker: "/" + strings.Trim(cfg.Server.URL, "/") + "/",
		root:   cfg.Server.Path,
		ext:    cfg.Templates.Extension,
		prefix: cfg.Templates.PartialPrefix,
		proc:   dryer.New(log, cfg.Processing.Indent),
	}
	if cfg.Server.Templates {
		engine, err := templates.NewEngine(m.root, &cfg.Templates, m.proc, log)
		if err != nil {
			return nil, fmt.Errorf("unable to prepare templates: %w", err)
		}
		m.engine = engine
	} else if fi, err := os.Stat(m.root); err != nil || !fi.IsDir() {
		log.Warn("Stylesheets directory is not accessible, all requests will be passed through", zap.String("path", m.root))
	}
	return m, nil
}

// match returns stylesheet path relative to root without ".css" extension,
// false if request should not be handled.
func (m *Middleware) match(urlPath string) (string, bool) {
	i := strings.Index(urlPath, m.marker)
	if i < 0 {
		return "", false
	}
	rel := urlPath[i+len(m.marker):]
	if !strings.HasSuffix(rel, ".css") || len(rel) == len(".css") {
		return "", false
	}
	if slices.Contains(strings.Split(rel, "/"), "..") || strings.Contains(rel, `\`) {
		// never leave stylesheets directory
		return "", false
	}
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	if strings.HasPrefix(path.Base(rel), m.prefix) {
		return "", false
	}
	return strings.TrimSuffix(rel, ".css"), true
}

// locate finds stylesheet file for the stem and returns its path and template
// name.
func (m *Middleware) locate(stem string) (string, string, bool) {
	for _, name := range []string{stem, stem + ".css"} {
		file := filepath.Join(m.root, filepath.FromSlash(name)+m.ext)
		if fi, err := os.Stat(file); err == nil && fi.Mode().IsRegular() {
			return file, name, true
		}
	}
	return "", "", false
}

func (m *Middleware) render(file, name string, params map[string]string) (string, error) {
	if m.engine != nil {
		return m.engine.Render(name, params, nil)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return m.proc.Process(strings.TrimPrefix(string(data), "\uFEFF")), nil
}

// Handler wraps next handler. Only GET and HEAD requests are served.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		stem, ok := m.match(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		id := uuid.NewString()
		log := m.log.With(zap.String("request", id), zap.String("path", r.URL.Path))

		file, name, ok := m.locate(stem)
		if !ok {
			log.Debug("Stylesheet not found, passing through")
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		body, err := m.render(file, name, queryParams(r))
		if err != nil {
			log.Error("Unable to flatten stylesheet", zap.String("file", file), zap.Error(err))
			w.Header().Set("X-Request-Id", id)
			http.Error(w, "unable to flatten stylesheet", http.StatusInternalServerError)
			return
		}

		h := w.Header()
		h.Set("Content-Type", "text/css")
		h.Set("Content-Length", strconv.Itoa(len(body)))
		h.Set("X-Request-Id", id)
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			if _, err := io.WriteString(w, body); err != nil {
				log.Warn("Unable to write response", zap.Error(err))
				return
			}
		}
		log.Info("Stylesheet served", zap.String("file", file), zap.Int("size", len(body)), zap.Duration("elapsed", time.Since(start)))

		if m.rpt != nil {
			m.rpt.StoreData("served/"+stem+".css", []byte(body))
		}
	})
}

// queryParams keeps first value of every query parameter.
func queryParams(r *http.Request) map[string]string {
	q := r.URL.Query()
	if len(q) == 0 {
		return nil
	}
	params := make(map[string]string, len(q))
	for k, v := range q {
		params[k] = v[0]
	}
	return params
}
