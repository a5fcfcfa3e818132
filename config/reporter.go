package config

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"ncss/misc"
)

type ReporterConfig struct {
	Destination string `yaml:"destination" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
}

// Prepare creates empty report archive at configured destination, or in
// temporary directory if destination could not be created.
func (conf *ReporterConfig) Prepare() (*Report, error) {
	f, err := os.Create(conf.Destination)
	if err != nil {
		if f, err = os.CreateTemp("", misc.GetAppName()+"-report.*.zip"); err != nil {
			return nil, fmt.Errorf("unable to create report: %w", err)
		}
	}
	return &Report{entries: make(map[string]entry), file: f}, nil
}

// entry is either a path to file read at the end or captured data.
type entry struct {
	original string
	actual   string
	stamp    time.Time
	data     []byte
}

// contents returns entry body and its time, false when referenced file is
// gone or not a regular file.
func (e entry) contents() (io.ReadCloser, time.Time, bool) {
	if e.data != nil {
		return io.NopCloser(bytes.NewReader(e.data)), e.stamp, true
	}
	info, err := os.Stat(e.actual)
	if err != nil || !info.Mode().IsRegular() {
		return nil, time.Time{}, false
	}
	f, err := os.Open(e.actual)
	if err != nil {
		return nil, time.Time{}, false
	}
	return f, info.ModTime(), true
}

// Report collects everything needed to reproduce a problem: configuration,
// logs, processed stylesheets and their parse trees. Safe for concurrent use.
type Report struct {
	mu      sync.Mutex
	entries map[string]entry
	file    *os.File
}

// Name returns absolute name of report archive, empty when there is no report.
func (r *Report) Name() string {
	if r == nil || r.file == nil {
		return ""
	}
	name := r.file.Name()
	if abs, err := filepath.Abs(name); err == nil {
		name = abs
	}
	return name
}

// Store remembers file to be archived when report is closed. Same name could
// not be reused for a different file.
func (r *Report) Store(name, path string) {
	if r == nil {
		return
	}
	actual := path
	if abs, err := filepath.Abs(path); err == nil {
		actual = abs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.entries[name]; ok && prev.original != path {
		panic(fmt.Sprintf("report entry [%s] already refers to %s, refusing %s", name, prev.original, path))
	}
	r.entries[name] = entry{original: path, actual: actual}
}

// StoreData keeps data as it is now. Repeated names get time suffix, so the
// same stylesheet could be reported many times.
func (r *Report) StoreData(name string, data []byte) {
	if r == nil {
		return
	}
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		name = fmt.Sprintf("%s-%d", name, now.UnixNano())
	}
	r.entries[name] = entry{data: data, stamp: now}
}

// StoreCopy reads regular file immediately and keeps its contents.
func (r *Report) StoreCopy(name, path string) error {
	if r == nil {
		return nil
	}
	if info, err := os.Stat(path); err != nil {
		return err
	} else if !info.Mode().IsRegular() {
		return fmt.Errorf("unable to copy '%s' into report: not a regular file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	r.StoreData(name, data)
	return nil
}

// Close writes report archive: MANIFEST followed by all entries in name order.
func (r *Report) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	defer r.file.Close()

	r.mu.Lock()
	defer r.mu.Unlock()

	arc := zip.NewWriter(r.file)
	names := slices.Sorted(maps.Keys(r.entries))
	if err := addToArchive(arc, "MANIFEST", time.Now(), manifest(names, r.entries)); err != nil {
		arc.Close()
		return err
	}
	for _, name := range names {
		body, stamp, ok := r.entries[name].contents()
		if !ok {
			continue
		}
		err := addToArchive(arc, name, stamp, body)
		body.Close()
		if err != nil {
			arc.Close()
			return err
		}
	}
	return arc.Close()
}

func manifest(names []string, entries map[string]entry) io.Reader {
	now := time.Now()
	buf := new(bytes.Buffer)
	for _, name := range names {
		e := entries[name]
		stamp := e.stamp
		if stamp.IsZero() {
			stamp = now
		}
		fmt.Fprintf(buf, "%s\t%s\t%s : %s\n", stamp.UTC().Format(time.UnixDate), name, e.original, e.actual)
	}
	return buf
}

func addToArchive(arc *zip.Writer, name string, stamp time.Time, body io.Reader) error {
	w, err := arc.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: stamp})
	if err == nil {
		_, err = io.Copy(w, body)
	}
	return err
}
