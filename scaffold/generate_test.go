package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"ncss/config"
	"ncss/dryer"
	"ncss/templates"
)

func testTemplates() *config.TemplatesConfig {
	return &config.TemplatesConfig{Extension: ".ncss", PartialPrefix: "_", LeftDelim: "{{", RightDelim: "}}"}
}

func statuses(results []Result) map[string]Status {
	m := make(map[string]Status, len(results))
	for _, r := range results {
		m[filepath.Base(r.Path)] = r.Status
	}
	return m
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	log := zaptest.NewLogger(t)

	results, err := Generate(dir, Options{Name: "Admin Panel", Templates: testTemplates()}, log)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	got := statuses(results)
	want := map[string]Status{"test.css.ncss": Created, "_foo.css.ncss": Created, "admin-panel.css.ncss": Created}
	if len(got) != len(want) {
		t.Fatalf("Generate() = %v, want %v", got, want)
	}
	for name, s := range want {
		if got[name] != s {
			t.Errorf("%s: status = %v, want %v", name, got[name], s)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, Dir, "admin-panel.css.ncss"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "/* Admin Panel */\n") {
		t.Errorf("named stylesheet = %q", data)
	}
}

func TestGenerate_RendersThroughTemplates(t *testing.T) {
	dir := t.TempDir()
	log := zaptest.NewLogger(t)

	if _, err := Generate(dir, Options{Templates: testTemplates()}, log); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	engine, err := templates.NewEngine(filepath.Join(dir, Dir), testTemplates(), dryer.New(log, dryer.DefaultIndent), log)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	got, err := engine.Render("test.css", nil, nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := `/* Nested stylesheet, served as flat CSS */
body {
  font-family: Verdana, sans-serif;
}
body div#content {
  background-color: white;
}
body div#content p { color: #c00; }
body div.foo {
  margin: 0 auto;
}
body div.foo a {
  color: blue;
}
body div.foo a:hover { text-decoration: underline; }
`
	if got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestGenerate_CustomTemplateSettings(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.TemplatesConfig{Extension: ".dry", PartialPrefix: "part-", LeftDelim: "<%", RightDelim: "%>"}

	if _, err := Generate(dir, Options{Templates: cfg}, nil); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, Dir, "test.css.dry"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `<% template "part-foo.css" . -%>`) {
		t.Errorf("test stylesheet does not use custom settings:\n%s", data)
	}
	if _, err := os.Stat(filepath.Join(dir, Dir, "part-foo.css.dry")); err != nil {
		t.Errorf("partial is missing: %v", err)
	}
}

func TestGenerate_Collisions(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, Dir, "test.css.ncss")
	if err := os.MkdirAll(filepath.Dir(existing), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("mine"), 0644); err != nil {
		t.Fatal(err)
	}

	results, err := Generate(dir, Options{Templates: testTemplates()}, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if s := statuses(results)["test.css.ncss"]; s != Skipped {
		t.Errorf("status = %v, want skipped", s)
	}
	if data, _ := os.ReadFile(existing); string(data) != "mine" {
		t.Errorf("existing file was modified: %q", data)
	}

	results, err = Generate(dir, Options{Overwrite: true, Templates: testTemplates()}, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	got := statuses(results)
	if got["test.css.ncss"] != Overwritten || got["_foo.css.ncss"] != Overwritten {
		t.Errorf("statuses = %v, want all overwritten", got)
	}
	if data, _ := os.ReadFile(existing); string(data) == "mine" {
		t.Error("existing file was not overwritten")
	}
}

func TestGenerate_Errors(t *testing.T) {
	dir := t.TempDir()
	// directories in place of files
	for _, name := range []string{"test.css.ncss", "_foo.css.ncss"} {
		if err := os.MkdirAll(filepath.Join(dir, Dir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}

	results, err := Generate(dir, Options{Name: "extra", Templates: testTemplates()}, nil)
	if err == nil {
		t.Fatal("Generate() expected error")
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Errorf("errors = %d, want 2: %v", n, err)
	}
	if len(results) != 1 || filepath.Base(results[0].Path) != "extra.css.ncss" {
		t.Errorf("results = %v, want only extra.css.ncss", results)
	}
}

func TestGenerate_BadDestination(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Generate(file, Options{Templates: testTemplates()}, nil); err == nil {
		t.Error("Generate() expected error")
	}
}

func TestStatus_String(t *testing.T) {
	for s, want := range map[Status]string{Created: "created", Skipped: "skipped", Overwritten: "overwritten", Status(7): "Status(7)"} {
		if got := s.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
