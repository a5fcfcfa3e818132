package dryer_test

import (
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"ncss/dryer"
)

func TestProcess_RoundTrip(t *testing.T) {
	input := `div {
  font-family: Verdana;
  #content {
    background-color: green;
    p { color: red; }
  }
}
`
	want := `div {
  font-family: Verdana;
}
div#content {
  background-color: green;
}
div#content p { color: red; }
`
	if got := dryer.Process(input, dryer.DefaultIndent); got != want {
		t.Errorf("Process() =\n%s\nwant\n%s", got, want)
	}
}

func TestProcess(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		indent int
		want   string
	}{
		{
			name:   "empty input",
			input:  "",
			indent: 2,
			want:   "",
		},
		{
			name:   "depth first order",
			input:  "div {\n  color:red;\n  #a {\n    x:1;\n  }\n  #b {\n    y:2;\n  }\n}\n",
			indent: 2,
			want:   "div {\n  color:red;\n}\ndiv#a {\n  x:1;\n}\ndiv#b {\n  y:2;\n}\n",
		},
		{
			name:   "inline children after ancestor",
			input:  "div {\n  color:red;\n  #a { x:1; }\n  #b { y:2; }\n}\n",
			indent: 2,
			want:   "div {\n  color:red;\n}\ndiv#a { x:1; }\ndiv#b { y:2; }\n",
		},
		{
			name:   "arbitrary depth without wrappers",
			input:  "div {\n  #a {\n    #b {\n      z:3;\n    }\n  }\n}\n",
			indent: 2,
			want:   "div#a#b {\n  z:3;\n}\n",
		},
		{
			name:   "descendants at arbitrary depth",
			input:  "div {\n  ul {\n    li {\n      z:3;\n    }\n  }\n}\n",
			indent: 2,
			want:   "div ul li {\n  z:3;\n}\n",
		},
		{
			name:   "explicitly empty nested block is not emitted",
			input:  "div {\n  color: red;\n  p {\n  }\n}\n",
			indent: 2,
			want:   "div {\n  color: red;\n}\n",
		},
		{
			name:   "declarations after nested selector stay with ancestor",
			input:  "ul {\n  li {\n    margin: 0;\n  }\n  padding: 0;\n}\n",
			indent: 2,
			want:   "ul {\n  padding: 0;\n}\nul li {\n  margin: 0;\n}\n",
		},
		{
			name:   "compound and descendant keys",
			input:  "a {\n  :hover { color: red; }\n  .x { y: 1; }\n  #id { v: 0; }\n  [href] { z: 2; }\n  span { w: 3; }\n}\n",
			indent: 2,
			want:   "a:hover { color: red; }\na.x { y: 1; }\na#id { v: 0; }\na[href] { z: 2; }\na span { w: 3; }\n",
		},
		{
			name:   "compound keys are combined transitively",
			input:  "nav {\n  ul {\n    .active {\n      a { color: red; }\n    }\n  }\n}\n",
			indent: 2,
			want:   "nav ul.active a { color: red; }\n",
		},
		{
			name:   "inline rule keeps its formatting",
			input:  "p{color:blue;}\n",
			indent: 2,
			want:   "p {color:blue;}\n",
		},
		{
			name:   "inline rule keeps leading whitespace at top level",
			input:  "  p {x:1;}\n",
			indent: 2,
			want:   "  p {x:1;}\n",
		},
		{
			name:   "empty inline rule",
			input:  "a {}\n",
			indent: 2,
			want:   "a {}\n",
		},
		{
			name:   "configured indent width",
			input:  "ul {\n  li {\n    margin: 0;\n    padding: 0;\n  }\n}\n",
			indent: 4,
			want:   "ul li {\n    margin: 0;\n    padding: 0;\n}\n",
		},
		{
			name:   "zero indent",
			input:  "ul {\n  li {\n    margin: 0;\n  }\n}\n",
			indent: 0,
			want:   "ul li {\nmargin: 0;\n}\n",
		},
		{
			name:   "first level lines verbatim, deeper lines re-indented",
			input:  "div {\n\tcolor: red;   \n  p {\n\t\tmargin: 0;   \n  }\n}\n",
			indent: 2,
			want:   "div {\n\tcolor: red;   \n}\ndiv p {\n  margin: 0;\n}\n",
		},
		{
			name:   "top level plain lines pass through",
			input:  "@charset \"utf-8\";\n/* comment */\n\n@import url(base.css);\n",
			indent: 2,
			want:   "@charset \"utf-8\";\n/* comment */\n\n@import url(base.css);\n",
		},
		{
			name:   "windows line endings",
			input:  "a {\r\n  b: c;\r\n  i {\r\n    d: e;\r\n  }\r\n}\r\n",
			indent: 2,
			want:   "a {\n  b: c;\n}\na i {\n  d: e;\n}\n",
		},
		{
			name:   "missing final line terminator",
			input:  "a {\n  b: c;\n}",
			indent: 2,
			want:   "a {\n  b: c;\n}\n",
		},
		{
			name:   "grouped selectors are combined as text",
			input:  "h1, h2 {\n  em { color: red; }\n}\n",
			indent: 2,
			want:   "h1, h2 em { color: red; }\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dryer.Process(tt.input, tt.indent); got != tt.want {
				t.Errorf("Process() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProcess_MediaPassthrough(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "multiline media block",
			input: "@media screen, projection {\n  div {font-size:100%;}\n  p { margin: 0; }\n}\n",
		},
		{
			name:  "inline media block",
			input: "@media print { body { color: black; } }\n",
		},
		{
			name:  "media block between rules",
			input: "body {\n  margin: 0;\n}\n@media print {\n  body { color: black; }\n}\nh1 { font-size: 2em; }\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dryer.Process(tt.input, dryer.DefaultIndent); got != tt.input {
				t.Errorf("Process() = %q, want unchanged %q", got, tt.input)
			}
		})
	}
}

func TestProcess_MediaWithMultilineRule(t *testing.T) {
	// media lines are not scoped, the first closing brace inside of the block
	// ends it and rule inside is handled as an ordinary top level selector
	input := "@media screen {\n  div {\n    a: b;\n  }\n}\n"
	want := "@media screen {\ndiv {\n    a: b;\n  }\n}\n"
	if got := dryer.Process(input, dryer.DefaultIndent); got != want {
		t.Errorf("Process() = %q, want %q", got, want)
	}
}

func TestProcess_FlatInputIsFixedPoint(t *testing.T) {
	inputs := []string{
		"/* header */\nbody {\n  margin: 0;\n}\nh1 { font-size: 2em; }\n\n@media print {\n  body { color: black; }\n}\n",
		"p{color:blue;}\n",
		"a:hover { color: red; }\n  td{x:1}\n",
	}
	for _, in := range inputs {
		once := dryer.Process(in, dryer.DefaultIndent)
		twice := dryer.Process(once, dryer.DefaultIndent)
		if once != twice {
			t.Errorf("Process() is not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestProcess_MalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "stray closing brace is ignored",
			input: "}\np { a: b; }\n  }\n",
			want:  "p { a: b; }\n",
		},
		{
			name:  "unclosed selector loses its content",
			input: "p { a: b; }\ndiv {\n  color: red;\n  span {\n    x: y;\n",
			want:  "p { a: b; }\n",
		},
		{
			name:  "content after unclosed selector is lost too",
			input: "div {\n  color: red;\np { a: b; }\n",
			want:  "",
		},
		{
			name:  "unclosed nested selector drops its ancestor",
			input: "a { b: c; }\ndiv {\n  span {\n    x: y;\n}\n",
			want:  "a { b: c; }\n",
		},
		{
			name:  "media block nested in selector is dropped",
			input: "div {\n  @media print { color: red; }\n  margin: 0;\n}\n",
			want:  "div {\n  margin: 0;\n}\n",
		},
		{
			name:  "unrecognized line is ignored",
			input: "a { b { c } }\np { a: b; }\n",
			want:  "p { a: b; }\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dryer.Process(tt.input, dryer.DefaultIndent); got != tt.want {
				t.Errorf("Process() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProcessor(t *testing.T) {
	p := dryer.New(zaptest.NewLogger(t), 4)
	if p.Indent() != 4 {
		t.Errorf("Indent() = %d, want 4", p.Indent())
	}

	got, err := p.ProcessReader(strings.NewReader("ul {\n  li {\n    margin: 0;\n  }\n}\n"))
	if err != nil {
		t.Fatalf("ProcessReader() error = %v", err)
	}
	if want := "ul li {\n    margin: 0;\n}\n"; got != want {
		t.Errorf("ProcessReader() = %q, want %q", got, want)
	}

	// malformed input is logged, not reported
	if got := p.Process("div {\n  color: red;\n"); got != "" {
		t.Errorf("Process() = %q, want empty", got)
	}
}

func TestProcessor_LoggerNames(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	p := dryer.New(zap.New(core), dryer.DefaultIndent)
	p.Process("div {\n  color: red;\n")

	dropped := logs.FilterMessage("Dropping unclosed selectors").All()
	if len(dropped) != 1 {
		t.Fatalf("unclosed selectors were not logged: %v", logs.All())
	}
	if got := dropped[0].LoggerName; got != "dryer.parser" {
		t.Errorf("parser logger name = %q, want %q", got, "dryer.parser")
	}
	flattened := logs.FilterMessage("Stylesheet flattened").All()
	if len(flattened) != 1 || flattened[0].LoggerName != "dryer" {
		t.Errorf("processor log entries = %v, want one from \"dryer\"", flattened)
	}
}

func TestProcessor_NegativeIndent(t *testing.T) {
	p := dryer.New(nil, -1)
	if p.Indent() != dryer.DefaultIndent {
		t.Errorf("Indent() = %d, want %d", p.Indent(), dryer.DefaultIndent)
	}
}

func TestProcessor_Concurrent(t *testing.T) {
	p := dryer.New(nil, dryer.DefaultIndent)
	input := "div {\n  a: b;\n  p {\n    c: d;\n  }\n}\n"
	want := "div {\n  a: b;\n}\ndiv p {\n  c: d;\n}\n"

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.Process(input)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if got != want {
			t.Errorf("goroutine %d: Process() = %q, want %q", i, got, want)
		}
	}
}

func TestDocument_Dump(t *testing.T) {
	doc := dryer.NewParser(nil).ParseString("div {\n  a: b;\n  p { c: d; }\n}\n")
	want := `document: 1 items
  selector "div" (block, 2 children)
    line: "  a: b;"
    selector "p" (inline, 1 children)
      line: " c: d; "
`
	if got := doc.Dump(); got != want {
		t.Errorf("Dump() =\n%s\nwant\n%s", got, want)
	}
}
