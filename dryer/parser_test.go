package dryer

import (
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestParser_Structure(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  Document
	}{
		{
			name:  "plain lines at top level",
			lines: []string{"/* a */\n", "\n", "  @import url(x.css);\n"},
			want:  Document{Line("/* a */"), Line(""), Line("  @import url(x.css);")},
		},
		{
			name:  "multiline selector",
			lines: []string{"div  {\n", "  color: red;\n", "}\n"},
			want: Document{
				&Selector{Key: "div", Multiline: true, Children: []Item{Line("  color: red;")}},
			},
		},
		{
			name:  "inline selector at top level keeps key as written",
			lines: []string{"  p { color: red; }"},
			want: Document{
				&Selector{Key: "  p", Children: []Item{Line(" color: red; ")}},
			},
		},
		{
			name:  "nested selectors",
			lines: []string{"div {", "  a: b;", "  #content {", "      c: d;  ", "    p  { e: f; }", "  }", "}"},
			want: Document{
				&Selector{Key: "div", Multiline: true, Children: []Item{
					Line("  a: b;"),
					&Selector{Key: "#content", Multiline: true, Children: []Item{
						Line("c: d;"),
						&Selector{Key: "p", Children: []Item{Line(" e: f; ")}},
					}},
				}},
			},
		},
		{
			name:  "media block kept as lines",
			lines: []string{"@media print {", "  p {x:1;}", "}"},
			want: Document{
				Line("@media print {"),
				&Selector{Key: "  p", Children: []Item{Line("x:1;")}},
				Line("}"),
			},
		},
		{
			name:  "media close inside selector does not pop",
			lines: []string{"div {", "  @media print {", "  }", "  a: b;", "}"},
			want: Document{
				&Selector{Key: "div", Multiline: true, Children: []Item{Line("  }"), Line("  a: b;")}},
			},
		},
		{
			name:  "unclosed selector is dropped",
			lines: []string{"a {x:1;}", "b {", "  c {", "    y: 2;"},
			want: Document{
				&Selector{Key: "a", Children: []Item{Line("x:1;")}},
			},
		},
		{
			name:  "no lines",
			lines: nil,
			want:  Document{},
		},
	}

	p := NewParser(zaptest.NewLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.lines)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() =\n%s\nwant\n%s", got.Dump(), tt.want.Dump())
			}
		})
	}
}

func TestSelector_HasDeclarations(t *testing.T) {
	tests := []struct {
		name string
		sel  *Selector
		want bool
	}{
		{name: "no children", sel: &Selector{Key: "a"}, want: false},
		{name: "only selectors", sel: &Selector{Key: "a", Children: []Item{&Selector{Key: "b"}}}, want: false},
		{name: "empty line counts", sel: &Selector{Key: "a", Children: []Item{Line("")}}, want: true},
		{name: "mixed", sel: &Selector{Key: "a", Children: []Item{&Selector{Key: "b"}, Line("x: y;")}}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sel.HasDeclarations(); got != tt.want {
				t.Errorf("HasDeclarations() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDocument_Selectors(t *testing.T) {
	doc := NewParser(nil).ParseString("a {\n  b {\n    c { x: y; }\n  }\n}\nd { z: 1; }\ntext\n")
	if got := doc.Selectors(); got != 4 {
		t.Errorf("Selectors() = %d, want 4", got)
	}
}

func TestCombinedKey(t *testing.T) {
	tests := []struct {
		branch, leaf, want string
	}{
		{"div", "p", "div p"},
		{"div", ".note", "div.note"},
		{"a", ":hover", "a:hover"},
		{"a", "::after", "a::after"},
		{"div", "#main", "div#main"},
		{"input", "[type=text]", "input[type=text]"},
		{"div p", "> span", "div p > span"},
		{"div", "*", "div *"},
	}
	for _, tt := range tests {
		if got := combinedKey(tt.branch, tt.leaf); got != tt.want {
			t.Errorf("combinedKey(%q, %q) = %q, want %q", tt.branch, tt.leaf, got, tt.want)
		}
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a\n"}},
		{"a\nb", []string{"a\n", "b"}},
		{"a\r\n\r\nb\n", []string{"a\r\n", "\r\n", "b\n"}},
		{"\n", []string{"\n"}},
	}
	for _, tt := range tests {
		if got := SplitLines(tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitLines(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
