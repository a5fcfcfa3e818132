// Package dryer converts nested ("DRY") stylesheets into flat CSS.
//
// Selectors may be nested inside of other selectors to an arbitrary level:
//
//	div {
//	  font-family: Verdana;
//	  #content {
//	    background-color: green;
//	    p { color: red; }
//	  }
//	}
//
// is converted into
//
//	div {
//	  font-family: Verdana;
//	}
//	div#content {
//	  background-color: green;
//	}
//	div#content p { color: red; }
//
// Nested selector starting with ".", ":", "#" or "[" is attached to its
// parent (div#content, a:hover), any other one denotes descendant (div p).
//
// Original whitespace is preserved as much as possible and top level @media
// lines are passed through as written. Conversion never fails, malformed
// nesting results in parts of the input silently missing from the output.
package dryer

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"ncss/utils/debug"
)

// DefaultIndent is used for declarations of flattened nested rules.
const DefaultIndent = 2

// Process converts nested stylesheet text into flat CSS.
func Process(text string, indent int) string {
	return Render(NewParser(nil).ParseString(text), indent)
}

// Processor is Process with logging, safe for concurrent use.
type Processor struct {
	log    *zap.Logger
	parser *Parser
	indent int
}

// New creates processor which indents nested declarations with indent spaces.
func New(log *zap.Logger, indent int) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	if indent < 0 {
		indent = DefaultIndent
	}
	log = log.Named("dryer")
	return &Processor{log: log, parser: NewParser(log), indent: indent}
}

// Indent returns indentation width used by processor.
func (p *Processor) Indent() int {
	return p.indent
}

// Parse parses text without rendering, mostly useful for debugging.
func (p *Processor) Parse(text string) Document {
	return p.parser.ParseString(text)
}

// Process converts nested stylesheet text into flat CSS.
func (p *Processor) Process(text string) string {
	start := time.Now()
	doc := p.parser.ParseString(text)
	out := Render(doc, p.indent)
	p.log.Debug("Stylesheet flattened",
		zap.Int("in", len(text)), zap.Int("out", len(out)), zap.Int("selectors", doc.Selectors()), zap.Duration("elapsed", time.Since(start)))
	return out
}

// ProcessReader reads complete stylesheet from r and converts it.
func (p *Processor) ProcessReader(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("unable to read stylesheet: %w", err)
	}
	return p.Process(string(data)), nil
}

// Dump returns textual representation of document tree.
func (d Document) Dump() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "document: %d items", len(d))
	dumpItems(tw, 1, d)
	return tw.String()
}

func dumpItems(tw *debug.TreeWriter, depth int, items []Item) {
	for _, it := range items {
		switch it := it.(type) {
		case Line:
			tw.TextBlock(depth, "line", string(it))
		case *Selector:
			kind := "inline"
			if it.Multiline {
				kind = "block"
			}
			tw.Line(depth, "selector %q (%s, %d children)", it.Key, kind, len(it.Children))
			dumpItems(tw, depth+1, it.Children)
		}
	}
}
