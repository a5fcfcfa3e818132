// Package debug has helpers producing human readable dumps for debug reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

const defaultStep = "  "

// TreeWriter accumulates indented tree dump, one node per line.
type TreeWriter struct {
	w    *strings.Builder
	step string
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w:    &strings.Builder{},
		step: defaultStep,
	}
}

// WithStep changes indentation used for every level of depth.
func (tw *TreeWriter) WithStep(step string) *TreeWriter {
	tw.step = step
	return tw
}

func (tw *TreeWriter) String() string {
	return tw.w.String()
}

func (tw *TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString(tw.step)
	}
}

func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// TextBlock writes label and quoted value, so whitespace of the value stays
// visible.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

func encodeText(raw string) string {
	if raw == "" {
		return `""`
	}
	return strconv.Quote(raw)
}
