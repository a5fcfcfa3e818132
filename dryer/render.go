package dryer

import (
	"strings"
)

// rule is a flat rule produced from a nested selector: fully combined key and
// only its own lines.
type rule struct {
	key       string
	lines     []Line
	multiline bool
}

// Render flattens document into CSS text. Declarations of nested rules are
// indented with indent spaces when the rule spans multiple lines.
func Render(doc Document, indent int) string {
	var (
		sb  strings.Builder
		pad = strings.Repeat(" ", max(indent, 0))
	)
	for _, it := range doc {
		switch it := it.(type) {
		case Line:
			sb.WriteString(string(it))
			sb.WriteByte('\n')
		case *Selector:
			own, deferred := split(it.Key, it.Children, it.Multiline)
			if it.HasDeclarations() {
				// top level lines keep their original indentation
				writeRule(&sb, own, "")
			}
			for _, r := range deferred {
				if len(r.lines) == 0 {
					// grouping only selector, nothing of its own to emit
					continue
				}
				writeRule(&sb, r, pad)
			}
		}
	}
	return sb.String()
}

// split separates children into own lines of the selector and all nested
// selectors flattened in depth first order with their keys combined.
func split(key string, children []Item, multiline bool) (rule, []rule) {
	own := rule{key: key, multiline: multiline}
	var deferred []rule
	for _, c := range children {
		switch c := c.(type) {
		case Line:
			own.lines = append(own.lines, c)
		case *Selector:
			deferred = append(deferred, setAside(combinedKey(key, c.Key), c.Children, c.Multiline)...)
		}
	}
	return own, deferred
}

// setAside returns rule for the key followed by rules for every selector
// nested in children, in the order they were declared.
func setAside(key string, children []Item, multiline bool) []rule {
	own, deferred := split(key, children, multiline)
	return append([]rule{own}, deferred...)
}

// combinedKey joins ancestor and descendant selectors. Class, pseudo-class, id
// and attribute selectors are attached to the same element, anything else
// denotes descendant.
func combinedKey(branch, leaf string) string {
	if len(leaf) > 0 && strings.ContainsRune(".:#[", rune(leaf[0])) {
		return branch + leaf
	}
	return branch + " " + leaf
}

func writeRule(sb *strings.Builder, r rule, pad string) {
	sb.WriteString(r.key)
	sb.WriteString(" {")
	if r.multiline {
		sb.WriteByte('\n')
	}
	for _, l := range r.lines {
		if r.multiline {
			sb.WriteString(pad)
			sb.WriteString(string(l))
			sb.WriteByte('\n')
			continue
		}
		sb.WriteString(string(l))
	}
	sb.WriteString("}\n")
}
