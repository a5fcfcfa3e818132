package dryer

// Item is a single entry of a parsed document or of a selector body. It is
// either a Line or a *Selector.
type Item interface {
	item()
}

// Line is a piece of text which does not open a selector block: declaration,
// comment, blank line or a line of a @media block passed through verbatim.
type Line string

func (Line) item() {}

// Selector represents one "{ ... }" block of nested stylesheet.
type Selector struct {
	Key       string // Selector text as written (e.g. "#content", "div p")
	Children  []Item // Block body in source order
	Multiline bool   // false when the whole rule was written on one line
}

func (*Selector) item() {}

// HasDeclarations returns true if at least one direct child is a Line. Only
// such selectors produce a block of their own when flattened.
func (s *Selector) HasDeclarations() bool {
	for _, c := range s.Children {
		if _, ok := c.(Line); ok {
			return true
		}
	}
	return false
}

// Document is the top level sequence of lines and selectors produced by
// Parser.
type Document []Item

// Selectors returns number of selector nodes in the document at any depth.
func (d Document) Selectors() int {
	return countSelectors(d)
}

func countSelectors(items []Item) int {
	n := 0
	for _, it := range items {
		if s, ok := it.(*Selector); ok {
			n += 1 + countSelectors(s.Children)
		}
	}
	return n
}
