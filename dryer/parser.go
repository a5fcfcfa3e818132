package dryer

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Line classes, checked in this order against the whole line. Order matters:
// media openings must be recognized before generic selector openings.
var (
	reMediaOpen   = regexp.MustCompile(`^\s*@media.*\{\s*$`)
	reMediaInline = regexp.MustCompile(`^\s*@media.*\{.*\}\s*$`)
	reOpen        = regexp.MustCompile(`^\s*([^{]*?)\s*\{\s*$`)
	rePlain       = regexp.MustCompile(`^[^{}]*$`)
	reClose       = regexp.MustCompile(`^([^{]*)\}\s*$`)
	reInline      = regexp.MustCompile(`^([^{]*?)\s*\{([^}]*)\}\s*$`)
)

// Parser builds nested document structure from lines of DRY stylesheet.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("parser")}
}

// scan keeps state of a single Parse call.
type scan struct {
	doc      Document
	open     []*Selector // currently open selectors, innermost last
	inMedia  bool
	strays   int
	dropped  int
	unparsed int
}

func (s *scan) depth() int {
	return len(s.open)
}

// add appends item to the document or to the innermost open selector.
func (s *scan) add(it Item) {
	if s.depth() == 0 {
		s.doc = append(s.doc, it)
		return
	}
	top := s.open[s.depth()-1]
	top.Children = append(top.Children, it)
}

// Parse converts lines (line terminators are optional and removed) into a
// document. Parse never fails: lines which cannot be classified are ignored,
// stray closing braces are discarded and selectors left open at the end of
// input are dropped together with everything they contain.
func (p *Parser) Parse(lines []string) Document {
	s := &scan{doc: make(Document, 0, len(lines))}

	for _, line := range lines {
		line = chomp(line)

		switch {
		case reMediaOpen.MatchString(line):
			// media blocks are never nested, inside of a selector they are lost
			s.inMedia = true
			if s.depth() == 0 {
				s.doc = append(s.doc, Line(line))
			} else {
				s.dropped++
			}

		case reMediaInline.MatchString(line):
			if s.depth() == 0 {
				s.doc = append(s.doc, Line(line))
			} else {
				s.dropped++
			}

		case reOpen.MatchString(line):
			m := reOpen.FindStringSubmatch(line)
			sel := &Selector{Key: strings.TrimSpace(m[1]), Multiline: true}
			s.add(sel)
			s.open = append(s.open, sel)

		case rePlain.MatchString(line):
			if s.depth() > 1 {
				// will be re-indented on output
				line = strings.TrimSpace(line)
			}
			s.add(Line(line))

		case reClose.MatchString(line):
			if s.inMedia {
				s.inMedia = false
				s.add(Line(line))
				break
			}
			if s.depth() == 0 {
				s.strays++
				break
			}
			s.open = s.open[:s.depth()-1]

		case reInline.MatchString(line):
			m := reInline.FindStringSubmatch(line)
			key := m[1]
			if s.depth() > 0 {
				key = strings.TrimSpace(key)
			}
			s.add(&Selector{Key: key, Children: []Item{Line(m[2])}})

		default:
			s.unparsed++
		}
	}

	if s.depth() > 0 {
		// outermost unclosed selector is always the last document item
		p.log.Debug("Dropping unclosed selectors", zap.Int("unclosed", s.depth()), zap.String("outermost", s.open[0].Key))
		s.doc = s.doc[:len(s.doc)-1]
	}
	if s.strays > 0 || s.dropped > 0 || s.unparsed > 0 {
		p.log.Debug("Malformed input ignored",
			zap.Int("stray closes", s.strays), zap.Int("nested media lines", s.dropped), zap.Int("unrecognized lines", s.unparsed))
	}
	return s.doc
}

// ParseString splits text into lines and parses them.
func (p *Parser) ParseString(text string) Document {
	return p.Parse(SplitLines(text))
}

// SplitLines splits text on line terminators. Text ending with a terminator
// does not produce a trailing empty line.
func SplitLines(text string) []string {
	if len(text) == 0 {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// chomp removes single trailing line terminator: "\n", "\r\n" or "\r".
func chomp(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
