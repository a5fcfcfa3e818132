// Package css checks that produced stylesheets are plain flat CSS.
package css

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Result describes flat stylesheet as seen by CSS parser.
type Result struct {
	Rules       int      // Rulesets, including ones inside of @media blocks
	MediaBlocks int      // @media blocks
	AtRules     int      // Other at-rules (@import, @charset, @font-face...)
	Selectors   []string // Selectors of all rulesets in source order
	Warnings    []string // Anything which does not look like flat CSS
}

// OK returns true when no warnings were produced.
func (r *Result) OK() bool {
	return len(r.Warnings) == 0
}

// Verifier tokenizes CSS and reports anything nested or unparsable.
type Verifier struct {
	log *zap.Logger
}

// NewVerifier creates a new CSS verifier.
func NewVerifier(log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{log: log.Named("css-verify")}
}

// Verify parses CSS text. The optional source parameter identifies what's being
// verified (for debug logging).
func (v *Verifier) Verify(data []byte, source ...string) *Result {
	res := &Result{
		Selectors: make([]string, 0),
		Warnings:  make([]string, 0),
	}
	name := ""
	if len(source) > 0 {
		name = source[0]
	}

	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)

	var (
		rulesets  int      // currently open rulesets
		atBlocks  []string // currently open at-rule blocks
		qualified []string // selector parts preceding ruleset (a, b {)
	)

	for {
		gt, tt, tdata := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				res.Warnings = append(res.Warnings, fmt.Sprintf("parse error: %v", err))
			}
			v.log.Debug("CSS verified", zap.String("source", name),
				zap.Int("rules", res.Rules), zap.Int("media", res.MediaBlocks), zap.Int("warnings", len(res.Warnings)))
			return res

		case css.BeginAtRuleGrammar:
			at := strings.ToLower(string(tdata))
			if at == "@media" {
				res.MediaBlocks++
			} else {
				res.AtRules++
			}
			if rulesets > 0 {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s block nested in ruleset", at))
			}
			atBlocks = append(atBlocks, at)

		case css.EndAtRuleGrammar:
			if len(atBlocks) == 0 {
				break
			}
			if tt == css.ErrorToken {
				res.Warnings = append(res.Warnings, fmt.Sprintf("unexpected end of stylesheet, %s block is not closed", atBlocks[len(atBlocks)-1]))
			}
			atBlocks = atBlocks[:len(atBlocks)-1]

		case css.AtRuleGrammar:
			res.AtRules++

		case css.QualifiedRuleGrammar:
			qualified = append(qualified, selectorText(tdata, parser.Values()))

		case css.BeginRulesetGrammar:
			sel := strings.Join(append(qualified, selectorText(tdata, parser.Values())), ", ")
			qualified = qualified[:0]
			res.Rules++
			res.Selectors = append(res.Selectors, sel)
			if rulesets > 0 {
				res.Warnings = append(res.Warnings, fmt.Sprintf("nested ruleset: %s", sel))
			}
			rulesets++

		case css.EndRulesetGrammar:
			// parser closes blocks left open at the end of input by itself
			if tt == css.ErrorToken {
				res.Warnings = append(res.Warnings, "unexpected end of stylesheet, ruleset is not closed")
			}
			if rulesets > 0 {
				rulesets--
			}
		}
	}
}

// selectorText builds selector string from token data, whitespace is
// normalized to single spaces.
func selectorText(data []byte, values []css.Token) string {
	var sb strings.Builder
	sb.Write(data)
	for _, t := range values {
		if t.TokenType == css.WhitespaceToken {
			sb.WriteByte(' ')
			continue
		}
		sb.Write(t.Data)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
