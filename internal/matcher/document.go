package matcher

import (
	"regexp"
	"strings"

	"github.com/joelkehle/breast-mri-extract/internal/textnorm"
)

// Section names reported in verdicts.
const (
	SectionConclusion = "conclusion"
	SectionBody       = "body"
	SectionDocument   = "document"
)

// Sentence keeps the raw text for Latin patterns and the folded text for
// Greek ones.
type Sentence struct {
	Raw    string
	Folded string
}

// Document is a parsed report.
type Document struct {
	Body       []Sentence
	Conclusion []Sentence
}

func Parse(raw string) *Document {
	sec := textnorm.SplitSections(raw)
	return &Document{
		Body:       split(sec.Body),
		Conclusion: split(sec.Conclusion),
	}
}

func split(s string) []Sentence {
	var out []Sentence
	for _, raw := range textnorm.Sentences(s) {
		out = append(out, Sentence{Raw: raw, Folded: textnorm.Fold(raw)})
	}
	return out
}

// All returns body sentences followed by conclusion sentences.
func (d *Document) All() []Sentence {
	out := make([]Sentence, 0, len(d.Body)+len(d.Conclusion))
	out = append(out, d.Body...)
	return append(out, d.Conclusion...)
}

type section struct {
	name  string
	sents []Sentence
}

// sections lists the conclusion first so that it takes priority.
func (d *Document) sections() []section {
	return []section{
		{SectionConclusion, d.Conclusion},
		{SectionBody, d.Body},
	}
}

// mask blanks every match of re, keeping byte offsets stable.
func mask(s string, res ...*regexp.Regexp) string {
	for _, re := range res {
		if re == nil {
			continue
		}
		s = re.ReplaceAllStringFunc(s, func(m string) string {
			return strings.Repeat(" ", len(m))
		})
	}
	return s
}

// word compiles a folded-text pattern anchored on a left word boundary.
// RE2's \b only understands ASCII, so Greek needs an explicit class.
func word(p string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\p{L}])(?:` + p + `)`)
}

// anyMatch reports whether any regexp matches s.
func anyMatch(s string, res ...*regexp.Regexp) bool {
	for _, re := range res {
		if re != nil && re.MatchString(s) {
			return true
		}
	}
	return false
}
