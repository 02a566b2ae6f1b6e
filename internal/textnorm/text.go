package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var conclusionHeadingRe = regexp.MustCompile(`(?im)(?:^|[^\p{L}])(συμπ[εέ]ρασμ\p{L}*|σ[υύ]νοψη|γνωμ[αά]τευση|conclusions?|impressions?|summary)\s*(?::|$)`)

// Sections is a report split at its conclusion heading. Conclusion is empty
// when the report has no such heading.
type Sections struct {
	Body       string
	Conclusion string
}

// SplitSections cuts raw report text at the first conclusion/summary
// heading.
func SplitSections(raw string) Sections {
	loc := conclusionHeadingRe.FindStringSubmatchIndex(raw)
	if loc == nil {
		return Sections{Body: raw}
	}
	return Sections{Body: raw[:loc[2]], Conclusion: raw[loc[2]:]}
}

// Sentences splits text on line breaks, on ';', and on '.', '!' or '?' when
// the next word starts with a capital letter. Measurement abbreviations such
// as "χιλ." followed by lowercase text stay in one sentence.
func Sentences(s string) []string {
	var out []string
	start := 0
	emit := func(end int) {
		if seg := strings.TrimSpace(s[start:end]); seg != "" {
			out = append(out, seg)
		}
		start = end
	}
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		next := i + size
		switch r {
		case '\n', ';':
			emit(next)
		case '.', '!', '?':
			if next >= len(s) || capitalFollows(s[next:]) {
				emit(next)
			}
		}
		i = next
	}
	emit(len(s))
	return out
}

func capitalFollows(s string) bool {
	trimmed := strings.TrimLeftFunc(s, unicode.IsSpace)
	if len(trimmed) == len(s) {
		return false
	}
	if trimmed == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(trimmed)
	return unicode.IsUpper(r)
}
