package matcher

import (
	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/textnorm"
)

var (
	unclearMarginRe = word(`(?:ασαφ|ακαθοριστ|θολ|ανωμαλ|ακανονιστ)\p{L}*\s+(?:\p{L}+\s+)?ορι\p{L}*|ορι\p{L}*\s+(?:\p{L}+\s+)?(?:ασαφ|ακαθοριστ|θολ|ανωμαλ|ακανονιστ)\p{L}*|ill[- ]defined|indistinct|not\s+circumscribed|(?:irregular|spiculated)\s+margins?`)
	clearMarginRe   = word(`(?:σαφ|ευκριν|καθαρ)\p{L}*\s+(?:\p{L}+\s+)?ορι\p{L}*|ορι\p{L}*\s+(?:\p{L}+\s+)?(?:σαφ|ευκριν|καθαρ)\p{L}*|well[- ]defined|circumscribed|smooth\s+margins?`)

	heterogeneousRe = word(`ανομοιογεν\p{L}*|heterogene\p{L}*|inhomogene\p{L}*|clumped|clustered\s+ring`)
	homogeneousRe   = word(`ομοιογεν\p{L}*|homogene\p{L}*`)
	enhanceContext  = word(`ενισχυ\p{L}*|σκιαγραφ\p{L}*|προσληψ\p{L}*|enhanc\p{L}*`)

	// Sentences about something other than the lesion under measurement.
	unrelatedFindingRe = word(`λεμφαδεν\p{L}*|(?:μικρο)?αποτιτανωσ\p{L}*|κλιπ|ενθεμα\p{L}*|lymph\s+nodes?|(?:micro)?calcifications?|clips?|implants?`)
)

// scope returns the sentences describing one finding type: each sentence in
// the finding plus its immediate successor, unless the successor is negated
// or describes another finding.
func scope(sents []Sentence, in, stop func(Sentence) bool) []Sentence {
	var out []Sentence
	for i := 0; i < len(sents); i++ {
		if !in(sents[i]) {
			continue
		}
		out = append(out, sents[i])
		if i+1 < len(sents) && !in(sents[i+1]) && !stop(sents[i+1]) {
			out = append(out, sents[i+1])
			i++
		}
	}
	return out
}

func (m *Matcher) massScope(sents []Sentence) []Sentence {
	return scope(sents,
		func(s Sentence) bool { return m.massClass(s) == positive },
		func(s Sentence) bool {
			return matches(nmeCueRe, s.Folded) || matches(negationRe, s.Folded) ||
				matches(m.mass.exclusions, s.Folded) || matches(cystRe, s.Folded) || matches(unrelatedFindingRe, s.Folded)
		},
	)
}

func (m *Matcher) nmeScope(sents []Sentence) []Sentence {
	return scope(sents,
		func(s Sentence) bool { return m.nmeClass(s) == positive },
		func(s Sentence) bool {
			return m.massClass(s) == positive || matches(negationRe, s.Folded) ||
				matches(cystRe, s.Folded) || matches(unrelatedFindingRe, s.Folded)
		},
	)
}

// margins prefers ασαφή when both descriptions appear.
func margins(sents []Sentence) (any, bool) {
	var clear, unclear bool
	for _, s := range sents {
		if matches(unclearMarginRe, s.Folded) {
			unclear = true
		}
		if matches(clearMarginRe, mask(s.Folded, unclearMarginRe)) {
			clear = true
		}
	}
	switch {
	case unclear:
		return fields.MarginUnclear, true
	case clear:
		return fields.MarginClear, true
	}
	return nil, false
}

// enhancementPattern only reads sentences about enhancement and prefers
// ανομοιογενής when both descriptions appear.
func enhancementPattern(sents []Sentence) (any, bool) {
	var hom, het bool
	for _, s := range sents {
		if !matches(enhanceContext, s.Folded) {
			continue
		}
		if matches(heterogeneousRe, s.Folded) {
			het = true
		}
		if matches(homogeneousRe, s.Folded) {
			hom = true
		}
	}
	switch {
	case het:
		return fields.Heterogeneous, true
	case hom:
		return fields.Homogeneous, true
	}
	return nil, false
}

// largestSize returns the target lesion's size, or the largest one reported.
func largestSize(sents []Sentence) (any, bool) {
	var cs []candidate
	for _, s := range sents {
		target := matches(targetRe, s.Folded)
		for _, ms := range textnorm.FindSizes(s.Folded) {
			cs = append(cs, candidate{value: ms.MM, target: target})
		}
	}
	v, ok := pick(cs, larger)
	if !ok {
		return nil, false
	}
	return v, true
}

func (m *Matcher) massMargins(doc *Document) Verdict {
	return prioritized(doc, func(sents []Sentence) (any, bool) { return margins(m.massScope(sents)) })
}

func (m *Matcher) nmeMargins(doc *Document) Verdict {
	return prioritized(doc, func(sents []Sentence) (any, bool) { return margins(m.nmeScope(sents)) })
}

func (m *Matcher) massEnhancement(doc *Document) Verdict {
	return prioritized(doc, func(sents []Sentence) (any, bool) { return enhancementPattern(m.massScope(sents)) })
}

func (m *Matcher) nmeEnhancement(doc *Document) Verdict {
	return prioritized(doc, func(sents []Sentence) (any, bool) { return enhancementPattern(m.nmeScope(sents)) })
}

// Sizes are only read when the dynamic series was acquired.
func (m *Matcher) massDiameter(doc *Document) Verdict {
	if notPerformed(doc, dynamicCue) {
		return none()
	}
	return prioritized(doc, func(sents []Sentence) (any, bool) { return largestSize(m.massScope(sents)) })
}

func (m *Matcher) nmeDiameter(doc *Document) Verdict {
	if notPerformed(doc, dynamicCue) {
		return none()
	}
	return prioritized(doc, func(sents []Sentence) (any, bool) { return largestSize(m.nmeScope(sents)) })
}
