package matcher

import (
	"github.com/joelkehle/breast-mri-extract/internal/fields"
)

const findingCue = `αλλοιωσ\p{L}*|βλαβ\p{L}*|ευρημα\p{L}*|εστι(?:α|εσ|ασ|ων)(?:[^\p{L}]|$)|οζιδι\p{L}*|ινοαδενωμ\p{L}*|lesions?|findings?|focus|foci|nodules?|fibroadenoma\p{L}*`

var (
	findingRe    = word(findingCue)
	findingNegRe = negated(`(?:\p{L}+\s+)?(?:` + findingCue + `)`)

	leftRe  = word(`αριστερ\p{L}*|αρ\.|left`)
	rightRe = word(`δεξι\p{L}*|δεξ\.|right`)

	bilateralFindingRe = word(`αμφοτεροπλευρ\p{L}*|αμφοτερωθεν|αμφω|bilateral(?:ly)?|both\s+breasts|σε\s+αμφοτερουσ\s+τουσ\s+μαστουσ`)
	examBothRe         = word(`(?:εξετασ|ελεγχ|mri)\p{L}*\s+(?:\p{L}+\s+){0,2}?αμφοτερ\p{L}*\s+(?:των\s+)?μαστ\p{L}*|bilateral\s+breast\s+(?:mri|mr|exam\p{L}*)|both\s+breasts\s+(?:were\s+)?(?:examined|imaged|scanned)`)
)

type sides struct {
	left, right, both bool
}

func (s sides) any() bool { return s.left || s.right || s.both }

func (s sides) bilateral() bool { return s.both || (s.left && s.right) }

// isFinding reports whether a sentence describes a lesion. Background
// enhancement and density statements are masked out by the caller.
func (m *Matcher) isFinding(s Sentence, f string) bool {
	return m.massClass(s) == positive ||
		m.nmeClass(s) == positive ||
		classify(f, cystRe, cystNegRe) == positive ||
		(matches(findingRe, f) && !matches(findingNegRe, f))
}

// findingSides collects the breast sides that findings are localized to. A
// finding sentence without a side inherits the side of the closest preceding
// sentence that named exactly one, which covers "Left breast:" headings.
func (m *Matcher) findingSides(sents []Sentence) sides {
	var out sides
	var ctxLeft, ctxRight bool
	for _, s := range sents {
		f := mask(s.Folded, bpeRe, acrMatchRe)
		l, r := matches(leftRe, f), matches(rightRe, f)
		if m.isFinding(s, f) {
			switch {
			case matches(bilateralFindingRe, f):
				out.both = true
			case l || r:
				out.left = out.left || l
				out.right = out.right || r
			default:
				out.left = out.left || ctxLeft
				out.right = out.right || ctxRight
			}
		}
		if l || r {
			ctxLeft, ctxRight = l && !r, r && !l
		}
	}
	return out
}

// laterality is BIL when findings sit in both breasts, or when the report
// states both breasts were examined and describes at least one finding.
func (m *Matcher) laterality(doc *Document) Verdict {
	examBoth := false
	for _, s := range doc.All() {
		if matches(examBothRe, s.Folded) {
			examBoth = true
			break
		}
	}
	return prioritized(doc, func(sents []Sentence) (any, bool) {
		sd := m.findingSides(sents)
		switch {
		case sd.bilateral(), sd.any() && examBoth:
			return fields.Bilateral, true
		case sd.any():
			return fields.Unilateral, true
		}
		return nil, false
	})
}

// breast summarizes the examined side. Side-specific findings decide; an
// explicit statement that both breasts were examined is the fallback.
func (m *Matcher) breast(doc *Document) Verdict {
	v := prioritized(doc, func(sents []Sentence) (any, bool) {
		sd := m.findingSides(sents)
		switch {
		case sd.bilateral():
			return fields.SideBoth, true
		case sd.left:
			return fields.SideLeft, true
		case sd.right:
			return fields.SideRight, true
		}
		return nil, false
	})
	if v.Found {
		return v
	}
	for _, sec := range doc.sections() {
		for _, s := range sec.sents {
			if matches(examBothRe, s.Folded) {
				return found(fields.SideBoth, sec.name)
			}
		}
	}
	return none()
}
