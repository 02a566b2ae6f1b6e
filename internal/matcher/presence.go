package matcher

import (
	"regexp"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/textnorm"
)

const negWords = `δεν\s+\p{L}+|απουσια|χωρισ|ουδεμια|ουτε|no|not|without|absence\s+of|negative\s+for`

// postNegWords close a statement that names the finding first: "μάζα δεν
// παρατηρείται", "mass: not seen", "masses: none".
const postNegWords = `δεν\s+(?:παρατηρ|αναγνωρ|απεικον|ανευρ|ανιχνευ|διαπιστ|υπαρχ|φαιν|εντοπ|αναδεικν)\p{L}*|ουδεμια|αρνητικ\p{L}*|απουσιαζ\p{L}*|not\s+(?:seen|identified|detected|present|observed|demonstrated|visualized)|none|absent`

// negatedPattern matches a negation word followed, within three words, by
// cue, or cue followed within two words by a closing negation.
func negatedPattern(pre, cue, post string) string {
	return `(?:` + pre + `)(?:\s+\p{L}+){0,3}?\s+(?:` + cue + `)` +
		`|(?:` + cue + `)[\s:\-]*(?:\p{L}+[\s:\-]+){0,2}?(?:` + post + `)(?:[^\p{L}]|$)`
}

func negated(cue string) *regexp.Regexp {
	return word(negatedPattern(negWords, cue, postNegWords))
}

const (
	nmeCue  = `μη[\s-]*μαζομορφ\p{L}*|non[- ]?mass(?:[- ]like)?\s+enhancement|nme(?:[^\p{L}]|$)`
	areaCue = `περιοχ(?:η|εσ|ησ|ων)\s+(?:\p{L}+\s+){0,2}?(?:ενισχυσ|προσληψ)\p{L}*|(?:areas?|regions?)\s+of\s+(?:\p{L}+\s+)?enhancement`

	linearWords    = `γραμμοειδ\p{L}*|δικην\s+πορου|πορογεν\p{L}*|linear|ductal`
	segmentalWords = `τμηματικ\p{L}*|segmental`
	regionalWords  = `περιοχικ\p{L}*|regional`
	bilateralWords = `αμφοτεροπλευρ\p{L}*|αμφοτερωθεν|bilateral`

	distWords = linearWords + `|` + segmentalWords + `|` + regionalWords + `|κατανομ\p{L}*|distribution`
)

var (
	bpeRe = word(`ενισχυσ\p{L}*\s+(?:του\s+)?(?:υποστρωματοσ\s+)?(?:του\s+)?(?:μαστικου\s+)?παρεγχυματ\p{L}*|(?:παρασκηνιακ|υποστρωματικ)\p{L}*\s+ενισχυσ\p{L}*|background\s+(?:parenchymal\s+)?enhancement|bpe(?:[^\p{L}]|$)`)

	nmeCueRe     = word(nmeCue)
	nmePhraseRe  = word(`μη[\s-]*μαζομορφ\p{L}*(?:\s+\p{L}+)?\s+(?:ενισχυσ|προσληψ)\p{L}*|non[- ]?mass(?:[- ]like)?\s+enhancement|nme(?:[^\p{L}]|$)`)
	negationRe   = word(`(?:` + negWords + `)(?:[^\p{L}]|$)`)
	nmePosRe     = word(nmeCue + `|` + areaCue + `|(?:περιοχ(?:η|εσ|ησ|ων)|areas?|regions?)[^.;]{0,80}?(?:` + distWords + `)`)
	nmeNegRe     = negated(`μη[\s-]*μαζομορφ|non[- ]?mass|nme|` + areaCue)
	distRe       = word(distWords)
	nmeContextRe = word(nmeCue + `|περιοχ\p{L}*|(?:areas?|regions?)(?:[^\p{L}]|$)|κατανομ\p{L}*|distribution|ενισχυ\p{L}*|enhanc\p{L}*`)

	remainderRe = word(`(?:στον?|κατα\s+τον?|του)\s+λοιπ\p{L}*|κατα\s+τα\s+λοιπα|(?:υπο)?λοιπ\p{L}*\s+(?:\p{L}+\s+)?ελεγχ\p{L}*|ελεγχ\p{L}*\s+(?:του\s+λοιπου|των\s+μαστικων\s+χωρων)|elsewhere|(?:rest|remainder)\s+of\s+the`)

	enhanceCue = `ενισχυ\p{L}*|προσληψ\p{L}*|enhanc\p{L}*`
	enhanceRe  = word(enhanceCue)
	enhanceNeg = negated(enhanceCue)

	cystCue      = `(?:μικρο)?κυστ\p{L}*|cysts?(?:[^\p{L}]|$)|cystic|μη[\s-]*ενισχυομεν\p{L}*|non[- ]?enhancing|χωρισ\s+(?:σκιαγραφικ\p{L}*\s+)?ενισχυσ\p{L}*`
	cystRe       = word(cystCue)
	cystNegRe    = negated(`(?:μικρο)?κυστ\p{L}*|cysts?|cystic|μη\s+ενισχυομεν\p{L}*|non[- ]?enhancing`)
	septaCue     = `διαφραγματ\p{L}*|septa\p{L}*|septations?`
	septaRe      = word(`(?:μη[\s-]*ενισχυομεν\p{L}*|non[- ]?enhancing|dark)\s+(?:εσωτερικ\p{L}*\s+|internal\s+)?(?:` + septaCue + `)`)
	septaNegRe   = negated(septaCue)
	spiculeCue   = `ακτινωτ\p{L}*|ακιδωτ\p{L}*|ακανθωτ\p{L}*|spicul\p{L}*`
	spiculeRe    = word(spiculeCue)
	spiculeNegRe = negated(spiculeCue)
	notPerformRe = word(`δεν\s+(?:\p{L}+\s+){0,3}?(?:διενεργ|πραγματοποι|εκτελεσ|εγιν)\p{L}*|not\s+(?:been\s+)?performed|δεν\s+εγινε`)
	dynamicCue   = word(`δυναμικ\p{L}*|καμπυλ\p{L}*|κινητικ\p{L}*|dynamic|kinetic\p{L}*|curves?`)
	diffusionCue = word(`διαχυσ\p{L}*|dwi|adc|diffusion`)
)

type presence int

const (
	absent presence = iota
	ambiguous
	negative
	positive
)

// classify scans one folded sentence. A negation followed by a remainder
// clause ("in the rest of the exam") means a finding was described, so it
// counts as positive.
func classify(f string, pos, neg *regexp.Regexp) presence {
	negHit := false
	if neg != nil {
		for _, loc := range neg.FindAllStringIndex(f, -1) {
			if matches(remainderRe, f[loc[1]:]) {
				return positive
			}
			negHit = true
		}
	}
	if matches(pos, mask(f, neg)) {
		return positive
	}
	if negHit {
		return negative
	}
	return absent
}

// tally resolves a section: any positive sentence wins over negatives.
func tally(sents []Sentence, fn func(Sentence) presence) (any, bool) {
	var yes, no bool
	for _, s := range sents {
		switch fn(s) {
		case positive:
			yes = true
		case negative:
			no = true
		}
	}
	switch {
	case yes:
		return fields.Yes, true
	case no:
		return fields.No, true
	}
	return nil, false
}

// presenceRule is prioritized tallying with an ambiguity fallback: when no
// section holds explicit evidence, a bare ambiguous mention resolves to No.
func presenceRule(doc *Document, fn func(Sentence) presence) Verdict {
	v := prioritized(doc, func(sents []Sentence) (any, bool) { return tally(sents, fn) })
	if v.Found {
		return v
	}
	for _, sec := range doc.sections() {
		for _, s := range sec.sents {
			if fn(s) == ambiguous {
				v = found(fields.No, sec.name)
				v.Ambiguous = true
				return v
			}
		}
	}
	return none()
}

func (m *Matcher) massClass(s Sentence) presence {
	f := mask(s.Folded, m.mass.exclusions)
	p := classify(f, m.mass.positive, m.mass.negated)
	if p != absent {
		return p
	}
	rest := mask(f, m.mass.negated)
	if !matches(m.mass.generic, rest) {
		return absent
	}
	// A generic lesion word only becomes a mass with a size or a shape, and
	// never in a sentence describing non-mass enhancement.
	if !matches(nmeCueRe, s.Folded) && (len(textnorm.FindSizes(rest)) > 0 || matches(m.mass.morphology, rest)) {
		return positive
	}
	return ambiguous
}

func (m *Matcher) massPresence(doc *Document) Verdict {
	return presenceRule(doc, m.massClass)
}

func (m *Matcher) nmeClass(s Sentence) presence {
	f := mask(s.Folded, bpeRe)
	if p := classify(f, nmePosRe, nmeNegRe); p != absent {
		return p
	}
	if matches(distRe, f) {
		return ambiguous
	}
	return absent
}

func (m *Matcher) nmePresence(doc *Document) Verdict {
	return presenceRule(doc, m.nmeClass)
}

func (m *Matcher) massYes(doc *Document) bool {
	v := m.massPresence(doc)
	return v.Found && v.Value.Is(fields.Yes)
}

func (m *Matcher) nmeYes(doc *Document) bool {
	v := m.nmePresence(doc)
	return v.Found && v.Value.Is(fields.Yes)
}

// distributionRule builds an NME distribution sub-type rule. A distribution
// word only counts when the sentence is about enhancement; a negated one is
// an explicit No.
func distributionRule(words string) rule {
	re := word(words)
	neg := negated(words)
	return func(m *Matcher, doc *Document) Verdict {
		return prioritized(doc, func(sents []Sentence) (any, bool) {
			var yes, no bool
			for _, s := range sents {
				f := mask(s.Folded, bpeRe)
				if !re.MatchString(f) {
					continue
				}
				if neg.MatchString(f) {
					no = true
					continue
				}
				if matches(nmeContextRe, f) {
					yes = true
				}
			}
			switch {
			case yes:
				return fields.Yes, true
			case no:
				return fields.No, true
			}
			return nil, false
		})
	}
}

func (m *Matcher) enhancementPresence(doc *Document) Verdict {
	v := presenceRule(doc, func(s Sentence) presence {
		f := mask(s.Folded, bpeRe, nmePhraseRe)
		return classify(f, enhanceRe, enhanceNeg)
	})
	if v.Found {
		return v
	}
	if m.massYes(doc) || m.nmeYes(doc) {
		return found(fields.Yes, SectionDocument)
	}
	return none()
}

// nonEnhancing answers whether a non-enhancing finding such as a cyst is
// described. Septa belong to a mass and are masked first.
func (m *Matcher) nonEnhancing(doc *Document) Verdict {
	v := presenceRule(doc, func(s Sentence) presence {
		f := mask(s.Folded, septaRe)
		return classify(f, cystRe, cystNegRe)
	})
	if v.Found {
		return v
	}
	if m.massYes(doc) || m.nmeYes(doc) {
		return found(fields.No, SectionDocument)
	}
	return none()
}

func (m *Matcher) spiculations(doc *Document) Verdict {
	return presenceRule(doc, func(s Sentence) presence {
		return classify(s.Folded, spiculeRe, spiculeNegRe)
	})
}

func (m *Matcher) septa(doc *Document) Verdict {
	return presenceRule(doc, func(s Sentence) presence {
		return classify(s.Folded, septaRe, septaNegRe)
	})
}

// notPerformed reports whether the document states that the modality named
// by cue was skipped.
func notPerformed(doc *Document, cue *regexp.Regexp) bool {
	for _, s := range doc.All() {
		if matches(notPerformRe, s.Folded) && matches(cue, s.Folded) {
			return true
		}
	}
	return false
}
