package matcher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/textnorm"
)

var (
	biradsRe = regexp.MustCompile(`(?:^|[^\p{L}])bi[-\s]?rads\s*(?:category|κατηγορια|κατ\.)?\s*[:\-]?\s*([0-6]|[ivι]{1,3})[abc]?(?:[^\p{L}\d]|$)`)

	acrMatchRe = regexp.MustCompile(`(?:^|[^\p{L}])acr\s*(?:τυπου|τυποσ|type|κατηγορια|category)?\s*[:\-]?\s*([a-dα-δ](?:\s*[-/]\s*[a-dα-δ])*)(?:[^\p{L}]|$)`)

	dateLabelRe = regexp.MustCompile(`(?:ημερομηνια(?:\s+εξετασησ)?|exam(?:ination)?\s+date|date(?:\s+of\s+(?:exam|study))?)\s*[:\-]?\s*(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2,4})`)
	dateNumRe   = regexp.MustCompile(`(?:^|[^\d])(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4})(?:[^\d]|$)`)
	dateWordRe  = regexp.MustCompile(`(\d{1,2})\s+(ιανουαρ|φεβρουαρ|μαρτ|απριλ|μαι|ιουν|ιουλ|αυγουστ|σεπτεμβρ|οκτωβρ|νοεμβρ|δεκεμβρ)\p{L}*\s+(\d{4})`)

	bpeGrades = []struct {
		re    *regexp.Regexp
		grade string
	}{
		{word(`(?:μηδαμιν|ελαχιστ)\p{L}*|minimal`), "Minimal"},
		{word(`ηπι\p{L}*|mild`), "Mild"},
		{word(`μετρι\p{L}*|moderate`), "Moderate"},
		{word(`εντον\p{L}*|εκσεσημασμεν\p{L}*|marked`), "Marked"},
	}

	famCue     = `οικογενει\p{L}*\s+(?:ιστορικ|αναμνηστικ)\p{L}*|κληρονομικ\p{L}*\s+(?:ιστορικ|επιβαρυνσ)\p{L}*|family\s+history`
	histCue    = `(?:ατομικ\p{L}*\s+)?(?:ιστορικ|αναμνηστικ)\p{L}*\s+(?:\p{L}+\s+)?(?:καρκιν|νεοπλασ|κακοηθ)\p{L}*|(?:personal\s+)?history\s+of\s+(?:\p{L}+\s+)?(?:cancer|carcinoma|malignancy)|s/p\s+(?:\p{L}+\s+)?μαστεκτομ\p{L}*|μαστεκτομ\p{L}*\s+(?:\p{L}+\s+){0,2}?(?:ca|καρκιν\p{L}*)(?:[^\p{L}]|$)`
	bareHist   = `(?:(?:ατομικ|οικογενει)\p{L}*\s+)?(?:ιστορικ|αναμνηστικ)\p{L}*|(?:personal\s+|family\s+)?history`
	famNegRe   = regexp.MustCompile(`(?:^|[^\p{L}])(?:(?:` + negWords + `|ουδεν)(?:\s+\p{L}+){0,3}?\s+(?:` + famCue + `|` + histCue + `|` + bareHist + `)|(?:αρνητικ\p{L}*|ελευθερ\p{L}*)\s+(?:` + famCue + `|` + bareHist + `)|(?:` + famCue + `|` + bareHist + `)\s*[:\-]?\s*(?:αρνητικ\p{L}*|ελευθερ\p{L}*|ουδεν|οχι|negative|none|no)(?:[^\p{L}]|$))`)
	famPosRe   = regexp.MustCompile(`(?:^|[^\p{L}])(?:θετικ\p{L}*\s+(?:` + famCue + `|` + bareHist + `)|(?:` + famCue + `|` + bareHist + `)\s*[:\-]?\s*(?:θετικ\p{L}*|positive|ναι|yes)|(?:` + famCue + `)[^.;]{0,60}?(?:μητερ|αδελφ|θει|γιαγι|κορ|mother|sister|aunt|grandmother|daughter|brca|καρκιν|cancer)|` + histCue + `)`)
	relativeRe = regexp.MustCompile(`(?:^|[^\p{L}])(?:μητερ\p{L}*|αδελφ\p{L}*|θεια\p{L}*|γιαγια\p{L}*|mother|sister|aunt|grandmother)[^.;]{0,60}?(?:καρκιν\p{L}*|ca\s+μαστου|breast\s+cancer|brca)`)

	curveTypeRe    = regexp.MustCompile(`(?:^|[^\p{L}])(?:καμπυλ\p{L}*|curves?|kinetic\p{L}*)\s+(?:\p{L}+\s+){0,3}?(?:τυπου|τυποσ|type)\s*([iι]{1,3}|[123])(?:[^\p{L}\d]|$)`)
	curveTypeRevRe = regexp.MustCompile(`(?:^|[^\p{L}])(?:τυπου|type)\s*([iι]{1,3}|[123])\s+(?:\p{L}+\s+){0,2}?(?:καμπυλ|curve|kinetic)`)
	curveSynonyms  = []struct {
		re, neg *regexp.Regexp
		grade   int
	}{
		{word(`wash[- ]?out|εκπλυσ\p{L}*|αποπλυσ\p{L}*`), negated(`wash[- ]?out|εκπλυσ\p{L}*|αποπλυσ\p{L}*`), 3},
		{word(`plateau|πλατο|οροπεδι\p{L}*`), negated(`plateau|πλατο|οροπεδι\p{L}*`), 2},
		{word(`persistent|συνεχωσ\s+ανερχομεν\p{L}*|προοδευτικ\p{L}*\s+ανοδικ\p{L}*`), negated(`persistent|συνεχωσ\s+ανερχομεν\p{L}*`), 1},
	}
)

func (m *Matcher) birads(doc *Document) Verdict {
	return prioritized(doc, func(sents []Sentence) (any, bool) {
		best := -1
		for _, s := range sents {
			for _, sm := range biradsRe.FindAllStringSubmatch(s.Folded, -1) {
				n, ok := gradeNumber(sm[1])
				if ok && n > best {
					best = n
				}
			}
		}
		if best < 0 {
			return nil, false
		}
		return best, true
	})
}

// gradeNumber reads an Arabic digit or a Roman numeral.
func gradeNumber(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	return textnorm.RomanToInt(s)
}

var greekMonths = map[string]time.Month{
	"ιανουαρ": time.January, "φεβρουαρ": time.February, "μαρτ": time.March,
	"απριλ": time.April, "μαι": time.May, "ιουν": time.June,
	"ιουλ": time.July, "αυγουστ": time.August, "σεπτεμβρ": time.September,
	"οκτωβρ": time.October, "νοεμβρ": time.November, "δεκεμβρ": time.December,
}

// examDate prefers a labelled date, then a written-out Greek date, then the
// first numeric date in the report.
func (m *Matcher) examDate(doc *Document) Verdict {
	sents := doc.All()
	for _, s := range sents {
		if sm := dateLabelRe.FindStringSubmatch(s.Folded); sm != nil {
			if d, ok := isoDate(sm[3], sm[2], sm[1]); ok {
				return found(d, SectionDocument)
			}
		}
	}
	for _, s := range sents {
		if sm := dateWordRe.FindStringSubmatch(s.Folded); sm != nil {
			if d, ok := isoDate(sm[3], strconv.Itoa(int(greekMonths[sm[2]])), sm[1]); ok {
				return found(d, SectionDocument)
			}
		}
	}
	for _, s := range sents {
		if sm := dateNumRe.FindStringSubmatch(s.Folded); sm != nil {
			if d, ok := isoDate(sm[3], sm[2], sm[1]); ok {
				return found(d, SectionDocument)
			}
		}
	}
	return none()
}

func isoDate(year, month, day string) (string, bool) {
	y, err1 := strconv.Atoi(year)
	mo, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	if y < 100 {
		y += 2000
	}
	s := fmt.Sprintf("%04d-%02d-%02d", y, mo, d)
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", false
	}
	return s, true
}

func (m *Matcher) familyHistory(doc *Document) Verdict {
	var yes, no bool
	for _, s := range doc.All() {
		switch {
		case famNegRe.MatchString(s.Folded):
			no = true
		case famPosRe.MatchString(s.Folded), relativeRe.MatchString(s.Folded):
			yes = true
		}
	}
	switch {
	case yes:
		return found(fields.Yes, SectionDocument)
	case no:
		return found(fields.No, SectionDocument)
	}
	return none()
}

func (m *Matcher) acr(doc *Document) Verdict {
	return prioritized(doc, func(sents []Sentence) (any, bool) {
		for _, s := range sents {
			if sm := acrMatchRe.FindStringSubmatch(s.Folded); sm != nil {
				return strings.TrimSpace(sm[1]), true
			}
		}
		return nil, false
	})
}

// bpe grades background enhancement with the grade word nearest the cue.
func (m *Matcher) bpe(doc *Document) Verdict {
	return prioritized(doc, func(sents []Sentence) (any, bool) {
		for _, s := range sents {
			cue := bpeRe.FindStringIndex(s.Folded)
			if cue == nil {
				continue
			}
			best, bestDist := "", -1
			for _, g := range bpeGrades {
				for _, loc := range g.re.FindAllStringIndex(s.Folded, -1) {
					d := distance(loc, cue)
					if bestDist < 0 || d < bestDist {
						best, bestDist = g.grade, d
					}
				}
			}
			if best != "" {
				return best, true
			}
		}
		return nil, false
	})
}

func distance(a, b []int) int {
	switch {
	case a[1] <= b[0]:
		return b[0] - a[1]
	case b[1] <= a[0]:
		return a[0] - b[1]
	}
	return 0
}

// curve reads the kinetic curve type. The target lesion's curve wins;
// otherwise the most suspicious type reported.
func (m *Matcher) curve(doc *Document) Verdict {
	if notPerformed(doc, dynamicCue) {
		return none()
	}
	return prioritized(doc, func(sents []Sentence) (any, bool) {
		var cs []candidate
		for _, s := range sents {
			target := matches(targetRe, s.Folded)
			grades := map[int]bool{}
			for _, re := range []*regexp.Regexp{curveTypeRe, curveTypeRevRe} {
				for _, sm := range re.FindAllStringSubmatch(s.Folded, -1) {
					if n, ok := gradeNumber(sm[1]); ok {
						grades[n] = true
					}
				}
			}
			for _, syn := range curveSynonyms {
				if syn.re.MatchString(s.Folded) && !syn.neg.MatchString(s.Folded) {
					grades[syn.grade] = true
				}
			}
			for g := range grades {
				cs = append(cs, candidate{value: float64(g), target: target})
			}
		}
		v, ok := pick(cs, larger)
		if !ok {
			return nil, false
		}
		return int(v), true
	})
}

// adc reads the diffusion coefficient. The target lesion's value wins;
// otherwise the most restricted one reported.
func (m *Matcher) adc(doc *Document) Verdict {
	if notPerformed(doc, diffusionCue) {
		return none()
	}
	return prioritized(doc, func(sents []Sentence) (any, bool) {
		var cs []candidate
		for _, s := range sents {
			target := matches(targetRe, s.Folded)
			for _, r := range textnorm.ParseADC(s.Folded) {
				cs = append(cs, candidate{value: r.Value, target: target})
			}
		}
		v, ok := pick(cs, smaller)
		if !ok {
			return nil, false
		}
		return v, true
	})
}
