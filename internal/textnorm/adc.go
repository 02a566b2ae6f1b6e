package textnorm

import (
	"regexp"
	"sort"
	"strings"
)

// ADC categories derived from the coefficient (×10⁻³ mm²/s).
const (
	ADCNonRestricted = "non-restricted"
	ADCIntermediate  = "intermediate"
	ADCRestricted    = "restricted"
)

var (
	adcAnchorRe = regexp.MustCompile(`(?:^|[^\p{L}])adc(?:[^\p{L}]|$)`)
	adcValueRe  = regexp.MustCompile(`(` + numberPattern + `)(\s*(?:x|×|\*|·)\s*10\s*\^?\s*\(?\s*(?:-|−|⁻)\s*([36³⁶])\)?)?(\s*mm\s*(?:²|2|\^2)\s*/\s*s(?:ec)?)?`)
	bValueRe    = regexp.MustCompile(`(?:^|[^\p{L}])b\s*[-=:]?\s*\d{3,4}`)
)

// ADCReading is one diffusion value normalised to the ×10⁻³ mm²/s scale.
type ADCReading struct {
	Value float64
	Start int
	End   int
}

// ParseADC finds diffusion readings in folded text. A number counts as a
// reading when it carries a ×10⁻ⁿ factor or an mm²/s unit, or when it is the
// first number within 40 bytes of an "ADC" label.
func ParseADC(folded string) []ADCReading {
	text := maskB(folded)
	seen := map[int]bool{}
	var out []ADCReading

	add := func(loc []int) {
		if seen[loc[0]] {
			return
		}
		seen[loc[0]] = true
		v, err := ParseNumber(text[loc[2]:loc[3]])
		if err != nil {
			return
		}
		exp := 0
		if loc[6] >= 0 {
			switch text[loc[6]:loc[7]] {
			case "3", "³":
				exp = 3
			case "6", "⁶":
				exp = 6
			}
		}
		out = append(out, ADCReading{Value: NormalizeADC(v, exp), Start: loc[0], End: loc[1]})
	}

	for _, anchor := range adcAnchorRe.FindAllStringIndex(text, -1) {
		rest := text[anchor[1]:]
		loc := adcValueRe.FindStringSubmatchIndex(rest)
		if loc == nil || loc[0] > 40 {
			continue
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += anchor[1]
			}
		}
		add(loc)
	}
	for _, loc := range adcValueRe.FindAllStringSubmatchIndex(text, -1) {
		if loc[4] >= 0 || loc[8] >= 0 {
			add(loc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// NormalizeADC converts a reported value to the coefficient scale. exp is the
// magnitude of an explicit ×10⁻ⁿ factor, or 0 when none was written. Without
// a factor a value below 0.1 is read as raw mm²/s and one above 100 as
// µm²/s; anything in between is already a coefficient.
func NormalizeADC(v float64, exp int) float64 {
	switch exp {
	case 3:
	case 6:
		v /= 1000
	default:
		switch {
		case v < 0.1:
			v *= 1000
		case v > 100:
			v /= 1000
		}
	}
	return round(v, 4)
}

// ADCCategory buckets a coefficient. It is a pure function of the stored
// value so exports can always re-derive it.
func ADCCategory(v float64) string {
	switch {
	case v >= 1.4:
		return ADCNonRestricted
	case v <= 1.0:
		return ADCRestricted
	default:
		return ADCIntermediate
	}
}

// maskB blanks diffusion b-values ("b=800") so they are not read as ADC
// numbers. Byte offsets are preserved.
func maskB(s string) string {
	return bValueRe.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
}

