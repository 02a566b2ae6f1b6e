package textnorm

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const numberPattern = `\d+(?:[.,]\d+)?`

var (
	// A size is up to three numbers joined by an axis or range separator,
	// followed by a length unit.
	sizeRe = regexp.MustCompile(`(` + numberPattern + `(?:\s*(?:[x×χ*]|-|–|—|εωσ|to)\s*` + numberPattern + `){0,2})\s*(mm|χιλ\p{L}*\.?|χλστ\.?|cm|εκατοστ\p{L}*|εκ\.?)`)
	numberRe = regexp.MustCompile(numberPattern)
)

// Measurement is one size found in folded text, already in millimetres.
type Measurement struct {
	MM    float64
	Start int
	End   int
}

// FindSizes returns every size measurement in folded text. Ranges resolve to
// their upper bound and multi-axis sizes to their largest axis. Diffusion
// units such as mm²/s are not sizes and are skipped.
func FindSizes(folded string) []Measurement {
	var out []Measurement
	for _, loc := range sizeRe.FindAllStringSubmatchIndex(folded, -1) {
		if !unitBoundary(folded, loc[1]) {
			continue
		}
		if loc[0] > 0 {
			prev, _ := utf8.DecodeLastRuneInString(folded[:loc[0]])
			if prev == '.' || prev == ',' || prev == '^' || prev == '-' && loc[0] > 1 && isDigitByte(folded[loc[0]-2]) {
				continue
			}
		}
		nums := folded[loc[2]:loc[3]]
		unit := folded[loc[4]:loc[5]]
		largest := 0.0
		for _, n := range numberRe.FindAllString(nums, -1) {
			v, err := ParseNumber(n)
			if err != nil {
				continue
			}
			largest = math.Max(largest, v)
		}
		if largest <= 0 {
			continue
		}
		if strings.HasPrefix(unit, "c") || strings.HasPrefix(unit, "εκ") {
			largest *= 10
		}
		out = append(out, Measurement{MM: round(largest, 3), Start: loc[0], End: loc[1]})
	}
	return out
}

// ParseSizeMM converts the first size in s to millimetres. It accepts raw
// (unfolded) text.
func ParseSizeMM(s string) (float64, bool) {
	sizes := FindSizes(Fold(s))
	if len(sizes) == 0 {
		return 0, false
	}
	return sizes[0].MM, true
}

// FormatMM renders a millimetre value the way sizes are written back out.
func FormatMM(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " mm"
}

// unitBoundary rejects units glued to another letter ("εκτος") or followed by
// an exponent or rate ("mm²/s", "mm2").
func unitBoundary(s string, end int) bool {
	if end >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[end:])
	if IsWordRune(r) {
		return false
	}
	switch r {
	case '²', '³', '/', '^':
		return false
	}
	return true
}

func isDigitByte(b byte) bool { return b >= '0' && b <= '9' }

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
