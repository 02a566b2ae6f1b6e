package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "μαζα με σαφη ορια", Fold("Μάζα με σαφή όρια"))
	assert.Equal(t, "εξεργασια εκτοσ", Fold("ΕΞΕΡΓΑΣΊΑ εκτός"))
	assert.Equal(t, "bpe minimal", Fold("BPE Minimal"))
}

func TestNormalizeDecimal(t *testing.T) {
	assert.Equal(t, "1.5 εκ. και 0.9", NormalizeDecimal("1,5 εκ. και 0,9"))
	assert.Equal(t, "ACR C, BPE", NormalizeDecimal("ACR C, BPE"))
}

func TestParseSizeMM(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"8 mm", 8.0},
		{"1,5 εκ.", 15.0},
		{"7–8 χιλ.", 8.0},
		{"7.5 × 6 × 8 mm", 8.0},
		{"διαμέτρου 7 χιλ.", 7.0},
		{"12x9 χιλιοστά", 12.0},
		{"0,8 cm", 8.0},
		{"2 έως 3 εκατοστά", 30.0},
	}
	for _, tc := range cases {
		got, ok := ParseSizeMM(tc.in)
		require.True(t, ok, tc.in)
		assert.InDelta(t, tc.want, got, 1e-9, tc.in)
	}
}

func TestParseSizeMMIdempotentOnMillimetres(t *testing.T) {
	first, ok := ParseSizeMM("8 mm")
	require.True(t, ok)
	again, ok := ParseSizeMM(FormatMM(first))
	require.True(t, ok)
	assert.Equal(t, first, again)
}

func TestFindSizesSkipsDiffusionUnits(t *testing.T) {
	assert.Empty(t, FindSizes(Fold("ADC 1.2 x 10^-3 mm2/s")))
	assert.Empty(t, FindSizes(Fold("ADC 0,0016 mm²/s")))
	assert.Empty(t, FindSizes(Fold("εκτός από τον έλεγχο")))
}

func TestParseADC(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"ADC 0,0016 mm²/s", 1.6},
		{"ADC 900×10⁻⁶ mm²/s", 0.9},
		{"ADC 1.6×10⁻³ mm²/s", 1.6},
		{"τιμή ADC: 1,1 x10-3 mm2/s", 1.1},
		{"ADC (b=800) 0.85", 0.85},
	}
	for _, tc := range cases {
		got := ParseADC(Fold(tc.in))
		require.Len(t, got, 1, tc.in)
		assert.InDelta(t, tc.want, got[0].Value, 1e-9, tc.in)
	}
}

func TestParseADCQualitativeOnly(t *testing.T) {
	assert.Empty(t, ParseADC(Fold("Περιορισμός διάχυσης στον ADC χάρτη.")))
}

func TestADCCategory(t *testing.T) {
	assert.Equal(t, ADCNonRestricted, ADCCategory(1.6))
	assert.Equal(t, ADCNonRestricted, ADCCategory(1.4))
	assert.Equal(t, ADCIntermediate, ADCCategory(1.2))
	assert.Equal(t, ADCRestricted, ADCCategory(1.0))
	assert.Equal(t, ADCRestricted, ADCCategory(0.8))
}

func TestRomanToInt(t *testing.T) {
	for in, want := range map[string]int{"I": 1, "II": 2, "III": 3, "IV": 4, "V": 5, "VI": 6, "ΙΙΙ": 3, "4": 4, "0": 0} {
		got, ok := RomanToInt(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := RomanToInt("VII")
	assert.False(t, ok)
}

func TestSentences(t *testing.T) {
	got := Sentences("ACR C. Στο αριστερό μαστό, μάζα διαμέτρου 7 χιλ. και σαφή όρια. Δεν παρατηρείται μη μαζόμορφη ενίσχυση.")
	assert.Equal(t, []string{
		"ACR C.",
		"Στο αριστερό μαστό, μάζα διαμέτρου 7 χιλ. και σαφή όρια.",
		"Δεν παρατηρείται μη μαζόμορφη ενίσχυση.",
	}, got)
}

func TestSplitSections(t *testing.T) {
	s := SplitSections("Ευρήματα: μάζα 7 χιλ.\nΣΥΜΠΕΡΑΣΜΑ: BI-RADS 4")
	assert.Equal(t, "Ευρήματα: μάζα 7 χιλ.\n", s.Body)
	assert.Equal(t, "ΣΥΜΠΕΡΑΣΜΑ: BI-RADS 4", s.Conclusion)

	s = SplitSections("No heading here.")
	assert.Equal(t, "No heading here.", s.Body)
	assert.Empty(t, s.Conclusion)
}
