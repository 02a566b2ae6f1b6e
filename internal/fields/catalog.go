package fields

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Field keys. The order of AllKeys is the canonical export order.
const (
	KeyBIRADS                 = "BIRADS"
	KeyExamDate               = "ExamDate"
	KeyFamilyHistory          = "FamilyHistory"
	KeyACR                    = "ACR"
	KeyBPE                    = "BPE"
	KeyMass                   = "MASS"
	KeyMassDiameter           = "MassDiameter"
	KeyMassMargins            = "MassMargins"
	KeyMassEnhancementPattern = "MassEnhancementPattern"
	KeyRadialSpiculations     = "RadialSpiculations"
	KeyNonEnhancingSepta      = "NonEnhancingSepta"
	KeyNME                    = "NME"
	KeyNMEDiameter            = "NMEDiameter"
	KeyNMEMargins             = "NMEMargins"
	KeyNMEEnhancementPattern  = "NMEEnhancementPattern"
	KeyNMELinear              = "NMELinear"
	KeyNMESegmental           = "NMESegmental"
	KeyNMERegional            = "NMERegional"
	KeyNMEBilateral           = "NMEBilateral"
	KeyEnhancementPresence    = "EnhancementPresence"
	KeyNonEnhancingFindings   = "NonEnhancingFindings"
	KeyCurveMorphology        = "CurveMorphology"
	KeyADC                    = "ADC"
	KeyLaterality             = "LATERALITY"
	KeyBreast                 = "Breast"
)

// Shared enumerated values.
const (
	Yes           = "Yes"
	No            = "No"
	MarginClear   = "σαφή"
	MarginUnclear = "ασαφή"
	Homogeneous   = "ομοιογενής"
	Heterogeneous = "ανομοιογενής"
	Unilateral    = "UNI"
	Bilateral     = "BIL"
	SideLeft      = "Left"
	SideRight     = "Right"
	SideBoth      = "Both"
)

var acrRe = regexp.MustCompile(`^[ABCD](-[ABCD])*$`)

var greekDensityLetters = strings.NewReplacer("Α", "A", "Β", "B", "Γ", "C", "Δ", "D", "α", "A", "β", "B", "γ", "C", "δ", "D")

// normalizeACR uppercases, maps Greek letters, and joins with hyphens while
// keeping document order and dropping repeats: "c / d" -> "C-D".
func normalizeACR(s string) (string, bool) {
	s = greekDensityLetters.Replace(strings.ToUpper(strings.TrimSpace(s)))
	var letters []string
	seen := map[rune]bool{}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'D':
			if !seen[r] {
				seen[r] = true
				letters = append(letters, string(r))
			}
		case r == '-' || r == '/' || r == ' ' || r == ',':
		default:
			return "", false
		}
	}
	if len(letters) == 0 {
		return "", false
	}
	return strings.Join(letters, "-"), true
}

func normalizeDate(s string) (string, bool) {
	for _, layout := range []string{"2006-01-02", "02/01/2006", "2/1/2006", "02-01-2006", "02.01.2006"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

func yesNo() Domain { return Enum(Yes, No) }

func steps(kv ...any) []Step {
	out := make([]Step, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, Step{Kind: kv[i].(StepKind), Text: kv[i+1].(string)})
	}
	return out
}

const massCueText = "χωροκατακτητική εξεργασία, συμπαγής αλλοίωση/βλάβη, μάζα/μαζόμορφη, ενισχυόμενη βλάβη/αλλοίωση, σχηματισμός, " +
	"a lesion/αλλοίωση with a stated size or morphology (e.g. 'αλλοίωση 8 χιλ.', 'λοβωτή αλλοίωση'); English: mass, solid lesion, enhancing lesion"

const targetText = "prefer the index/target lesion (explicitly named, biopsied, clip-marked, or the one carried into the conclusion)"

func defaultSpecs() []FieldSpec {
	return []FieldSpec{
		{
			Key: KeyBIRADS,
			Policy: Policy{
				Summary: "BIRADS category as an integer 0..6. Accept I/II/III/IV/V/VI and map to 1..6; 4a/4b/4c map to 4.",
				Steps: steps(
					StepPositive, "an explicit 'BI-RADS <n>' / 'BIRADS: <roman>' statement.",
					StepSectionPriority, "the conclusion/summary (ΣΥΜΠΕΡΑΣΜΑ) category wins over any category in the body.",
					StepTargetLesion, "if several categories are given (e.g. per breast) and none is final, take the highest.",
					StepAmbiguity, "null if no category is stated.",
				),
			},
			Domain: IntRange(0, 6),
			Stub:   `"BIRADS": <0..6 or null>`,
		},
		{
			Key: KeyExamDate,
			Policy: Policy{
				Summary: "Exam date as YYYY-MM-DD.",
				Steps: steps(
					StepPositive, "a labelled date (Ημερομηνία εξέτασης / Ημ/νία / Date of exam), then a date with a Greek month name, then any dd/mm/yyyy date.",
					StepNormalization, "day-first numeric dates; two-digit years are 20yy.",
					StepAmbiguity, "null if no date is written.",
				),
			},
			Domain: PatternDomain(`^\d{4}-\d{2}-\d{2}$`, normalizeDate),
			Stub:   `"ExamDate": <"YYYY-MM-DD" or null>`,
		},
		{
			Key: KeyFamilyHistory,
			Policy: Policy{
				Summary: "History of breast cancer: Yes or No.",
				Steps: steps(
					StepPositive, "explicit statement of personal or family history of breast cancer (θετικό ιστορικό, ιστορικό καρκίνου μαστού, s/p μαστεκτομή για Ca, history of breast cancer).",
					StepNegative, "explicit negation (χωρίς/αρνητικό ιστορικό, no history of breast cancer).",
					StepExclusion, "screening indication alone is not history.",
					StepAmbiguity, "null when history is not mentioned; absence is not a negative.",
				),
			},
			Domain: yesNo(),
			Stub:   `"FamilyHistory": <"Yes" | "No" | null>`,
		},
		{
			Key: KeyACR,
			Policy: Policy{
				Summary: "Breast density (ACR) letter A/B/C/D. If several letters are stated, return them hyphenated in document order (e.g. C-D).",
				Steps: steps(
					StepPositive, "'ACR <letter>' or 'πυκνότητα τύπου <letter>'; Greek α/β/γ/δ map to A/B/C/D.",
					StepExclusion, "BPE wording and BI-RADS categories are not density.",
					StepAmbiguity, "null if no density letter is stated.",
				),
			},
			Domain: PatternDomain(acrRe.String(), normalizeACR),
			Stub:   `"ACR": <"A" | "B" | "C" | "D" | "C-D" style combination | null>`,
		},
		{
			Key: KeyBPE,
			Policy: Policy{
				Summary: "Background parenchymal enhancement level: Minimal, Mild, Moderate or Marked.",
				Steps: steps(
					StepPositive, "ΜΗΔΑΜΙΝΗ -> Minimal, ΗΠΙΑ -> Mild, ΜΕΤΡΙΑ -> Moderate, ΕΝΤΟΝΗ -> Marked when tied to 'ενίσχυση (του) παρεγχύματος' or BPE.",
					StepExclusion, "enhancement of a focal lesion is not background enhancement.",
					StepAmbiguity, "null if the level is not stated.",
				),
			},
			Domain: Enum("Minimal", "Mild", "Moderate", "Marked"),
			Stub:   `"BPE": <"Minimal" | "Mild" | "Moderate" | "Marked" | null>`,
		},
		{
			Key: KeyMass,
			Policy: Policy{
				Summary: "MASS presence: Yes or No.",
				Steps: steps(
					StepNegative, "explicit negation of a focal lesion (Δεν παρατηρείται μάζα / απουσία συμπαγούς αλλοίωσης / χωρίς χωροκατακτητική εξεργασία / no mass) => No. Evaluate negation before positive cues.",
					StepPositive, massCueText+" => Yes.",
					StepExclusion, "non-mass enhancement wording (μη μαζόμορφη ενίσχυση, NME), cysts (κύστη), background enhancement (BPE), calcifications, artefacts and clips are not masses.",
					StepSectionPriority, "the conclusion wins over the body when they disagree.",
					StepAmbiguity, "a bare 'αλλοίωση'/'εύρημα' with no size and no morphology => No.",
				),
			},
			Domain:   yesNo(),
			Stub:     `"MASS": <"Yes" | "No">`,
			Controls: GateMass,
			Positive: Yes,
			Negative: No,
		},
		{
			Key: KeyMassDiameter,
			Policy: Policy{
				Summary: "Mass size in millimetres (float).",
				Steps: steps(
					StepScope, "only when MASS is Yes; otherwise null.",
					StepNormalization, "decimal comma -> dot; cm/εκ. x10 -> mm; a range takes its upper bound; a multi-axis size takes its largest axis.",
					StepTargetLesion, targetText+"; otherwise the largest mass.",
					StepAmbiguity, "null if the mass is undimensioned or the dynamic study was not performed.",
				),
			},
			Domain: FloatRange(0, 300, "mm"),
			Stub:   `"MassDiameter": <float mm or null>`,
			Gate:   GateMass,
		},
		{
			Key: KeyMassMargins,
			Policy: Policy{
				Summary: "Mass margins: σαφή (clear) or ασαφή (indistinct).",
				Steps: steps(
					StepPositive, "σαφή/ευκρινή/καθαρά όρια or well-defined/circumscribed margins => σαφή; ασαφή/ακαθόριστα/θολά/ανώμαλα όρια or ill-defined/indistinct/irregular margins => ασαφή.",
					StepExclusion, "shape words (λοβωτή, ωοειδής, στρογγυλή, oval, lobulated) are not margins.",
					StepScope, "only when MASS is Yes.",
					StepTargetLesion, "if masses disagree, ασαφή wins.",
				),
			},
			Domain: Enum(MarginClear, MarginUnclear),
			Stub:   `"MassMargins": <"σαφή" | "ασαφή" | null>`,
			Gate:   GateMass,
		},
		{
			Key: KeyMassEnhancementPattern,
			Policy: Policy{
				Summary: "Internal enhancement of the mass: ομοιογενής (homogeneous) or ανομοιογενής (heterogeneous).",
				Steps: steps(
					StepPositive, "ομοιογενής ενίσχυση / homogeneous enhancement; ανομοιογενής ενίσχυση / heterogeneous enhancement.",
					StepExclusion, "distribution words (γραμμοειδής, τμηματική, περιοχική) are ignored.",
					StepScope, "only when MASS is Yes.",
					StepTargetLesion, "if masses disagree, ανομοιογενής wins.",
				),
			},
			Domain: Enum(Homogeneous, Heterogeneous),
			Stub:   `"MassEnhancementPattern": <"ομοιογενής" | "ανομοιογενής" | null>`,
			Gate:   GateMass,
		},
		{
			Key: KeyRadialSpiculations,
			Policy: Policy{
				Summary: "Radial spiculations of the mass: Yes or No.",
				Steps: steps(
					StepNegative, "χωρίς/δεν παρατηρούνται ακτινωτές προσεκβολές, no spiculation => No.",
					StepPositive, "ακτινωτές προσεκβολές/ακιδώσεις, spiculated margins => Yes.",
					StepScope, "only when MASS is Yes.",
				),
			},
			Domain:   yesNo(),
			Stub:     `"RadialSpiculations": <"Yes" | "No" | null>`,
			Gate:     GateMass,
			Negative: No,
		},
		{
			Key: KeyNonEnhancingSepta,
			Policy: Policy{
				Summary: "Non-enhancing internal septa of the mass: Yes or No.",
				Steps: steps(
					StepNegative, "χωρίς μη ενισχυόμενα διαφραγμάτια => No.",
					StepPositive, "μη ενισχυόμενα (εσωτερικά) διαφραγμάτια, non-enhancing septa/septations => Yes.",
					StepScope, "only when MASS is Yes.",
				),
			},
			Domain:   yesNo(),
			Stub:     `"NonEnhancingSepta": <"Yes" | "No" | null>`,
			Gate:     GateMass,
			Negative: No,
		},
		{
			Key: KeyNME,
			Policy: Policy{
				Summary: "Non-mass enhancement (NME) presence: Yes or No.",
				Steps: steps(
					StepNegative, "plain negation (Δεν παρατηρείται μη μαζόμορφη ενίσχυση / no non-mass enhancement) => No, UNLESS the negation is qualified by «από τον λοιπό έλεγχο», «κατά τα λοιπά», «στον υπόλοιπο έλεγχο», «από τον έλεγχο του λοιπού μαστικού αδένα» or «των μαστικών χώρων»: then a finding area exists and the answer is Yes.",
					StepPositive, "μη μαζόμορφη ενίσχυση, non-mass (like) enhancement, NME, or a described area/region (περιοχή) with linear, segmental, regional, ductal or focal distribution => Yes.",
					StepExclusion, "background parenchymal enhancement is not NME.",
					StepSectionPriority, "the conclusion wins over the body.",
					StepAmbiguity, "a bare distribution word with no described area => No.",
				),
			},
			Domain:   yesNo(),
			Stub:     `"NME": <"Yes" | "No">`,
			Controls: GateNME,
			Positive: Yes,
			Negative: No,
		},
		{
			Key: KeyNMEDiameter,
			Policy: Policy{
				Summary: "Extent of the non-mass enhancement in millimetres (float).",
				Steps: steps(
					StepScope, "only when NME is Yes.",
					StepNormalization, "decimal comma -> dot; cm -> mm; range upper bound; largest axis.",
					StepTargetLesion, targetText+"; otherwise the largest area.",
				),
			},
			Domain: FloatRange(0, 300, "mm"),
			Stub:   `"NMEDiameter": <float mm or null>`,
			Gate:   GateNME,
		},
		{
			Key: KeyNMEMargins,
			Policy: Policy{
				Summary: "Margins of the non-mass enhancement: σαφή or ασαφή.",
				Steps: steps(
					StepPositive, "the same margin vocabulary as for masses, applied to the NME description.",
					StepScope, "only when NME is Yes.",
					StepTargetLesion, "on disagreement ασαφή wins.",
				),
			},
			Domain: Enum(MarginClear, MarginUnclear),
			Stub:   `"NMEMargins": <"σαφή" | "ασαφή" | null>`,
			Gate:   GateNME,
		},
		{
			Key: KeyNMEEnhancementPattern,
			Policy: Policy{
				Summary: "Internal enhancement of the NME: ομοιογενής or ανομοιογενής.",
				Steps: steps(
					StepPositive, "ομοιογενής / ανομοιογενής (or clumped, clustered ring => ανομοιογενής).",
					StepExclusion, "distribution words are ignored.",
					StepScope, "only when NME is Yes.",
					StepTargetLesion, "on disagreement ανομοιογενής wins.",
				),
			},
			Domain: Enum(Homogeneous, Heterogeneous),
			Stub:   `"NMEEnhancementPattern": <"ομοιογενής" | "ανομοιογενής" | null>`,
			Gate:   GateNME,
		},
		distributionSpec(KeyNMELinear, "linear (γραμμοειδής / δίκην πόρου, linear, ductal)", false),
		distributionSpec(KeyNMESegmental, "segmental (τμηματική, segmental)", true),
		distributionSpec(KeyNMERegional, "regional (περιοχική, regional)", false),
		distributionSpec(KeyNMEBilateral, "bilateral (αμφοτερόπλευρη, bilateral)", false),
		{
			Key: KeyEnhancementPresence,
			Policy: Policy{
				Summary: "Any pathological contrast enhancement: Yes or No.",
				Steps: steps(
					StepNegative, "δεν παρατηρείται παθολογική σκιαγραφική ενίσχυση / no abnormal enhancement => No.",
					StepPositive, "παθολογική (σκιαγραφική) ενίσχυση, ενισχυόμενη αλλοίωση, enhancing lesion => Yes.",
					StepExclusion, "background enhancement alone is not pathological.",
				),
			},
			Domain: yesNo(),
			Stub:   `"EnhancementPresence": <"Yes" | "No" | null>`,
		},
		{
			Key: KeyNonEnhancingFindings,
			Policy: Policy{
				Summary: "Non-enhancing findings (cysts) present: Yes or No.",
				Steps: steps(
					StepPositive, "κύστη/κύστεις/κυστική αλλοίωση, cyst, or an explicitly non-enhancing lesion (μη ενισχυόμενη αλλοίωση) => Yes; cysts count even without the word 'non-enhancing'.",
					StepNegative, "plain negation (δεν παρατηρούνται κύστεις, no cysts) => No; also No when only enhancing findings are described and no cyst is mentioned anywhere.",
					StepExclusion, "non-enhancing septa inside a mass are not a separate finding.",
					StepAmbiguity, "null when nothing is described.",
				),
			},
			Domain: yesNo(),
			Stub:   `"NonEnhancingFindings": <"Yes" | "No" | null>`,
		},
		{
			Key: KeyCurveMorphology,
			Policy: Policy{
				Summary: "Kinetic (time-intensity) curve type as an integer 1, 2 or 3.",
				Steps: steps(
					StepPositive, "'καμπύλη τύπου I/II/III', 'type 1/2/3 curve'; synonyms: persistent/συνεχώς ανερχόμενη => 1, plateau/πλατό => 2, washout/έκπλυση => 3.",
					StepTargetLesion, targetText+"; otherwise the most suspicious type (3 > 2 > 1).",
					StepAmbiguity, "null if the dynamic sequence was not performed or no curve is described.",
				),
			},
			Domain: IntSet(1, 2, 3),
			Stub:   `"CurveMorphology": <1 | 2 | 3 | null>`,
		},
		{
			Key: KeyADC,
			Policy: Policy{
				Summary: "Apparent diffusion coefficient as a float in units of x10^-3 mm²/s.",
				Steps: steps(
					StepNormalization, "'1.1 x10^-3 mm²/s' => 1.1; a raw '0.0011 mm²/s' => multiply by 1000; '1100 x10^-6 mm²/s' => divide by 1000.",
					StepTargetLesion, targetText+"; otherwise the minimum value.",
					StepAmbiguity, "qualitative wording only (περιορισμός διάχυσης, restricted diffusion) => null.",
				),
			},
			Domain: FloatRange(0, 10, "x10^-3 mm²/s"),
			Stub:   `"ADC": <float or null>`,
		},
		{
			Key: KeyLaterality,
			Policy: Policy{
				Summary: "Laterality of the findings: UNI or BIL.",
				Steps: steps(
					StepPositive, "BIL when findings are localised to both breasts (δεξιό and αριστερό), when a bilateral finding is stated (αμφοτερόπλευρα), or when the report states both breasts were examined; UNI when findings are localised to one breast only.",
					StepExclusion, "background enhancement, density and technique statements are not findings.",
					StepAmbiguity, "null if no findings are described anywhere.",
				),
			},
			Domain: Enum(Unilateral, Bilateral),
			Stub:   `"LATERALITY": <"UNI" | "BIL" | null>`,
		},
		{
			Key: KeyBreast,
			Policy: Policy{
				Summary: "Side of the findings: Left, Right or Both.",
				Steps: steps(
					StepPositive, "αριστερός/αρ. μαστός or left => Left; δεξιός/δεξ. μαστός or right => Right; findings on both sides or an explicit bilateral statement => Both.",
					StepExclusion, "background and technique statements are not findings.",
					StepAmbiguity, "null if the side is not stated.",
				),
			},
			Domain: Enum(SideLeft, SideRight, SideBoth),
			Stub:   `"Breast": <"Left" | "Right" | "Both" | null>`,
		},
	}
}

func distributionSpec(key, label string, keepNegative bool) FieldSpec {
	return FieldSpec{
		Key: key,
		Policy: Policy{
			Summary: fmt.Sprintf("NME with %s distribution: Yes or No.", label),
			Steps: steps(
				StepNegative, "an explicit negation of this distribution (Δεν παρατηρούνται περιοχές ... με τμηματική κατανομή) => No.",
				StepPositive, "the distribution word describing the non-mass enhancement => Yes.",
				StepScope, "only when NME is Yes.",
			),
		},
		Domain:                yesNo(),
		Stub:                  fmt.Sprintf(`"%s": <"Yes" | "No" | null>`, key),
		Gate:                  GateNME,
		Negative:              No,
		KeepNegativeUnderGate: keepNegative,
	}
}
