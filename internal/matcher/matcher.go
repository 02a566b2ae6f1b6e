// Package matcher derives field values from report text with deterministic
// pattern rules. Every rule follows the same decision order as the field's
// policy: negation before positive cues, exclusions masked out first, the
// conclusion section ahead of the body, then target-lesion and ambiguity
// defaults.
package matcher

import (
	"fmt"
	"regexp"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
)

// Verdict is the outcome of one rule. Found is false when the text holds no
// evidence; Value is then null.
type Verdict struct {
	Value     fields.Value
	Found     bool
	Ambiguous bool
	Section   string
}

func none() Verdict { return Verdict{} }

func found(v any, section string) Verdict {
	return Verdict{Value: raw(v), Found: true, Section: section}
}

// raw wraps a rule's proposed value before catalog coercion.
func raw(v any) fields.Value {
	switch x := v.(type) {
	case string:
		return fields.String(x)
	case int:
		return fields.Int(x)
	case float64:
		return fields.Float(x)
	}
	return fields.Null()
}

type rule func(m *Matcher, doc *Document) Verdict

type Matcher struct {
	catalog *fields.Catalog
	cues    *CueSet
	mass    massPatterns
	rules   map[string]rule
}

// New compiles the rules against cues. A nil cue set selects the default
// version.
func New(catalog *fields.Catalog, cues *CueSet) (*Matcher, error) {
	if cues == nil {
		var err error
		if cues, err = DefaultCueSet(DefaultCueVersion); err != nil {
			return nil, err
		}
	}
	mp, err := cues.compile()
	if err != nil {
		return nil, err
	}
	m := &Matcher{catalog: catalog, cues: cues, mass: mp, rules: defaultRules()}
	for key := range m.rules {
		if _, err := catalog.Lookup(key); err != nil {
			return nil, fmt.Errorf("matcher rule: %w", err)
		}
	}
	return m, nil
}

func (m *Matcher) CueVersion() string { return m.cues.Version }

func (m *Matcher) Supports(key string) bool {
	_, ok := m.rules[key]
	return ok
}

// Keys lists supported fields in catalog order.
func (m *Matcher) Keys() []string {
	var out []string
	for _, k := range m.catalog.Keys() {
		if m.Supports(k) {
			out = append(out, k)
		}
	}
	return out
}

// Explain runs the rule for key. The returned value is always null or a
// member of the field's domain.
func (m *Matcher) Explain(doc *Document, key string) Verdict {
	r, ok := m.rules[key]
	if !ok {
		return none()
	}
	v := r(m, doc)
	if !v.Found {
		return none()
	}
	spec, err := m.catalog.Lookup(key)
	if err != nil {
		return none()
	}
	coerced, err := spec.Coerce(v.Value.Any())
	if err != nil {
		return none()
	}
	v.Value = coerced
	v.Found = !coerced.IsNull()
	return v
}

// Match returns the value for key, or false when there is no evidence.
func (m *Matcher) Match(doc *Document, key string) (fields.Value, bool) {
	v := m.Explain(doc, key)
	return v.Value, v.Found
}

// MatchAll runs every supported rule and returns the non-null values.
func (m *Matcher) MatchAll(doc *Document) fields.Result {
	out := fields.Result{}
	for _, k := range m.Keys() {
		if v, ok := m.Match(doc, k); ok {
			out[k] = v
		}
	}
	return out
}

func defaultRules() map[string]rule {
	return map[string]rule{
		fields.KeyBIRADS:                 (*Matcher).birads,
		fields.KeyExamDate:               (*Matcher).examDate,
		fields.KeyFamilyHistory:          (*Matcher).familyHistory,
		fields.KeyACR:                    (*Matcher).acr,
		fields.KeyBPE:                    (*Matcher).bpe,
		fields.KeyMass:                   (*Matcher).massPresence,
		fields.KeyMassDiameter:           (*Matcher).massDiameter,
		fields.KeyMassMargins:            (*Matcher).massMargins,
		fields.KeyMassEnhancementPattern: (*Matcher).massEnhancement,
		fields.KeyRadialSpiculations:     (*Matcher).spiculations,
		fields.KeyNonEnhancingSepta:      (*Matcher).septa,
		fields.KeyNME:                    (*Matcher).nmePresence,
		fields.KeyNMEDiameter:            (*Matcher).nmeDiameter,
		fields.KeyNMEMargins:             (*Matcher).nmeMargins,
		fields.KeyNMEEnhancementPattern:  (*Matcher).nmeEnhancement,
		fields.KeyNMELinear:              distributionRule(linearWords),
		fields.KeyNMESegmental:           distributionRule(segmentalWords),
		fields.KeyNMERegional:            distributionRule(regionalWords),
		fields.KeyNMEBilateral:           distributionRule(bilateralWords),
		fields.KeyEnhancementPresence:    (*Matcher).enhancementPresence,
		fields.KeyNonEnhancingFindings:   (*Matcher).nonEnhancing,
		fields.KeyCurveMorphology:        (*Matcher).curve,
		fields.KeyADC:                    (*Matcher).adc,
		fields.KeyLaterality:             (*Matcher).laterality,
		fields.KeyBreast:                 (*Matcher).breast,
	}
}

// prioritized evaluates fn on the conclusion first and falls back to the
// body only when the conclusion holds no evidence.
func prioritized(doc *Document, fn func([]Sentence) (any, bool)) Verdict {
	for _, sec := range doc.sections() {
		if len(sec.sents) == 0 {
			continue
		}
		if v, ok := fn(sec.sents); ok {
			return found(v, sec.name)
		}
	}
	return none()
}

func matches(re *regexp.Regexp, s string) bool {
	return re != nil && re.MatchString(s)
}

// candidate is one measured or graded finding considered for target-lesion
// selection.
type candidate struct {
	value  float64
	target bool
}

var targetRe = word(`βιοψ\p{L}*|clips?(?:[^\p{L}]|$)|κλιπ|σημανσ\p{L}*|στοχο\p{L}*|target|index|biops\p{L}*`)

// pick applies the target-lesion tie-break: when any candidate belongs to
// the target lesion only those are considered. The one that prefer ranks
// first wins.
func pick(cs []candidate, prefer func(a, b float64) bool) (float64, bool) {
	var targets []candidate
	for _, c := range cs {
		if c.target {
			targets = append(targets, c)
		}
	}
	if len(targets) > 0 {
		cs = targets
	}
	if len(cs) == 0 {
		return 0, false
	}
	best := cs[0].value
	for _, c := range cs[1:] {
		if prefer(c.value, best) {
			best = c.value
		}
	}
	return best, true
}

func larger(a, b float64) bool  { return a > b }
func smaller(a, b float64) bool { return a < b }
