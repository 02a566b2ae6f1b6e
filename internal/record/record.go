// Package record holds the per-patient extraction state: the report text,
// the gate state and the flat set of findings.
package record

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/gating"
	"github.com/joelkehle/breast-mri-extract/internal/textnorm"
)

// MaxReportBytes is the default cap on report text.
const MaxReportBytes = 64 << 10

// KeyADCCategory is the derived column added by Flat.
const KeyADCCategory = "ADCCategory"

// Issue is a recorded, non-fatal problem found while extracting a group.
type Issue struct {
	Group   string `json:"group"`
	Key     string `json:"key,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Record struct {
	PatientID  string       `json:"patient_id"`
	ReportText string       `json:"-"`
	Truncated  bool         `json:"truncated,omitempty"`
	Gates      gating.State `json:"gates"`
	Findings   Findings     `json:"findings"`
	Issues     []Issue      `json:"issues,omitempty"`
}

func New(patientID, text string, strict bool) *Record {
	return &Record{PatientID: patientID, ReportText: text, Gates: gating.NewState(strict)}
}

// NewFromFile reads a report. The patient id is the file name without its
// extension.
func NewFromFile(path string, strict bool) (*Record, error) {
	return NewFromFileLimit(path, MaxReportBytes, strict)
}

// NewFromFileLimit reads at most limit bytes of text, cut at a rune boundary.
func NewFromFileLimit(path string, limit int, strict bool) (*Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	base := filepath.Base(path)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	if id == "" {
		return nil, fmt.Errorf("report %q has no usable patient id", path)
	}
	text, truncated := truncate(b, limit)
	r := New(id, text, strict)
	r.Truncated = truncated
	return r, nil
}

func truncate(b []byte, limit int) (string, bool) {
	b = bytes.TrimPrefix(b, []byte("\ufeff"))
	truncated := false
	if limit > 0 && len(b) > limit {
		b = b[:limit]
		for len(b) > 0 && !utf8.Valid(b[lastStart(b):]) {
			b = b[:lastStart(b)]
		}
		truncated = true
	}
	return strings.ToValidUTF8(string(b), ""), truncated
}

// lastStart returns the index of the last rune start byte in b.
func lastStart(b []byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if utf8.RuneStart(b[i]) {
			return i
		}
	}
	return 0
}

// Merge copies every non-null value of res into the record. Unknown keys are
// ignored.
func (r *Record) Merge(res fields.Result) *Record {
	for k, v := range res {
		if v.IsNull() {
			continue
		}
		_ = r.Findings.Set(k, v)
	}
	return r
}

// Enforce applies the gates to every stored dependent field and returns the
// outcome for each field whose value was not passed through unchanged.
func (r *Record) Enforce(catalog *fields.Catalog) map[string]gating.Outcome {
	changed := make(map[string]gating.Outcome)
	for _, k := range catalog.Keys() {
		spec, err := catalog.Lookup(k)
		if err != nil || spec.Gate == fields.GateNone {
			continue
		}
		cur := r.Findings.Get(k)
		v, out := gating.Apply(spec, cur, r.Gates)
		if out == gating.Passed {
			continue
		}
		if !v.Equal(cur) {
			_ = r.Findings.Set(k, v)
		}
		changed[k] = out
	}
	return changed
}

func (r *Record) AddIssue(i Issue) {
	r.Issues = append(r.Issues, i)
}

// Entry is one column of a flat record.
type Entry struct {
	Key   string
	Value fields.Value
}

// Flat is the ordered export form of a record.
type Flat []Entry

// Flat lists every catalog key in catalog order followed by the derived ADC
// category.
func (r *Record) Flat(catalog *fields.Catalog) Flat {
	keys := catalog.Keys()
	out := make(Flat, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, Entry{Key: k, Value: r.Findings.Get(k)})
	}
	return append(out, Entry{Key: KeyADCCategory, Value: ADCCategory(r.Findings.ADC)})
}

// ADCCategory derives the category from a stored coefficient.
func ADCCategory(adc fields.Value) fields.Value {
	f, ok := adc.FloatValue()
	if !ok {
		return fields.Null()
	}
	return fields.String(textnorm.ADCCategory(f))
}

func (f Flat) Keys() []string {
	out := make([]string, len(f))
	for i, e := range f {
		out[i] = e.Key
	}
	return out
}

func (f Flat) Get(key string) (fields.Value, bool) {
	for _, e := range f {
		if e.Key == key {
			return e.Value, true
		}
	}
	return fields.Null(), false
}

// Strings renders the record as text cells. Null becomes "".
func (f Flat) Strings() map[string]string {
	out := make(map[string]string, len(f))
	for _, e := range f {
		out[e.Key] = e.Value.Format()
	}
	return out
}

// Values maps keys to plain JSON values, null included.
func (f Flat) Values() map[string]any {
	out := make(map[string]any, len(f))
	for _, e := range f {
		out[e.Key] = e.Value.Any()
	}
	return out
}
