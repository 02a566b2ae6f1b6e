// Package report renders a per-patient summary of extracted findings as
// markdown, HTML or PDF.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/output"
	"github.com/joelkehle/breast-mri-extract/internal/record"
)

const Disclaimer = "Automatically extracted from the free-text report. Verify every value against the source before clinical or research use."

// Summary carries what the findings table alone does not.
type Summary struct {
	PatientID   string
	Source      string
	Truncated   bool
	Issues      []record.Issue
	GeneratedAt time.Time
}

var groupTitles = []struct {
	title string
	keys  []string
}{
	{"Exam", []string{fields.KeyExamDate, fields.KeyBIRADS, fields.KeyACR, fields.KeyBPE, fields.KeyFamilyHistory}},
	{"Mass", []string{fields.KeyMass, fields.KeyMassDiameter, fields.KeyMassMargins, fields.KeyMassEnhancementPattern, fields.KeyRadialSpiculations, fields.KeyNonEnhancingSepta}},
	{"Non-mass enhancement", []string{fields.KeyNME, fields.KeyNMEDiameter, fields.KeyNMEMargins, fields.KeyNMEEnhancementPattern, fields.KeyNMELinear, fields.KeyNMESegmental, fields.KeyNMERegional, fields.KeyNMEBilateral}},
	{"Kinetics and diffusion", []string{fields.KeyEnhancementPresence, fields.KeyNonEnhancingFindings, fields.KeyCurveMorphology, fields.KeyADC, record.KeyADCCategory}},
	{"Side", []string{fields.KeyLaterality, fields.KeyBreast}},
}

// BuildMarkdown renders one patient's findings. The ADC category is always
// derived from the stored coefficient, never read from flat.
func BuildMarkdown(flat record.Flat, s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Breast MRI Findings: %s\n\n", s.PatientID)
	if s.Source != "" {
		fmt.Fprintf(&b, "- Source: %s\n", s.Source)
	}
	at := s.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Fprintf(&b, "- Generated: %s\n", at.Format(time.RFC3339))
	if s.Truncated {
		b.WriteString("- Report text was truncated before extraction.\n")
	}
	fmt.Fprintf(&b, "\n%s\n\n", Disclaimer)

	adc, _ := flat.Get(fields.KeyADC)
	cells := map[string]string{}
	for _, e := range flat {
		cells[e.Key] = cell(e.Value)
	}
	cells[record.KeyADCCategory] = cell(record.ADCCategory(adc))

	seen := map[string]bool{}
	for _, g := range groupTitles {
		fmt.Fprintf(&b, "## %s\n\n| Field | Value |\n|---|---|\n", g.title)
		for _, k := range g.keys {
			seen[k] = true
			fmt.Fprintf(&b, "| %s | %s |\n", k, cells[k])
		}
		b.WriteString("\n")
	}
	var extra []record.Entry
	for _, e := range flat {
		if !seen[e.Key] {
			extra = append(extra, e)
		}
	}
	if len(extra) > 0 {
		b.WriteString("## Other\n\n| Field | Value |\n|---|---|\n")
		for _, e := range extra {
			fmt.Fprintf(&b, "| %s | %s |\n", e.Key, cell(e.Value))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Gates\n\n")
	mass, _ := flat.Get(fields.KeyMass)
	nme, _ := flat.Get(fields.KeyNME)
	fmt.Fprintf(&b, "- Mass findings: %s\n", gateLine(mass))
	fmt.Fprintf(&b, "- Non-mass findings: %s\n\n", gateLine(nme))

	b.WriteString("## Issues\n\n")
	if len(s.Issues) == 0 {
		b.WriteString("None recorded.\n")
		return b.String()
	}
	b.WriteString("| Group | Field | Kind | Detail |\n|---|---|---|---|\n")
	for _, is := range s.Issues {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", is.Group, dash(is.Key), is.Kind, escapeCell(is.Message))
	}
	return b.String()
}

func cell(v fields.Value) string {
	if v.IsNull() {
		return "—"
	}
	return escapeCell(v.Format())
}

func dash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}

func gateLine(v fields.Value) string {
	switch {
	case v.Is(fields.Yes):
		return "present, dependent fields reported"
	case v.IsNull():
		return "not reported, dependent fields suppressed"
	default:
		return "absent, dependent fields suppressed"
	}
}

// FlatFromValues coerces an exported patient entry back into catalog
// domains. Keys outside the catalog are ignored.
func FlatFromValues(catalog *fields.Catalog, entry map[string]any) (record.Flat, error) {
	rec := record.New("", "", false)
	for _, k := range catalog.Keys() {
		spec, err := catalog.Lookup(k)
		if err != nil {
			return nil, err
		}
		v, err := spec.Coerce(entry[k])
		if err != nil {
			return nil, err
		}
		if err := rec.Findings.Set(k, v); err != nil {
			return nil, err
		}
	}
	return rec.Flat(catalog), nil
}

// RebuildFromJSON re-renders a patient from a JSON export without running
// extraction again.
func RebuildFromJSON(path, patientID string, catalog *fields.Catalog) (string, error) {
	entry, err := output.LoadJSONPatient(path, patientID)
	if err != nil {
		return "", err
	}
	flat, err := FlatFromValues(catalog, entry)
	if err != nil {
		return "", fmt.Errorf("patient %s: %w", patientID, err)
	}
	return BuildMarkdown(flat, Summary{PatientID: patientID, Source: path}), nil
}

// RecordLoader loads a stored record with its issues.
type RecordLoader interface {
	LoadRecord(ctx context.Context, patientID string) (*record.Record, error)
}

// RebuildFromStore re-renders a patient from the result store, issues
// included.
func RebuildFromStore(ctx context.Context, store RecordLoader, patientID string, catalog *fields.Catalog) (string, error) {
	rec, err := store.LoadRecord(ctx, patientID)
	if err != nil {
		return "", err
	}
	return BuildMarkdown(rec.Flat(catalog), Summary{
		PatientID: rec.PatientID,
		Source:    "result store",
		Truncated: rec.Truncated,
		Issues:    rec.Issues,
	}), nil
}
