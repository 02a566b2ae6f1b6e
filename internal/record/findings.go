package record

import (
	"fmt"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
)

// Findings holds one value per catalog field. Null means not reported.
type Findings struct {
	BIRADS                 fields.Value `json:"BIRADS"`
	ExamDate               fields.Value `json:"ExamDate"`
	FamilyHistory          fields.Value `json:"FamilyHistory"`
	ACR                    fields.Value `json:"ACR"`
	BPE                    fields.Value `json:"BPE"`
	Mass                   fields.Value `json:"MASS"`
	MassDiameter           fields.Value `json:"MassDiameter"`
	MassMargins            fields.Value `json:"MassMargins"`
	MassEnhancementPattern fields.Value `json:"MassEnhancementPattern"`
	RadialSpiculations     fields.Value `json:"RadialSpiculations"`
	NonEnhancingSepta      fields.Value `json:"NonEnhancingSepta"`
	NME                    fields.Value `json:"NME"`
	NMEDiameter            fields.Value `json:"NMEDiameter"`
	NMEMargins             fields.Value `json:"NMEMargins"`
	NMEEnhancementPattern  fields.Value `json:"NMEEnhancementPattern"`
	NMELinear              fields.Value `json:"NMELinear"`
	NMESegmental           fields.Value `json:"NMESegmental"`
	NMERegional            fields.Value `json:"NMERegional"`
	NMEBilateral           fields.Value `json:"NMEBilateral"`
	EnhancementPresence    fields.Value `json:"EnhancementPresence"`
	NonEnhancingFindings   fields.Value `json:"NonEnhancingFindings"`
	CurveMorphology        fields.Value `json:"CurveMorphology"`
	ADC                    fields.Value `json:"ADC"`
	Laterality             fields.Value `json:"LATERALITY"`
	Breast                 fields.Value `json:"Breast"`
}

func (f *Findings) slot(key string) *fields.Value {
	switch key {
	case fields.KeyBIRADS:
		return &f.BIRADS
	case fields.KeyExamDate:
		return &f.ExamDate
	case fields.KeyFamilyHistory:
		return &f.FamilyHistory
	case fields.KeyACR:
		return &f.ACR
	case fields.KeyBPE:
		return &f.BPE
	case fields.KeyMass:
		return &f.Mass
	case fields.KeyMassDiameter:
		return &f.MassDiameter
	case fields.KeyMassMargins:
		return &f.MassMargins
	case fields.KeyMassEnhancementPattern:
		return &f.MassEnhancementPattern
	case fields.KeyRadialSpiculations:
		return &f.RadialSpiculations
	case fields.KeyNonEnhancingSepta:
		return &f.NonEnhancingSepta
	case fields.KeyNME:
		return &f.NME
	case fields.KeyNMEDiameter:
		return &f.NMEDiameter
	case fields.KeyNMEMargins:
		return &f.NMEMargins
	case fields.KeyNMEEnhancementPattern:
		return &f.NMEEnhancementPattern
	case fields.KeyNMELinear:
		return &f.NMELinear
	case fields.KeyNMESegmental:
		return &f.NMESegmental
	case fields.KeyNMERegional:
		return &f.NMERegional
	case fields.KeyNMEBilateral:
		return &f.NMEBilateral
	case fields.KeyEnhancementPresence:
		return &f.EnhancementPresence
	case fields.KeyNonEnhancingFindings:
		return &f.NonEnhancingFindings
	case fields.KeyCurveMorphology:
		return &f.CurveMorphology
	case fields.KeyADC:
		return &f.ADC
	case fields.KeyLaterality:
		return &f.Laterality
	case fields.KeyBreast:
		return &f.Breast
	}
	return nil
}

// Get returns the stored value for key. Unknown keys read as null.
func (f *Findings) Get(key string) fields.Value {
	if p := f.slot(key); p != nil {
		return *p
	}
	return fields.Null()
}

func (f *Findings) Set(key string, v fields.Value) error {
	p := f.slot(key)
	if p == nil {
		return fmt.Errorf("%w: %q", fields.ErrUnknownField, key)
	}
	*p = v
	return nil
}
