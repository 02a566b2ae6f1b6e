package fields

import (
	"errors"
	"fmt"
	"strings"
)

// Gate names a parent finding whose absence suppresses dependent fields.
type Gate string

const (
	GateNone Gate = ""
	GateMass Gate = "mass"
	GateNME  Gate = "nme"
)

// StepKind labels one step of a decision policy.
type StepKind int

const (
	StepPositive StepKind = iota
	StepNegative
	StepExclusion
	StepSectionPriority
	StepTargetLesion
	StepAmbiguity
	StepNormalization
	StepScope
)

var stepLabels = map[StepKind]string{
	StepPositive:        "POSITIVE",
	StepNegative:        "NEGATIVE",
	StepExclusion:       "DO NOT USE",
	StepSectionPriority: "SECTION PRIORITY",
	StepTargetLesion:    "MULTIPLE FINDINGS",
	StepAmbiguity:       "IF AMBIGUOUS",
	StepNormalization:   "NORMALISE",
	StepScope:           "SCOPE",
}

func (k StepKind) String() string { return stepLabels[k] }

type Step struct {
	Kind StepKind
	Text string
}

// Policy is a field's ordered decision procedure. Text renders it verbatim
// for the generator; the matcher implements the same steps as code.
type Policy struct {
	Summary string
	Steps   []Step
}

func (p Policy) Text() string {
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(p.Summary)
	b.WriteString("\n")
	if len(p.Steps) > 0 {
		b.WriteString("  Decision order (apply strictly):\n")
	}
	for i, s := range p.Steps {
		fmt.Fprintf(&b, "  %c) %s: %s\n", 'A'+i, s.Kind, s.Text)
	}
	return b.String()
}

// FieldSpec defines one extractable attribute.
type FieldSpec struct {
	Key    string
	Policy Policy
	Domain Domain
	Stub   string
	// Gate is the parent finding this field depends on.
	Gate Gate
	// Controls is the gate this field resolves, with Positive opening it.
	Controls Gate
	Positive string
	// Negative is the explicit negative value. KeepNegativeUnderGate lets it
	// survive a closed gate instead of being nulled.
	Negative              string
	KeepNegativeUnderGate bool
}

// Coerce validates raw against the field's domain.
func (f FieldSpec) Coerce(raw any) (Value, error) {
	v, err := f.Domain.Coerce(raw)
	if err != nil {
		return Null(), &ViolationError{Key: f.Key, Reason: err.Error()}
	}
	return v, nil
}

var (
	ErrUnknownField    = errors.New("unknown field")
	ErrSchemaViolation = errors.New("schema violation")
	ErrMalformedOutput = errors.New("malformed extraction output")
)

// ViolationError reports a single field that failed its domain check.
type ViolationError struct {
	Key    string
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Reason)
}

func (e *ViolationError) Unwrap() error { return ErrSchemaViolation }

// SchemaViolationError carries the keys that failed validation together with
// the part of the object that passed. Violating keys are null in Partial.
type SchemaViolationError struct {
	Partial    Result
	Violations []*ViolationError
}

func (e *SchemaViolationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Error()
	}
	return "schema violation: " + strings.Join(parts, "; ")
}

func (e *SchemaViolationError) Unwrap() error { return ErrSchemaViolation }

// Violated reports whether key failed validation.
func (e *SchemaViolationError) Violated(key string) bool {
	for _, v := range e.Violations {
		if v.Key == key {
			return true
		}
	}
	return false
}
