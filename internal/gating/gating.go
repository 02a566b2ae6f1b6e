// Package gating tracks the per-report mass and NME gates and suppresses
// dependent fields while their parent finding is absent.
package gating

import (
	"errors"
	"fmt"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
)

// ErrGateUnresolved is reported when a dependent field is applied before its
// parent gate was evaluated for the report.
var ErrGateUnresolved = errors.New("gate unresolved")

// Outcome describes what Apply did to a value.
type Outcome int

const (
	Passed Outcome = iota
	Suppressed
	KeptNegative
	Unresolved
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Suppressed:
		return "suppressed"
	case KeptNegative:
		return "kept_negative"
	case Unresolved:
		return "unresolved"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type gate struct {
	Open     bool `json:"open"`
	Resolved bool `json:"resolved"`
}

// State holds the two gates of one report. The zero value is not usable;
// start from NewState so both gates are open.
type State struct {
	Mass gate `json:"mass"`
	NME  gate `json:"nme"`
	// Strict nulls dependent fields whose gate is still unresolved.
	Strict bool `json:"-"`
}

func NewState(strict bool) State {
	return State{
		Mass:   gate{Open: true},
		NME:    gate{Open: true},
		Strict: strict,
	}
}

func (s *State) get(g fields.Gate) *gate {
	switch g {
	case fields.GateMass:
		return &s.Mass
	case fields.GateNME:
		return &s.NME
	}
	return nil
}

// Resolve records the parent field's outcome: the gate is open iff value
// equals the positive value.
func (s *State) Resolve(g fields.Gate, value fields.Value, positive string) {
	st := s.get(g)
	if st == nil {
		return
	}
	st.Open = value.Is(positive)
	st.Resolved = true
}

func (s State) Open(g fields.Gate) bool {
	st := s.get(g)
	return st == nil || st.Open
}

func (s State) Resolved(g fields.Gate) bool {
	st := s.get(g)
	return st == nil || st.Resolved
}

// Apply enforces the gate of spec on v. Ungated fields pass unchanged. A
// closed gate nulls the value unless the field keeps explicit negatives. An
// unresolved gate passes the value in soft mode and nulls it in strict mode;
// both report Unresolved so callers can record the issue.
func Apply(spec fields.FieldSpec, v fields.Value, s State) (fields.Value, Outcome) {
	if spec.Gate == fields.GateNone {
		return v, Passed
	}
	if !s.Resolved(spec.Gate) {
		if s.Strict {
			return fields.Null(), Unresolved
		}
		return v, Unresolved
	}
	if s.Open(spec.Gate) {
		return v, Passed
	}
	if spec.KeepNegativeUnderGate && spec.Negative != "" && v.Is(spec.Negative) {
		return v, KeptNegative
	}
	if v.IsNull() {
		return v, Passed
	}
	return fields.Null(), Suppressed
}
