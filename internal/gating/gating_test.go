package gating

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
)

func spec(t *testing.T, key string) fields.FieldSpec {
	t.Helper()
	s, err := fields.Default().Lookup(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewStateStartsOpenAndUnresolved(t *testing.T) {
	s := NewState(false)
	assert.True(t, s.Open(fields.GateMass))
	assert.True(t, s.Open(fields.GateNME))
	assert.False(t, s.Resolved(fields.GateMass))
	assert.True(t, s.Resolved(fields.GateNone))
}

func TestResolve(t *testing.T) {
	s := NewState(false)
	s.Resolve(fields.GateMass, fields.String(fields.No), fields.Yes)
	assert.False(t, s.Open(fields.GateMass))
	assert.True(t, s.Resolved(fields.GateMass))

	s.Resolve(fields.GateMass, fields.String(fields.Yes), fields.Yes)
	assert.True(t, s.Open(fields.GateMass))

	s.Resolve(fields.GateNME, fields.Null(), fields.Yes)
	assert.False(t, s.Open(fields.GateNME))
}

func TestApplyClosedGateSuppresses(t *testing.T) {
	s := NewState(false)
	s.Resolve(fields.GateMass, fields.String(fields.No), fields.Yes)

	v, out := Apply(spec(t, fields.KeyMassDiameter), fields.Float(7), s)
	assert.True(t, v.IsNull())
	assert.Equal(t, Suppressed, out)

	v, out = Apply(spec(t, fields.KeyRadialSpiculations), fields.String(fields.No), s)
	assert.True(t, v.IsNull())
	assert.Equal(t, Suppressed, out)
}

func TestApplyKeepsFlaggedNegative(t *testing.T) {
	s := NewState(false)
	s.Resolve(fields.GateNME, fields.String(fields.No), fields.Yes)

	v, out := Apply(spec(t, fields.KeyNMESegmental), fields.String(fields.No), s)
	assert.True(t, v.Is(fields.No))
	assert.Equal(t, KeptNegative, out)

	v, out = Apply(spec(t, fields.KeyNMESegmental), fields.String(fields.Yes), s)
	assert.True(t, v.IsNull())
	assert.Equal(t, Suppressed, out)

	v, _ = Apply(spec(t, fields.KeyNMELinear), fields.String(fields.No), s)
	assert.True(t, v.IsNull())
}

func TestApplyOpenGatePasses(t *testing.T) {
	s := NewState(false)
	s.Resolve(fields.GateMass, fields.String(fields.Yes), fields.Yes)
	v, out := Apply(spec(t, fields.KeyMassMargins), fields.String(fields.MarginClear), s)
	assert.True(t, v.Is(fields.MarginClear))
	assert.Equal(t, Passed, out)
}

func TestApplyUnresolved(t *testing.T) {
	soft := NewState(false)
	v, out := Apply(spec(t, fields.KeyMassDiameter), fields.Float(9), soft)
	assert.Equal(t, fields.Float(9), v)
	assert.Equal(t, Unresolved, out)

	strict := NewState(true)
	v, out = Apply(spec(t, fields.KeyMassDiameter), fields.Float(9), strict)
	assert.True(t, v.IsNull())
	assert.Equal(t, Unresolved, out)
}

func TestApplyUngated(t *testing.T) {
	s := NewState(true)
	v, out := Apply(spec(t, fields.KeyBIRADS), fields.Int(4), s)
	assert.Equal(t, fields.Int(4), v)
	assert.Equal(t, Passed, out)
}
