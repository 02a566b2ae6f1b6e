package fields

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogGates(t *testing.T) {
	c := Default()
	mass, err := c.Lookup(KeyMass)
	require.NoError(t, err)
	assert.Equal(t, GateMass, mass.Controls)
	assert.Equal(t, Yes, mass.Positive)

	assert.Equal(t, []string{KeyMassDiameter, KeyMassMargins, KeyMassEnhancementPattern, KeyRadialSpiculations, KeyNonEnhancingSepta}, c.Dependents(GateMass))
	seg, err := c.Lookup(KeyNMESegmental)
	require.NoError(t, err)
	assert.True(t, seg.KeepNegativeUnderGate)
	lin, err := c.Lookup(KeyNMELinear)
	require.NoError(t, err)
	assert.False(t, lin.KeepNegativeUnderGate)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Default().Lookup("Nope")
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestEnumCoercionStaysInDomain(t *testing.T) {
	spec, _ := Default().Lookup(KeyMassMargins)
	v, err := spec.Coerce("Σαφή")
	require.NoError(t, err)
	assert.True(t, v.Is(MarginClear))

	v, err = spec.Coerce("λοβωτά")
	require.Error(t, err)
	assert.True(t, v.IsNull())
	var ve *ViolationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, KeyMassMargins, ve.Key)
	assert.True(t, errors.Is(err, ErrSchemaViolation))
}

func TestEveryEnumFieldRejectsUnknownStrings(t *testing.T) {
	c := Default()
	for _, k := range c.Keys() {
		spec, _ := c.Lookup(k)
		if spec.Domain.Kind != DomainEnum {
			continue
		}
		v, err := spec.Coerce("definitely-not-allowed")
		assert.Error(t, err, k)
		assert.True(t, spec.Domain.Contains(v), k)
		for _, a := range spec.Domain.Allowed {
			got, err := spec.Coerce(a)
			require.NoError(t, err, k)
			assert.True(t, got.Is(a), k)
		}
	}
}

func TestIntCoercion(t *testing.T) {
	birads, _ := Default().Lookup(KeyBIRADS)
	v, err := birads.Coerce("IV")
	require.NoError(t, err)
	n, ok := v.IntValue()
	require.True(t, ok)
	assert.Equal(t, 4, n)

	_, err = birads.Coerce(float64(7))
	assert.Error(t, err)

	curve, _ := Default().Lookup(KeyCurveMorphology)
	_, err = curve.Coerce(float64(0))
	assert.Error(t, err)
	v, err = curve.Coerce(float64(3))
	require.NoError(t, err)
	assert.Equal(t, Int(3), v)
}

func TestACRNormalisation(t *testing.T) {
	acr, _ := Default().Lookup(KeyACR)
	for in, want := range map[string]string{"c": "C", "C/D": "C-D", "γ-δ": "C-D", "B - C - B": "B-C"} {
		v, err := acr.Coerce(in)
		require.NoError(t, err, in)
		assert.True(t, v.Is(want), in)
	}
	_, err := acr.Coerce("E")
	assert.Error(t, err)
}

func TestSchemaJSON(t *testing.T) {
	s, err := Default().Schema([]string{KeyMass, KeyMassDiameter})
	require.NoError(t, err)
	js := s.JSON()
	assert.Equal(t, []string{KeyMass, KeyMassDiameter}, js["required"])
	assert.Equal(t, false, js["additionalProperties"])
	props := js["properties"].(map[string]any)
	assert.Contains(t, props, KeyMass)
	_, err = json.Marshal(js)
	require.NoError(t, err)
}

func TestSchemaRejectsDuplicatesAndUnknown(t *testing.T) {
	_, err := Default().Schema([]string{KeyMass, KeyMass})
	assert.Error(t, err)
	_, err = Default().Schema([]string{"Unknown"})
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestSchemaDecode(t *testing.T) {
	s, err := Default().Schema([]string{KeyMass, KeyMassDiameter, KeyMassMargins})
	require.NoError(t, err)

	res, err := s.Decode([]byte(`{"MASS":"Yes","MassDiameter":7,"MassMargins":null}`))
	require.NoError(t, err)
	assert.True(t, res[KeyMass].Is(Yes))
	assert.Equal(t, Float(7), res[KeyMassDiameter])
	assert.True(t, res[KeyMassMargins].IsNull())

	res, err = s.Decode([]byte(`{"MASS":"Maybe","MassDiameter":7,"Extra":1}`))
	var sv *SchemaViolationError
	require.ErrorAs(t, err, &sv)
	assert.True(t, sv.Violated(KeyMass))
	assert.True(t, sv.Violated(KeyMassMargins))
	assert.True(t, sv.Violated("Extra"))
	assert.False(t, sv.Violated(KeyMassDiameter))
	assert.True(t, res[KeyMass].IsNull())
	assert.Equal(t, Float(7), sv.Partial[KeyMassDiameter])

	_, err = s.Decode([]byte(`not json`))
	assert.True(t, errors.Is(err, ErrMalformedOutput))
}

func TestPolicyTextIsOrdered(t *testing.T) {
	spec, _ := Default().Lookup(KeyMass)
	text := spec.Policy.Text()
	assert.True(t, strings.HasPrefix(text, "- MASS presence"))
	neg := strings.Index(text, "A) NEGATIVE")
	pos := strings.Index(text, "B) POSITIVE")
	require.GreaterOrEqual(t, neg, 0)
	assert.Greater(t, pos, neg)
}

func TestWithKeepNegative(t *testing.T) {
	c, err := Default().WithKeepNegative([]string{KeyNMELinear})
	require.NoError(t, err)
	lin, _ := c.Lookup(KeyNMELinear)
	seg, _ := c.Lookup(KeyNMESegmental)
	assert.True(t, lin.KeepNegativeUnderGate)
	assert.False(t, seg.KeepNegativeUnderGate)

	_, err = Default().WithKeepNegative([]string{KeyMassDiameter})
	assert.Error(t, err)
}

func TestValueJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Value{"a": Null(), "b": Int(4), "c": String("Yes")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":null,"b":4,"c":"Yes"}`, string(b))

	var back map[string]Value
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back["a"].IsNull())
	assert.Equal(t, Int(4), back["b"])
	assert.Equal(t, "", Null().Format())
	assert.Equal(t, "7.5", Float(7.5).Format())
}
