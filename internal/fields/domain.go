package fields

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/joelkehle/breast-mri-extract/internal/textnorm"
)

// DomainKind is the shape of a field's allowed values.
type DomainKind int

const (
	DomainEnum DomainKind = iota
	DomainInt
	DomainFloat
	DomainPattern
)

// Domain constrains the values a field may hold.
type Domain struct {
	Kind    DomainKind
	Allowed []string
	Ints    []int
	Min     float64
	Max     float64
	Unit    string
	Pattern *regexp.Regexp
	// Normalize canonicalises a pattern-domain string before it is checked.
	Normalize func(string) (string, bool)
}

func Enum(values ...string) Domain {
	return Domain{Kind: DomainEnum, Allowed: values}
}

func IntRange(lo, hi int) Domain {
	return Domain{Kind: DomainInt, Min: float64(lo), Max: float64(hi)}
}

func IntSet(values ...int) Domain {
	d := Domain{Kind: DomainInt, Ints: values, Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		d.Min = math.Min(d.Min, float64(v))
		d.Max = math.Max(d.Max, float64(v))
	}
	return d
}

func FloatRange(lo, hi float64, unit string) Domain {
	return Domain{Kind: DomainFloat, Min: lo, Max: hi, Unit: unit}
}

func PatternDomain(pattern string, normalize func(string) (string, bool)) Domain {
	return Domain{Kind: DomainPattern, Pattern: regexp.MustCompile(pattern), Normalize: normalize}
}

var nullWords = map[string]bool{"": true, "null": true, "none": true, "n/a": true}

// Coerce converts a decoded JSON value into a Value inside the domain. The
// error explains why the raw value was rejected.
func (d Domain) Coerce(raw any) (Value, error) {
	if raw == nil {
		return Null(), nil
	}
	if s, ok := raw.(string); ok && nullWords[strings.ToLower(strings.TrimSpace(s))] {
		return Null(), nil
	}
	switch d.Kind {
	case DomainEnum:
		return d.coerceEnum(raw)
	case DomainInt:
		return d.coerceInt(raw)
	case DomainFloat:
		return d.coerceFloat(raw)
	case DomainPattern:
		return d.coercePattern(raw)
	}
	return Null(), fmt.Errorf("unknown domain kind %d", d.Kind)
}

// Contains reports whether v is null or an allowed member of the domain.
func (d Domain) Contains(v Value) bool {
	if v.IsNull() {
		return true
	}
	got, err := d.Coerce(v.Any())
	return err == nil && got.Equal(v)
}

func (d Domain) coerceEnum(raw any) (Value, error) {
	s, ok := raw.(string)
	if !ok {
		return Null(), fmt.Errorf("expected a string, got %T", raw)
	}
	s = strings.TrimSpace(s)
	for _, a := range d.Allowed {
		if s == a {
			return String(a), nil
		}
	}
	folded := textnorm.Fold(s)
	for _, a := range d.Allowed {
		if folded == textnorm.Fold(a) {
			return String(a), nil
		}
	}
	return Null(), fmt.Errorf("%q is not one of %s", s, strings.Join(d.Allowed, "/"))
}

func (d Domain) coerceInt(raw any) (Value, error) {
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case float64:
		if v != math.Trunc(v) {
			return Null(), fmt.Errorf("%v is not an integer", v)
		}
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			roman, ok := textnorm.RomanToInt(v)
			if !ok {
				return Null(), fmt.Errorf("%q is not an integer", v)
			}
			parsed = roman
		}
		n = parsed
	default:
		return Null(), fmt.Errorf("expected an integer, got %T", raw)
	}
	if float64(n) < d.Min || float64(n) > d.Max {
		return Null(), fmt.Errorf("%d is outside %v..%v", n, d.Min, d.Max)
	}
	if len(d.Ints) > 0 {
		for _, allowed := range d.Ints {
			if n == allowed {
				return Int(n), nil
			}
		}
		return Null(), fmt.Errorf("%d is not one of %v", n, d.Ints)
	}
	return Int(n), nil
}

func (d Domain) coerceFloat(raw any) (Value, error) {
	var f float64
	switch v := raw.(type) {
	case int:
		f = float64(v)
	case float64:
		f = v
	case string:
		parsed, err := textnorm.ParseNumber(v)
		if err != nil {
			return Null(), fmt.Errorf("%q is not a number", v)
		}
		f = parsed
	default:
		return Null(), fmt.Errorf("expected a number, got %T", raw)
	}
	if math.IsNaN(f) || f < d.Min || f > d.Max {
		return Null(), fmt.Errorf("%v is outside %v..%v", f, d.Min, d.Max)
	}
	return Float(f), nil
}

func (d Domain) coercePattern(raw any) (Value, error) {
	s, ok := raw.(string)
	if !ok {
		return Null(), fmt.Errorf("expected a string, got %T", raw)
	}
	s = strings.TrimSpace(s)
	if d.Normalize != nil {
		norm, ok := d.Normalize(s)
		if !ok {
			return Null(), fmt.Errorf("%q cannot be normalised", s)
		}
		s = norm
	}
	if !d.Pattern.MatchString(s) {
		return Null(), fmt.Errorf("%q does not match %s", s, d.Pattern)
	}
	return String(s), nil
}

// JSONSchema describes the domain as a nullable JSON schema property.
func (d Domain) JSONSchema() map[string]any {
	switch d.Kind {
	case DomainEnum:
		enum := make([]any, 0, len(d.Allowed)+1)
		for _, a := range d.Allowed {
			enum = append(enum, a)
		}
		return map[string]any{"type": []string{"string", "null"}, "enum": append(enum, nil)}
	case DomainInt:
		prop := map[string]any{"type": []string{"integer", "null"}, "minimum": d.Min, "maximum": d.Max}
		if len(d.Ints) > 0 {
			enum := make([]any, 0, len(d.Ints)+1)
			for _, n := range d.Ints {
				enum = append(enum, n)
			}
			prop["enum"] = append(enum, nil)
		}
		return prop
	case DomainFloat:
		prop := map[string]any{"type": []string{"number", "null"}, "minimum": d.Min, "maximum": d.Max}
		if d.Unit != "" {
			prop["description"] = "unit: " + d.Unit
		}
		return prop
	default:
		return map[string]any{"type": []string{"string", "null"}, "pattern": d.Pattern.String()}
	}
}

// Describe is a short human-readable form used by the fields listing.
func (d Domain) Describe() string {
	switch d.Kind {
	case DomainEnum:
		return strings.Join(d.Allowed, " | ")
	case DomainInt:
		if len(d.Ints) > 0 {
			parts := make([]string, len(d.Ints))
			for i, n := range d.Ints {
				parts[i] = strconv.Itoa(n)
			}
			return "integer " + strings.Join(parts, " | ")
		}
		return fmt.Sprintf("integer %v..%v", d.Min, d.Max)
	case DomainFloat:
		return strings.TrimSpace(fmt.Sprintf("number %v..%v %s", d.Min, d.Max, d.Unit))
	default:
		return "string " + d.Pattern.String()
	}
}
