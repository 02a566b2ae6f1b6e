package fields

import (
	"fmt"
	"sync"
)

// Catalog is a read-only registry of field specs, safe for concurrent reads.
type Catalog struct {
	specs map[string]FieldSpec
	order []string
}

func NewCatalog(specs ...FieldSpec) (*Catalog, error) {
	c := &Catalog{specs: make(map[string]FieldSpec, len(specs))}
	for _, s := range specs {
		if s.Key == "" {
			return nil, fmt.Errorf("field spec without key")
		}
		if _, dup := c.specs[s.Key]; dup {
			return nil, fmt.Errorf("duplicate field %q", s.Key)
		}
		if s.Gate != GateNone && s.Controls != GateNone {
			return nil, fmt.Errorf("field %q both controls and depends on a gate", s.Key)
		}
		c.specs[s.Key] = s
		c.order = append(c.order, s.Key)
	}
	return c, nil
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := NewCatalog(defaultSpecs()...)
	if err != nil {
		panic(err)
	}
	return c
})

// Default returns the built-in catalog.
func Default() *Catalog { return defaultCatalog() }

func (c *Catalog) Lookup(key string) (FieldSpec, error) {
	s, ok := c.specs[key]
	if !ok {
		return FieldSpec{}, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	return s, nil
}

// Keys returns every key in canonical order.
func (c *Catalog) Keys() []string {
	return append([]string(nil), c.order...)
}

// Specs resolves keys in the given order.
func (c *Catalog) Specs(keys []string) ([]FieldSpec, error) {
	out := make([]FieldSpec, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			return nil, fmt.Errorf("field %q requested twice", k)
		}
		seen[k] = true
		s, err := c.Lookup(k)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Schema builds the output contract for an ordered key list.
func (c *Catalog) Schema(keys []string) (*Schema, error) {
	specs, err := c.Specs(keys)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("schema needs at least one field")
	}
	return &Schema{specs: specs}, nil
}

// Dependents returns the keys gated by g.
func (c *Catalog) Dependents(g Gate) []string {
	var out []string
	for _, k := range c.order {
		if c.specs[k].Gate == g {
			out = append(out, k)
		}
	}
	return out
}

// WithKeepNegative returns a copy of the catalog in which exactly the listed
// gated fields keep an explicit negative under a closed gate.
func (c *Catalog) WithKeepNegative(keys []string) (*Catalog, error) {
	keep := make(map[string]bool, len(keys))
	for _, k := range keys {
		s, err := c.Lookup(k)
		if err != nil {
			return nil, err
		}
		if s.Gate == GateNone || s.Negative == "" {
			return nil, fmt.Errorf("field %q has no gated negative value", k)
		}
		keep[k] = true
	}
	out := &Catalog{specs: make(map[string]FieldSpec, len(c.specs)), order: c.Keys()}
	for k, s := range c.specs {
		s.KeepNegativeUnderGate = keep[k]
		out.specs[k] = s
	}
	return out, nil
}
