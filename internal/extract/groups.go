package extract

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
)

// Group is a set of fields extracted by one generator call.
type Group struct {
	Name string   `yaml:"name" json:"name"`
	Keys []string `yaml:"keys" json:"keys"`
}

// DefaultGroups returns the standard extraction order. Gate fields come
// before the groups that depend on them.
func DefaultGroups() []Group {
	return []Group{
		{Name: "history", Keys: []string{fields.KeyBIRADS, fields.KeyExamDate, fields.KeyFamilyHistory, fields.KeyACR, fields.KeyBPE}},
		{Name: "mass", Keys: []string{fields.KeyMass}},
		{Name: "mass_attributes", Keys: []string{fields.KeyMassDiameter, fields.KeyMassMargins, fields.KeyMassEnhancementPattern, fields.KeyRadialSpiculations, fields.KeyNonEnhancingSepta}},
		{Name: "nme", Keys: []string{fields.KeyNME}},
		{Name: "nme_attributes", Keys: []string{fields.KeyNMEDiameter, fields.KeyNMEMargins, fields.KeyNMEEnhancementPattern, fields.KeyNMELinear, fields.KeyNMESegmental, fields.KeyNMERegional, fields.KeyNMEBilateral}},
		{Name: "kinetics", Keys: []string{fields.KeyEnhancementPresence, fields.KeyNonEnhancingFindings, fields.KeyCurveMorphology, fields.KeyADC}},
		{Name: "laterality", Keys: []string{fields.KeyLaterality, fields.KeyBreast}},
	}
}

type groupFile struct {
	Groups []Group `yaml:"groups"`
}

// LoadGroups reads a YAML or JSON group list. The file is either a bare list
// or an object with a "groups" list.
func LoadGroups(path string, catalog *fields.Catalog) ([]Group, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read groups: %w", err)
	}
	return ParseGroups(b, catalog)
}

func ParseGroups(b []byte, catalog *fields.Catalog) ([]Group, error) {
	var groups []Group
	if err := yaml.Unmarshal(b, &groups); err != nil {
		var f groupFile
		if err2 := yaml.Unmarshal(b, &f); err2 != nil {
			return nil, fmt.Errorf("parse groups: %w", err2)
		}
		groups = f.Groups
	}
	if err := ValidateGroups(groups, catalog); err != nil {
		return nil, err
	}
	return groups, nil
}

// ValidateGroups checks names are unique and every key is in the catalog.
func ValidateGroups(groups []Group, catalog *fields.Catalog) error {
	if len(groups) == 0 {
		return fmt.Errorf("no groups defined")
	}
	seen := make(map[string]bool, len(groups))
	for i, g := range groups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return fmt.Errorf("group %d has no name", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate group %q", name)
		}
		seen[name] = true
		if len(g.Keys) == 0 {
			return fmt.Errorf("group %q has no keys", name)
		}
		if _, err := catalog.Specs(g.Keys); err != nil {
			return fmt.Errorf("group %q: %w", name, err)
		}
	}
	return nil
}
