// Package prompt assembles the extraction request sent to the structured
// generator for one field group.
package prompt

import (
	"strings"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
)

const DefaultPreamble = "Task: Read the medical report (may be in Greek) and extract ONLY the following if present:"

const nullInstruction = "If an item is missing, return null. No extra keys."

type Builder struct {
	catalog  *fields.Catalog
	preamble string
}

func NewBuilder(catalog *fields.Catalog) *Builder {
	return &Builder{catalog: catalog, preamble: DefaultPreamble}
}

// WithPreamble returns a copy of the builder that uses a different task
// line.
func (b *Builder) WithPreamble(p string) *Builder {
	cp := *b
	if strings.TrimSpace(p) != "" {
		cp.preamble = p
	}
	return &cp
}

// Build renders the prompt for keys, in the order given.
func (b *Builder) Build(report string, keys []string) (string, error) {
	specs, err := b.catalog.Specs(keys)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(b.preamble)
	sb.WriteString("\n")
	for _, s := range specs {
		sb.WriteString(s.Policy.Text())
	}
	sb.WriteString("\nOutput ONLY JSON:\n{ ")
	for i, s := range specs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(s.Stub)
	}
	sb.WriteString(" }\n")
	sb.WriteString(nullInstruction)
	sb.WriteString("\n\nReport:\n\"\"\"\n")
	sb.WriteString(strings.TrimSpace(report))
	sb.WriteString("\n\"\"\"\nJSON:")
	return sb.String(), nil
}
