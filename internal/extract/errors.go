package extract

import (
	"errors"
	"fmt"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/gating"
	"github.com/joelkehle/breast-mri-extract/internal/record"
)

var (
	ErrSchemaViolation = fields.ErrSchemaViolation
	ErrGateUnresolved  = gating.ErrGateUnresolved
	// ErrAmbiguousEvidence is informational: an ambiguity default was applied.
	ErrAmbiguousEvidence     = errors.New("ambiguous evidence")
	ErrExternalClientFailure = errors.New("external client failure")
)

// GroupError is an issue raised while extracting one group. Key is empty when
// the issue concerns the whole group.
type GroupError struct {
	Group string
	Key   string
	Err   error
}

func (e *GroupError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("group %s: %v", e.Group, e.Err)
	}
	return fmt.Sprintf("group %s: %s: %v", e.Group, e.Key, e.Err)
}

func (e *GroupError) Unwrap() error { return e.Err }

// Kind is the stable issue label stored alongside records.
func (e *GroupError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrExternalClientFailure):
		return "external_client_failure"
	case errors.Is(e.Err, ErrSchemaViolation):
		return "schema_violation"
	case errors.Is(e.Err, ErrGateUnresolved):
		return "gate_unresolved"
	case errors.Is(e.Err, ErrAmbiguousEvidence):
		return "ambiguous_evidence"
	}
	return "error"
}

func (e *GroupError) Issue() record.Issue {
	return record.Issue{Group: e.Group, Key: e.Key, Kind: e.Kind(), Message: e.Err.Error()}
}
