// Package output persists extracted records as CSV, JSON, XML and SQLite.
package output

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/record"
)

// Writer stores one flat record.
type Writer interface {
	Write(patientID string, flat record.Flat) error
}

// Store persists whole records, issues included.
type Store interface {
	Save(ctx context.Context, runID string, rec *record.Record) error
}

// MultiSink fans a record out to every configured destination. Writes are
// serialised so file-based writers can read-modify-write safely.
type MultiSink struct {
	mu      sync.Mutex
	catalog *fields.Catalog
	writers map[string]Writer
	names   []string
	stores  []Store
}

func NewMultiSink(catalog *fields.Catalog) *MultiSink {
	return &MultiSink{catalog: catalog, writers: map[string]Writer{}}
}

// AddWriter registers a named writer. Names appear in errors.
func (m *MultiSink) AddWriter(name string, w Writer) *MultiSink {
	m.writers[name] = w
	m.names = append(m.names, name)
	return m
}

func (m *MultiSink) AddStore(s Store) *MultiSink {
	m.stores = append(m.stores, s)
	return m
}

func (m *MultiSink) Empty() bool {
	return len(m.writers) == 0 && len(m.stores) == 0
}

// Save writes rec everywhere and joins the failures. One failing
// destination does not stop the others.
func (m *MultiSink) Save(ctx context.Context, runID string, rec *record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	flat := rec.Flat(m.catalog)
	var errs []error
	for _, name := range m.names {
		if err := m.writers[name].Write(rec.PatientID, flat); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	for _, s := range m.stores {
		if err := s.Save(ctx, runID, rec); err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
	}
	return errors.Join(errs...)
}
