package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joelkehle/breast-mri-extract/internal/record"
)

// ErrPatientNotFound is returned when an export has no entry for a patient.
var ErrPatientNotFound = errors.New("patient not found")

// JSONWriter keeps one object keyed by patient id. Writing a patient that is
// already present replaces its entry.
type JSONWriter struct {
	path string
}

func NewJSONWriter(path string) *JSONWriter {
	return &JSONWriter{path: path}
}

func (w *JSONWriter) Write(patientID string, flat record.Flat) error {
	payload, err := LoadJSON(w.path)
	if err != nil {
		return err
	}
	payload[patientID] = flat.Values()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return atomicWrite(w.path, buf.Bytes())
}

// LoadJSON reads a JSON export. A missing file is an empty export; a file
// that is not an object is an error so it is never overwritten.
func LoadJSON(path string) (map[string]map[string]any, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	payload := map[string]map[string]any{}
	if len(bytes.TrimSpace(b)) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, fmt.Errorf("parse json export %s: %w", path, err)
	}
	return payload, nil
}

// LoadJSONPatient returns one patient's entry from a JSON export.
func LoadJSONPatient(path, patientID string) (map[string]any, error) {
	payload, err := LoadJSON(path)
	if err != nil {
		return nil, err
	}
	entry, ok := payload[patientID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, patientID)
	}
	return entry, nil
}

// atomicWrite writes to a temporary sibling and renames it over path.
func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
