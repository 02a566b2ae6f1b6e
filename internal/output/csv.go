package output

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/joelkehle/breast-mri-extract/internal/record"
)

// PatientColumn is the first CSV column.
const PatientColumn = "patID"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter appends one row per record. A new file starts with a UTF-8 BOM
// so spreadsheet tools read Greek text correctly. An existing header is
// reused; it is migrated when it lacks the patient column or a key.
type CSVWriter struct {
	path string
}

func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

func (w *CSVWriter) Write(patientID string, flat record.Flat) error {
	header, rows, err := readCSV(w.path)
	if err != nil {
		return err
	}
	cells := flat.Strings()
	cells[PatientColumn] = patientID

	if header == nil {
		header = append([]string{PatientColumn}, flat.Keys()...)
		return writeCSV(w.path, header, []map[string]string{cells})
	}

	rewrite := false
	if !slices.Contains(header, PatientColumn) {
		header = append([]string{PatientColumn}, header...)
		rewrite = true
	}
	for _, k := range flat.Keys() {
		if !slices.Contains(header, k) {
			header = append(header, k)
			rewrite = true
		}
	}
	if rewrite {
		return writeCSV(w.path, header, append(rows, cells))
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(align(header, cells)); err != nil {
		f.Close()
		return fmt.Errorf("append csv: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("append csv: %w", err)
	}
	return f.Close()
}

// readCSV returns the header and rows of an existing file, or a nil header
// when the file does not exist or is empty.
func readCSV(path string) ([]string, []map[string]string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(b, utf8BOM)))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv header: %w", err)
	}
	var rows []map[string]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse csv: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func writeCSV(path string, header []string, rows []map[string]string) error {
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	cw := csv.NewWriter(&buf)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(align(header, row)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return atomicWrite(path, buf.Bytes())
}

func align(header []string, cells map[string]string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = cells[h]
	}
	return out
}
