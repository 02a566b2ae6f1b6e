package output

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/joelkehle/breast-mri-extract/internal/record"
)

type xmlReports struct {
	XMLName  xml.Name     `xml:"reports"`
	Patients []xmlPatient `xml:"patient"`
}

type xmlPatient struct {
	ID     string     `xml:"id,attr"`
	Fields []xmlField `xml:",any"`
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// XMLWriter stores <reports><patient id=".."> documents with one child per
// field in alphabetical order. An existing patient node is replaced.
type XMLWriter struct {
	path string
}

func NewXMLWriter(path string) *XMLWriter {
	return &XMLWriter{path: path}
}

func (w *XMLWriter) Write(patientID string, flat record.Flat) error {
	doc, err := loadXML(w.path)
	if err != nil {
		return err
	}
	doc.Patients = slices.DeleteFunc(doc.Patients, func(p xmlPatient) bool { return p.ID == patientID })

	cells := flat.Strings()
	keys := make([]string, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	p := xmlPatient{ID: patientID}
	for _, k := range keys {
		p.Fields = append(p.Fields, xmlField{XMLName: xml.Name{Local: k}, Value: cells[k]})
	}
	doc.Patients = append(doc.Patients, p)

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode xml: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(body)
	buf.WriteByte('\n')
	return atomicWrite(w.path, buf.Bytes())
}

func loadXML(path string) (xmlReports, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(bytes.TrimSpace(b)) == 0) {
		return xmlReports{}, nil
	}
	if err != nil {
		return xmlReports{}, fmt.Errorf("read xml: %w", err)
	}
	var doc xmlReports
	if err := xml.Unmarshal(b, &doc); err != nil {
		return xmlReports{}, fmt.Errorf("parse xml export %s: %w", path, err)
	}
	return doc, nil
}
