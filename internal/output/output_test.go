package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/record"
)

func sampleRecord(id string) *record.Record {
	rec := record.New(id, "", false)
	rec.Merge(fields.Result{
		fields.KeyBIRADS:       fields.Int(4),
		fields.KeyMass:         fields.String(fields.Yes),
		fields.KeyMassMargins:  fields.String(fields.MarginClear),
		fields.KeyMassDiameter: fields.Float(7),
		fields.KeyADC:          fields.Float(0.9),
	})
	rec.Gates.Resolve(fields.GateMass, fields.String(fields.Yes), fields.Yes)
	rec.Gates.Resolve(fields.GateNME, fields.String(fields.No), fields.Yes)
	return rec
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(b, utf8BOM), "missing BOM")
	rows, err := csv.NewReader(bytes.NewReader(b[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVCreatesWithBOMAndAppends(t *testing.T) {
	cat := fields.Default()
	path := filepath.Join(t.TempDir(), "out.csv")
	w := NewCSVWriter(path)

	require.NoError(t, w.Write("pat1", sampleRecord("pat1").Flat(cat)))
	require.NoError(t, w.Write("pat2", record.New("pat2", "", false).Flat(cat)))

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, PatientColumn, rows[0][0])
	assert.Equal(t, "pat1", rows[1][0])
	assert.Equal(t, "pat2", rows[2][0])

	col := func(name string) int {
		for i, h := range rows[0] {
			if h == name {
				return i
			}
		}
		t.Fatalf("no column %s", name)
		return -1
	}
	assert.Equal(t, "4", rows[1][col(fields.KeyBIRADS)])
	assert.Equal(t, "σαφή", rows[1][col(fields.KeyMassMargins)])
	assert.Equal(t, "restricted", rows[1][col(record.KeyADCCategory)])
	assert.Equal(t, "", rows[2][col(fields.KeyBIRADS)])

	b, _ := os.ReadFile(path)
	assert.Equal(t, 1, bytes.Count(b, utf8BOM))
}

func TestCSVMigratesHeaderWithoutPatientColumn(t *testing.T) {
	cat := fields.Default()
	path := filepath.Join(t.TempDir(), "old.csv")
	require.NoError(t, os.WriteFile(path, []byte("BIRADS,Legacy\n3,x\n"), 0o644))

	require.NoError(t, NewCSVWriter(path).Write("pat9", sampleRecord("pat9").Flat(cat)))

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{PatientColumn, fields.KeyBIRADS, "Legacy"}, rows[0][:3])
	assert.Equal(t, []string{"", "3", "x"}, rows[1][:3])
	assert.Equal(t, "pat9", rows[2][0])
	assert.Equal(t, "4", rows[2][1])
	assert.Equal(t, "", rows[2][2])
	assert.Len(t, rows[0], 3+len(cat.Keys()))
}

func TestJSONMergesAndOverwritesPatient(t *testing.T) {
	cat := fields.Default()
	path := filepath.Join(t.TempDir(), "out.json")
	w := NewJSONWriter(path)

	require.NoError(t, w.Write("pat1", record.New("pat1", "", false).Flat(cat)))
	require.NoError(t, w.Write("pat2", sampleRecord("pat2").Flat(cat)))
	require.NoError(t, w.Write("pat1", sampleRecord("pat1").Flat(cat)))

	payload, err := LoadJSON(path)
	require.NoError(t, err)
	require.Len(t, payload, 2)
	assert.Equal(t, 4.0, payload["pat1"][fields.KeyBIRADS])
	assert.Equal(t, "σαφή", payload["pat1"][fields.KeyMassMargins])
	assert.Nil(t, payload["pat1"][fields.KeyNME])

	b, _ := os.ReadFile(path)
	assert.Contains(t, string(b), "σαφή")

	_, err = LoadJSONPatient(path, "nobody")
	assert.True(t, errors.Is(err, ErrPatientNotFound))
}

func TestJSONRefusesToClobberCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("[1,2"), 0o644))
	err := NewJSONWriter(path).Write("p", record.Flat{})
	assert.Error(t, err)
	b, _ := os.ReadFile(path)
	assert.Equal(t, "[1,2", string(b))
}

func TestXMLReplacesPatientAndSortsFields(t *testing.T) {
	cat := fields.Default()
	path := filepath.Join(t.TempDir(), "out.xml")
	w := NewXMLWriter(path)

	require.NoError(t, w.Write("pat1", record.New("pat1", "", false).Flat(cat)))
	require.NoError(t, w.Write("pat2", sampleRecord("pat2").Flat(cat)))
	require.NoError(t, w.Write("pat1", sampleRecord("pat1").Flat(cat)))

	doc, err := loadXML(path)
	require.NoError(t, err)
	require.Len(t, doc.Patients, 2)
	assert.Equal(t, "pat2", doc.Patients[0].ID)
	assert.Equal(t, "pat1", doc.Patients[1].ID)

	names := make([]string, 0, len(doc.Patients[1].Fields))
	for _, f := range doc.Patients[1].Fields {
		names = append(names, f.XMLName.Local)
		if f.XMLName.Local == fields.KeyBIRADS {
			assert.Equal(t, "4", f.Value)
		}
	}
	assert.IsNonDecreasing(t, names)

	b, _ := os.ReadFile(path)
	assert.True(t, strings.HasPrefix(string(b), "<?xml"))
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	cat := fields.Default()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "mri.db"), cat, RunInfo{Model: "m", CueVersion: "v2"})
	require.NoError(t, err)
	defer store.Close()

	rec := sampleRecord("pat1")
	rec.AddIssue(record.Issue{Group: "nme", Key: fields.KeyNME, Kind: "schema_violation", Message: "bad"})
	require.NoError(t, store.Save(ctx, "run-1", rec))

	got, err := store.LoadRecord(ctx, "pat1")
	require.NoError(t, err)
	assert.True(t, got.Findings.Mass.Is(fields.Yes))
	n, ok := got.Findings.BIRADS.IntValue()
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	d, _ := got.Findings.MassDiameter.FloatValue()
	assert.Equal(t, fields.KindFloat, got.Findings.MassDiameter.Kind())
	assert.Equal(t, 7.0, d)
	assert.True(t, got.Findings.NME.IsNull())
	assert.True(t, got.Gates.Resolved(fields.GateMass))
	assert.False(t, got.Gates.Open(fields.GateNME))
	require.Len(t, got.Issues, 1)
	assert.Equal(t, "schema_violation", got.Issues[0].Kind)

	rec2 := sampleRecord("pat1")
	rec2.Findings.BIRADS = fields.Int(5)
	require.NoError(t, store.Save(ctx, "run-2", rec2))
	require.NoError(t, store.Save(ctx, "run-2", sampleRecord("pat0")))

	got, err = store.LoadRecord(ctx, "pat1")
	require.NoError(t, err)
	n, _ = got.Findings.BIRADS.IntValue()
	assert.Equal(t, 5, n)
	assert.Empty(t, got.Issues)

	ids, err := store.ListPatients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pat0", "pat1"}, ids)

	_, err = store.LoadRecord(ctx, "missing")
	assert.True(t, errors.Is(err, ErrPatientNotFound))
}

type failingWriter struct{ calls int }

func (f *failingWriter) Write(string, record.Flat) error {
	f.calls++
	return errors.New("read-only")
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	cat := fields.Default()
	dir := t.TempDir()
	bad := &failingWriter{}
	sink := NewMultiSink(cat).
		AddWriter("broken", bad).
		AddWriter("json", NewJSONWriter(filepath.Join(dir, "out.json")))
	assert.False(t, sink.Empty())

	err := sink.Save(context.Background(), "run", sampleRecord("pat1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: read-only")
	assert.Equal(t, 1, bad.calls)

	payload, err := LoadJSON(filepath.Join(dir, "out.json"))
	require.NoError(t, err)
	assert.Contains(t, payload, "pat1")
}
