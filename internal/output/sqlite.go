package output

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/gating"
	"github.com/joelkehle/breast-mri-extract/internal/record"
)

// SQLiteStore keeps the latest value of every field per patient, the gate
// state, and an append-only issue log tagged with the run that raised it.
type SQLiteStore struct {
	db      *sqlx.DB
	catalog *fields.Catalog
	info    RunInfo
}

// RunInfo is stored once per batch run.
type RunInfo struct {
	Model      string
	CueVersion string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	model       TEXT NOT NULL DEFAULT '',
	cue_version TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	patient_id TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	truncated  INTEGER NOT NULL DEFAULT 0,
	gates      TEXT NOT NULL DEFAULT '{}',
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS field_values (
	patient_id TEXT NOT NULL,
	field      TEXT NOT NULL,
	kind       TEXT NOT NULL DEFAULT 'null',
	value      TEXT NOT NULL DEFAULT '',
	run_id     TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (patient_id, field)
);

CREATE TABLE IF NOT EXISTS issues (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	patient_id TEXT NOT NULL,
	grp        TEXT NOT NULL DEFAULT '',
	field      TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS issues_patient ON issues (patient_id, run_id);
`

func NewSQLiteStore(dbPath string, catalog *fields.Catalog, info RunInfo) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, catalog: catalog, info: info}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func encodeValue(v fields.Value) (kind, text string) {
	switch v.Kind() {
	case fields.KindString:
		return "string", v.Format()
	case fields.KindInt:
		return "int", v.Format()
	case fields.KindFloat:
		return "float", v.Format()
	}
	return "null", ""
}

func decodeValue(kind, text string) (fields.Value, error) {
	switch kind {
	case "string":
		return fields.String(text), nil
	case "int":
		n, err := strconv.Atoi(text)
		if err != nil {
			return fields.Null(), err
		}
		return fields.Int(n), nil
	case "float":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return fields.Null(), err
		}
		return fields.Float(f), nil
	}
	return fields.Null(), nil
}

// Save upserts the record's current values and appends its issues.
func (s *SQLiteStore) Save(ctx context.Context, runID string, rec *record.Record) error {
	gates, err := json.Marshal(rec.Gates)
	if err != nil {
		return fmt.Errorf("encode gates: %w", err)
	}
	ts := now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (run_id, model, cue_version, started_at) VALUES (?, ?, ?, ?)`,
		runID, s.info.Model, s.info.CueVersion, ts); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO records (patient_id, run_id, truncated, gates, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(patient_id) DO UPDATE SET
			run_id = excluded.run_id, truncated = excluded.truncated,
			gates = excluded.gates, updated_at = excluded.updated_at`,
		rec.PatientID, runID, boolToInt(rec.Truncated), string(gates), ts); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	for _, e := range rec.Flat(s.catalog) {
		kind, text := encodeValue(e.Value)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO field_values (patient_id, field, kind, value, run_id, updated_at) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(patient_id, field) DO UPDATE SET
				kind = excluded.kind, value = excluded.value,
				run_id = excluded.run_id, updated_at = excluded.updated_at`,
			rec.PatientID, e.Key, kind, text, runID, ts); err != nil {
			return fmt.Errorf("save field %s: %w", e.Key, err)
		}
	}
	for _, is := range rec.Issues {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO issues (run_id, patient_id, grp, field, kind, message, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, rec.PatientID, is.Group, is.Key, is.Kind, is.Message, ts); err != nil {
			return fmt.Errorf("save issue: %w", err)
		}
	}
	return tx.Commit()
}

type recordRow struct {
	PatientID string `db:"patient_id"`
	RunID     string `db:"run_id"`
	Truncated int    `db:"truncated"`
	Gates     string `db:"gates"`
}

type fieldRow struct {
	Field string `db:"field"`
	Kind  string `db:"kind"`
	Value string `db:"value"`
}

type issueRow struct {
	Group   string `db:"grp"`
	Field   string `db:"field"`
	Kind    string `db:"kind"`
	Message string `db:"message"`
}

// LoadRecord rebuilds a patient's stored record. Issues come from the run
// that last wrote the record.
func (s *SQLiteStore) LoadRecord(ctx context.Context, patientID string) (*record.Record, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row, `SELECT patient_id, run_id, truncated, gates FROM records WHERE patient_id = ?`, patientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, patientID)
	}
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	rec := &record.Record{PatientID: row.PatientID, Truncated: row.Truncated != 0, Gates: gating.NewState(false)}
	if err := json.Unmarshal([]byte(row.Gates), &rec.Gates); err != nil {
		return nil, fmt.Errorf("decode gates: %w", err)
	}

	var vals []fieldRow
	if err := s.db.SelectContext(ctx, &vals, `SELECT field, kind, value FROM field_values WHERE patient_id = ?`, patientID); err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	for _, fv := range vals {
		if fv.Field == record.KeyADCCategory {
			continue
		}
		v, err := decodeValue(fv.Kind, fv.Value)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", fv.Field, err)
		}
		if err := rec.Findings.Set(fv.Field, v); err != nil {
			return nil, err
		}
	}

	var issues []issueRow
	if err := s.db.SelectContext(ctx, &issues,
		`SELECT grp, field, kind, message FROM issues WHERE patient_id = ? AND run_id = ? ORDER BY id`,
		patientID, row.RunID); err != nil {
		return nil, fmt.Errorf("load issues: %w", err)
	}
	for _, is := range issues {
		rec.AddIssue(record.Issue{Group: is.Group, Key: is.Field, Kind: is.Kind, Message: is.Message})
	}
	return rec, nil
}

func (s *SQLiteStore) ListPatients(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT patient_id FROM records ORDER BY patient_id`); err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return ids, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
