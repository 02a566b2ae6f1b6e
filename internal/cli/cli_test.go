package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/output"
)

const leftMassReport = "ACR C. Στο αριστερό μαστό, μάζα με σαφή όρια, ομοιογενής ενίσχυση, διαμέτρου 7 χιλ. Δεν παρατηρείται μη μαζόμορφη ενίσχυση."

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MRI_EXTRACT_LLM_PROVIDER", "none")
	t.Setenv("MRI_EXTRACT_LOG_LEVEL", "error")
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func reportDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p1.txt"), []byte(leftMassReport), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0o644))
	return dir
}

func TestExtractThenRender(t *testing.T) {
	dir := reportDir(t)
	outDir := t.TempDir()
	jsonPath := filepath.Join(outDir, "out.json")
	dbPath := filepath.Join(outDir, "mri.db")

	stdout, err := execute(t, "extract", dir, "--matcher-only",
		"--json", jsonPath,
		"--csv", filepath.Join(outDir, "out.csv"),
		"--sqlite", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 reports, 0 failed")

	payload, err := output.LoadJSON(jsonPath)
	require.NoError(t, err)
	require.Contains(t, payload, "p1")
	assert.Equal(t, fields.Yes, payload["p1"][fields.KeyMass])
	assert.Equal(t, fields.No, payload["p1"][fields.KeyNME])
	assert.Nil(t, payload["p1"][fields.KeyNMEDiameter])
	assert.FileExists(t, filepath.Join(outDir, "out.csv"))

	md, err := execute(t, "render", "p1", "--json", jsonPath)
	require.NoError(t, err)
	assert.Contains(t, md, "# Breast MRI Findings: p1")
	assert.Contains(t, md, "| MASS | Yes |")

	md, err = execute(t, "render", "p1", "--sqlite", dbPath)
	require.NoError(t, err)
	assert.Contains(t, md, "Source: result store")

	htmlPath := filepath.Join(outDir, "p1.html")
	_, err = execute(t, "render", "p1", "--json", jsonPath, "--format", "html", "--out", htmlPath)
	require.NoError(t, err)
	b, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "<!doctype html>"))
}

func TestExtractNeedsReports(t *testing.T) {
	_, err := execute(t, "extract", t.TempDir())
	assert.ErrorContains(t, err, "no report files")
}

func TestRenderRejectsFormat(t *testing.T) {
	_, err := execute(t, "render", "p1", "--format", "docx")
	assert.ErrorContains(t, err, "docx")

	_, err = execute(t, "render", "p1", "--format", "pdf")
	assert.ErrorContains(t, err, "--out")
}

func TestMatchPrintsJSON(t *testing.T) {
	path := filepath.Join(reportDir(t), "p1.txt")
	stdout, err := execute(t, "match", path)
	require.NoError(t, err)

	var got map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, fields.Yes, got["p1"][fields.KeyMass])
	assert.Equal(t, fields.SideLeft, got["p1"][fields.KeyBreast])
	assert.Contains(t, stdout, fields.MarginClear)

	stdout, err = execute(t, "match", "--explain", path)
	require.NoError(t, err)
	var explained map[string]map[string]matchVerdict
	require.NoError(t, json.Unmarshal([]byte(stdout), &explained))
	assert.Equal(t, fields.Yes, explained["p1"][fields.KeyMass].Value)
}

func TestFieldsListsCatalog(t *testing.T) {
	stdout, err := execute(t, "fields")
	require.NoError(t, err)
	for _, k := range fields.Default().Keys() {
		assert.Contains(t, stdout, k)
	}
	assert.Contains(t, stdout, "controls")
}

func TestFieldsPromptDryRun(t *testing.T) {
	path := filepath.Join(reportDir(t), "p1.txt")
	stdout, err := execute(t, "fields", "--prompt", "--report", path, "--group", "mass")
	require.NoError(t, err)
	assert.Contains(t, stdout, "μάζα με σαφή όρια")
	assert.Contains(t, stdout, fields.KeyMass)

	_, err = execute(t, "fields", "--prompt", "--report", path, "--group", "bogus")
	assert.ErrorContains(t, err, `unknown group "bogus"`)
}

func TestDescribeDomain(t *testing.T) {
	assert.Equal(t, "Yes | No", describeDomain(fields.Enum(fields.Yes, fields.No)))
	assert.Equal(t, "number 0..10 mm", describeDomain(fields.FloatRange(0, 10, "mm")))
}
