package report

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chromedp/chromedp"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/output"
	"github.com/joelkehle/breast-mri-extract/internal/record"
)

func sample() *record.Record {
	rec := record.New("pat7", "", false)
	rec.Merge(fields.Result{
		fields.KeyMass:         fields.String(fields.Yes),
		fields.KeyMassDiameter: fields.Float(7),
		fields.KeyNME:          fields.String(fields.No),
		fields.KeyADC:          fields.Float(1.6),
	})
	return rec
}

func TestBuildMarkdownDerivesADCCategory(t *testing.T) {
	flat := sample().Flat(fields.Default())
	for i := range flat {
		if flat[i].Key == record.KeyADCCategory {
			flat[i].Value = fields.String("restricted")
		}
	}
	md := BuildMarkdown(flat, Summary{PatientID: "pat7"})
	if !strings.Contains(md, "| ADCCategory | non-restricted |") {
		t.Fatalf("expected derived category, got:\n%s", md)
	}
	if !strings.Contains(md, "| MassDiameter | 7 |") {
		t.Fatalf("missing diameter row:\n%s", md)
	}
	if !strings.Contains(md, "- Non-mass findings: absent, dependent fields suppressed") {
		t.Fatalf("missing gate line:\n%s", md)
	}
	if !strings.Contains(md, "None recorded.") {
		t.Fatalf("expected no issues:\n%s", md)
	}
}

func TestBuildMarkdownListsIssues(t *testing.T) {
	md := BuildMarkdown(sample().Flat(fields.Default()), Summary{
		PatientID: "pat7",
		Issues:    []record.Issue{{Group: "mass", Kind: "external_client_failure", Message: "status 500 | retry"}},
	})
	if !strings.Contains(md, `| mass | — | external_client_failure | status 500 \| retry |`) {
		t.Fatalf("issue row not rendered:\n%s", md)
	}
}

func TestRebuildFromJSON(t *testing.T) {
	cat := fields.Default()
	path := filepath.Join(t.TempDir(), "out.json")
	if err := output.NewJSONWriter(path).Write("pat7", sample().Flat(cat)); err != nil {
		t.Fatalf("write: %v", err)
	}
	md, err := RebuildFromJSON(path, "pat7", cat)
	if err != nil {
		t.Fatalf("RebuildFromJSON: %v", err)
	}
	if !strings.Contains(md, "| MASS | Yes |") || !strings.Contains(md, "| ADC | 1.6 |") {
		t.Fatalf("unexpected markdown:\n%s", md)
	}
	if _, err := RebuildFromJSON(path, "nobody", cat); !errors.Is(err, output.ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestRebuildFromStore(t *testing.T) {
	ctx := context.Background()
	cat := fields.Default()
	store, err := output.NewSQLiteStore(filepath.Join(t.TempDir(), "mri.db"), cat, output.RunInfo{})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer store.Close()
	rec := sample()
	rec.AddIssue(record.Issue{Group: "nme", Key: fields.KeyNME, Kind: "ambiguous_evidence", Message: "defaulted"})
	if err := store.Save(ctx, "run", rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	md, err := RebuildFromStore(ctx, store, "pat7", cat)
	if err != nil {
		t.Fatalf("RebuildFromStore: %v", err)
	}
	if !strings.Contains(md, "ambiguous_evidence") {
		t.Fatalf("issues missing:\n%s", md)
	}
}

func TestHTMLRendererBuildsTables(t *testing.T) {
	md := BuildMarkdown(sample().Flat(fields.Default()), Summary{PatientID: "pat7"})
	out, err := NewHTMLRenderer().Render("pat7", md)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "<table>") {
		t.Fatalf("expected GFM table, got: %s", out)
	}
	if !strings.Contains(out, `<td class="empty">—</td>`) {
		t.Fatalf("expected empty cell marker, got: %s", out)
	}
	if !strings.HasPrefix(out, "<!doctype html>") {
		t.Fatalf("expected full document")
	}
}

func TestPDFPrintSettings(t *testing.T) {
	p := printParams()
	if !p.PreferCSSPageSize || !p.PrintBackground {
		t.Fatalf("expected stylesheet page size with backgrounds: %+v", p)
	}
	if !strings.Contains(p.FooterTemplate, "pageNumber") {
		t.Fatalf("footer lacks page number: %s", p.FooterTemplate)
	}

	base := len(chromedp.DefaultExecAllocatorOptions)
	if got := len((&PDFRenderer{}).allocatorOptions()); got != base+3 {
		t.Fatalf("allocator options = %d, want %d", got, base+3)
	}
	if got := len((&PDFRenderer{chromePath: "/opt/chromium/chrome"}).allocatorOptions()); got != base+4 {
		t.Fatalf("allocator options with exec path = %d, want %d", got, base+4)
	}
	if !strings.Contains(styleCSS, "size:A4") {
		t.Fatalf("stylesheet lost the A4 page rule")
	}
}

func TestPDFRenderer(t *testing.T) {
	r := NewPDFRenderer("")
	if r.chromePath == "" {
		if _, err := exec.LookPath("chromium"); err != nil {
			t.Skip("chromium not installed")
		}
	}
	if os.Getenv("MRI_EXTRACT_PDF_TEST") == "" {
		t.Skip("set MRI_EXTRACT_PDF_TEST=1 to print through chromium")
	}
	pdf, err := r.Render(context.Background(), "<!doctype html><html><body><h1>x</h1></body></html>")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(string(pdf), "%PDF") {
		t.Fatalf("not a pdf")
	}
}
