// Package extract runs field groups over a report. For each group it calls
// the structured generator, lets the deterministic matcher override what it
// recognises, resolves the gates and merges the gated result into the
// record.
package extract

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/gating"
	"github.com/joelkehle/breast-mri-extract/internal/logging"
	"github.com/joelkehle/breast-mri-extract/internal/matcher"
	"github.com/joelkehle/breast-mri-extract/internal/metrics"
	"github.com/joelkehle/breast-mri-extract/internal/prompt"
	"github.com/joelkehle/breast-mri-extract/internal/record"
	"github.com/joelkehle/breast-mri-extract/internal/tracing"
)

// Client is the structured generator.
type Client interface {
	Extract(ctx context.Context, prompt string, schema *fields.Schema) (fields.Result, error)
}

type Extractor struct {
	catalog   *fields.Catalog
	prompts   *prompt.Builder
	client    Client
	matcher   *matcher.Matcher
	overrides map[string]bool
	strict    bool
	maxBytes  int
	log       *logrus.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Extractor)

// WithClient sets the generator. Without one the extractor runs the matcher
// alone.
func WithClient(c Client) Option {
	return func(e *Extractor) { e.client = c }
}

// WithMatcher enables deterministic overrides. When keys is empty every key
// the matcher supports may override. Without a client the matcher answers
// every key it supports regardless of keys.
func WithMatcher(m *matcher.Matcher, keys ...string) Option {
	return func(e *Extractor) {
		e.matcher = m
		if len(keys) == 0 {
			e.overrides = nil
			return
		}
		e.overrides = make(map[string]bool, len(keys))
		for _, k := range keys {
			e.overrides[k] = true
		}
	}
}

func WithPromptBuilder(b *prompt.Builder) Option {
	return func(e *Extractor) { e.prompts = b }
}

// WithStrictGates nulls gated fields whose gate was never resolved.
func WithStrictGates(strict bool) Option {
	return func(e *Extractor) { e.strict = strict }
}

func WithMaxReportBytes(n int) Option {
	return func(e *Extractor) { e.maxBytes = n }
}

func WithLogger(l *logrus.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Extractor) { e.tracer = t }
}

func New(catalog *fields.Catalog, opts ...Option) (*Extractor, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	e := &Extractor{
		catalog:  catalog,
		prompts:  prompt.NewBuilder(catalog),
		maxBytes: record.MaxReportBytes,
		log:      logging.Discard(),
		tracer:   tracing.Tracer(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.client == nil && e.matcher == nil {
		return nil, errors.New("extractor needs a client, a matcher or both")
	}
	if e.matcher == nil && len(e.overrides) > 0 {
		return nil, errors.New("matcher override keys given without a matcher")
	}
	for k := range e.overrides {
		if !e.matcher.Supports(k) {
			return nil, fmt.Errorf("matcher has no rule for %q", k)
		}
	}
	return e, nil
}

func (e *Extractor) Catalog() *fields.Catalog { return e.catalog }

// NewRecord builds an empty record carrying the extractor's gate mode.
func (e *Extractor) NewRecord(patientID, text string) *record.Record {
	return record.New(patientID, text, e.strict)
}

// GroupResult is what one group contributed to the record.
type GroupResult struct {
	Group     string
	Values    fields.Result
	Overrides []string
	Issues    []*GroupError
	Failed    bool
}

func (e *Extractor) canOverride(key string) bool {
	if e.matcher == nil || !e.matcher.Supports(key) {
		return false
	}
	return e.client == nil || e.overrides == nil || e.overrides[key]
}

// RunGroup extracts one group into rec. Only context cancellation and
// invalid groups return an error; generator failures are recorded on the
// result and on rec.
func (e *Extractor) RunGroup(ctx context.Context, rec *record.Record, g Group) (GroupResult, error) {
	res := GroupResult{Group: g.Name}
	ctx, span := e.tracer.Start(ctx, "extract.group", trace.WithAttributes(
		attribute.String("group", g.Name),
		attribute.String("patient", rec.PatientID),
	))
	defer span.End()
	started := time.Now()
	defer func() { e.metrics.ObserveGroup(g.Name, time.Since(started)) }()
	log := e.log.WithFields(logrus.Fields{"patient": rec.PatientID, "group": g.Name})

	specs, err := e.catalog.Specs(g.Keys)
	if err != nil {
		return res, fmt.Errorf("group %s: %w", g.Name, err)
	}
	issue := func(key string, err error) {
		ge := &GroupError{Group: g.Name, Key: key, Err: err}
		res.Issues = append(res.Issues, ge)
		rec.AddIssue(ge.Issue())
	}

	values := make(fields.Result, len(specs))
	for _, s := range specs {
		values[s.Key] = fields.Null()
	}
	violated := map[string]bool{}

	if e.client != nil {
		out, err := e.generate(ctx, rec, g)
		var sv *fields.SchemaViolationError
		switch {
		case err == nil:
			for k, v := range out {
				values[k] = v
			}
		case ctx.Err() != nil:
			span.SetStatus(codes.Error, "cancelled")
			return res, ctx.Err()
		case errors.As(err, &sv):
			for k, v := range sv.Partial {
				values[k] = v
			}
			for _, v := range sv.Violations {
				violated[v.Key] = true
				issue(v.Key, v)
			}
			log.WithField("violations", len(sv.Violations)).Warn("group_schema_violation")
		default:
			res.Failed = true
			issue("", fmt.Errorf("%w: %w", ErrExternalClientFailure, err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "client failure")
			log.WithError(err).Error("group_client_failure")
			return res, nil
		}
	}

	if e.matcher != nil {
		doc := matcher.Parse(rec.ReportText)
		for _, s := range specs {
			if !e.canOverride(s.Key) {
				continue
			}
			v := e.matcher.Explain(doc, s.Key)
			if !v.Found {
				continue
			}
			if v.Ambiguous {
				issue(s.Key, fmt.Errorf("%w: defaulted to %s", ErrAmbiguousEvidence, v.Value))
			}
			if e.client != nil && !values[s.Key].Equal(v.Value) {
				res.Overrides = append(res.Overrides, s.Key)
				e.metrics.IncOverride(s.Key)
				log.WithFields(logrus.Fields{"key": s.Key, "generated": values[s.Key].Format(), "matched": v.Value.Format()}).Debug("matcher_override")
			}
			values[s.Key] = v.Value
			delete(violated, s.Key)
		}
	}

	for _, s := range specs {
		if s.Controls != fields.GateNone && !violated[s.Key] {
			rec.Gates.Resolve(s.Controls, values[s.Key], s.Positive)
		}
	}

	for _, s := range specs {
		v, outcome := gating.Apply(s, values[s.Key], rec.Gates)
		switch outcome {
		case gating.Passed:
		case gating.Unresolved:
			issue(s.Key, fmt.Errorf("%w: %s", ErrGateUnresolved, s.Gate))
			e.metrics.IncGate(s.Key, outcome.String())
		default:
			e.metrics.IncGate(s.Key, outcome.String())
		}
		values[s.Key] = v
	}
	res.Values = values

	rec.Merge(values)
	for k, outcome := range rec.Enforce(e.catalog) {
		if outcome == gating.Suppressed && !slices.Contains(g.Keys, k) {
			e.metrics.IncGate(k, outcome.String())
			log.WithField("key", k).Debug("stored_value_suppressed")
		}
	}
	log.WithFields(logrus.Fields{
		"issues":     len(res.Issues),
		"overrides":  len(res.Overrides),
		"elapsed_ms": time.Since(started).Milliseconds(),
	}).Debug("group_done")
	return res, nil
}

func (e *Extractor) generate(ctx context.Context, rec *record.Record, g Group) (fields.Result, error) {
	schema, err := e.catalog.Schema(g.Keys)
	if err != nil {
		return nil, err
	}
	p, err := e.prompts.Build(rec.ReportText, g.Keys)
	if err != nil {
		return nil, err
	}
	return e.client.Extract(ctx, p, schema)
}

// RunSummary describes one report's extraction.
type RunSummary struct {
	PatientID string
	Executed  []string
	Failed    []string
	Issues    []*GroupError
	Overrides []string
	Elapsed   time.Duration
}

// Outcome is "failed" when every group failed, "issues" when anything was
// recorded and "ok" otherwise.
func (s RunSummary) Outcome() string {
	switch {
	case len(s.Executed) > 0 && len(s.Failed) == len(s.Executed):
		return "failed"
	case len(s.Failed) > 0 || len(s.Issues) > 0:
		return "issues"
	}
	return "ok"
}

// Run executes groups in order against rec. A failing group never stops the
// run; only cancellation does.
func (e *Extractor) Run(ctx context.Context, rec *record.Record, groups []Group) (RunSummary, error) {
	sum := RunSummary{PatientID: rec.PatientID}
	ctx, span := e.tracer.Start(ctx, "extract.report", trace.WithAttributes(attribute.String("patient", rec.PatientID)))
	defer span.End()
	started := time.Now()

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := e.RunGroup(ctx, rec, g)
		sum.Executed = append(sum.Executed, g.Name)
		sum.Issues = append(sum.Issues, res.Issues...)
		sum.Overrides = append(sum.Overrides, res.Overrides...)
		if err != nil {
			if ctx.Err() != nil {
				return sum, err
			}
			ge := &GroupError{Group: g.Name, Err: err}
			sum.Issues = append(sum.Issues, ge)
			rec.AddIssue(ge.Issue())
			sum.Failed = append(sum.Failed, g.Name)
			continue
		}
		if res.Failed {
			sum.Failed = append(sum.Failed, g.Name)
		}
	}
	sum.Elapsed = time.Since(started)
	span.SetAttributes(attribute.Int("issues", len(sum.Issues)), attribute.Int("failed_groups", len(sum.Failed)))
	return sum, nil
}
