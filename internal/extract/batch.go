package extract

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/joelkehle/breast-mri-extract/internal/record"
)

// Sink persists finished records. Implementations must be safe for
// concurrent use.
type Sink interface {
	Save(ctx context.Context, runID string, rec *record.Record) error
}

// BatchSummary totals a batch run.
type BatchSummary struct {
	RunID     string
	Reports   int
	Failed    int
	WithIssue int
	SinkErrs  int
	Elapsed   time.Duration
	Summaries []RunSummary
}

// RunBatch extracts every report file with at most concurrency reports in
// flight. Each report gets its own record and gate state. Unreadable
// reports and sink failures are logged and counted; only cancellation
// stops the batch.
func (e *Extractor) RunBatch(ctx context.Context, paths []string, groups []Group, concurrency int, sink Sink) (BatchSummary, error) {
	if err := ValidateGroups(groups, e.catalog); err != nil {
		return BatchSummary{}, err
	}
	if concurrency < 1 {
		concurrency = 1
	}
	sum := BatchSummary{RunID: uuid.NewString(), Reports: len(paths)}
	log := e.log.WithField("run_id", sum.RunID)
	log.WithFields(logrus.Fields{"reports": len(paths), "groups": len(groups), "concurrency": concurrency}).Info("batch_start")
	started := time.Now()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, path := range paths {
		g.Go(func() error {
			rec, err := record.NewFromFileLimit(path, e.maxBytes, e.strict)
			if err != nil {
				log.WithField("path", path).WithError(err).Error("report_load_failed")
				e.metrics.IncReport("failed")
				mu.Lock()
				sum.Failed++
				mu.Unlock()
				return nil
			}
			if rec.Truncated {
				log.WithFields(logrus.Fields{"patient": rec.PatientID, "limit": e.maxBytes}).Warn("report_truncated")
			}

			rs, err := e.Run(gctx, rec, groups)
			if err != nil {
				return err
			}
			outcome := rs.Outcome()
			e.metrics.IncReport(outcome)

			var sinkErr error
			if sink != nil {
				sinkErr = sink.Save(gctx, sum.RunID, rec)
				if sinkErr != nil {
					log.WithField("patient", rec.PatientID).WithError(sinkErr).Error("record_save_failed")
				}
			}
			log.WithFields(logrus.Fields{
				"patient":    rec.PatientID,
				"outcome":    outcome,
				"issues":     len(rs.Issues),
				"overrides":  len(rs.Overrides),
				"elapsed_ms": rs.Elapsed.Milliseconds(),
			}).Info("report_done")

			mu.Lock()
			defer mu.Unlock()
			sum.Summaries = append(sum.Summaries, rs)
			switch outcome {
			case "failed":
				sum.Failed++
			case "issues":
				sum.WithIssue++
			}
			if sinkErr != nil {
				sum.SinkErrs++
			}
			return nil
		})
	}
	err := g.Wait()
	sum.Elapsed = time.Since(started)
	log.WithFields(logrus.Fields{
		"failed":     sum.Failed,
		"with_issue": sum.WithIssue,
		"sink_errs":  sum.SinkErrs,
		"elapsed_ms": sum.Elapsed.Milliseconds(),
	}).Info("batch_done")
	return sum, err
}
