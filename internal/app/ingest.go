package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	workerpool "github.com/okian/xsrledger/internal/adapters/mq/worker"
	"github.com/okian/xsrledger/internal/config"
	"github.com/okian/xsrledger/internal/domain/model"
	"github.com/okian/xsrledger/internal/domain/normalize"
	"github.com/okian/xsrledger/pkg/logger"
	"github.com/okian/xsrledger/pkg/metrics"
)

// Batch statuses used in metrics.
const (
	batchSucceeded = "success"
	batchFailed    = "failure"
	batchEmpty     = "empty"
)

// creditDataSource names batches that arrive through the credit-data upload.
const creditDataSource = "credit-data"

// RunSource fetches, normalizes and ingests one source. A connector or
// parse failure aborts the batch before any ledger write. Storage failures
// of single records are joined into the returned error while the rest of
// the batch still lands.
func (s *Service) RunSource(ctx context.Context, src config.Source) (model.BatchReport, error) {
	c, err := s.snapshot()
	if err != nil {
		return model.BatchReport{Source: src.Name, Error: err.Error()}, err
	}
	return c.runSource(ctx, src)
}

// RunAll runs the named sources, or every configured source when names is
// empty, concurrently. One failing source does not stop the others.
func (s *Service) RunAll(ctx context.Context, names ...string) ([]model.BatchReport, error) {
	c, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return c.runAll(ctx, names)
}

func (c components) resolve(names []string) ([]config.Source, error) {
	if len(names) == 0 {
		if len(c.sources) == 0 {
			return nil, ErrNoSources
		}
		return c.sources, nil
	}
	out := make([]config.Source, 0, len(names))
	for _, name := range names {
		found := false
		for _, src := range c.sources {
			if src.Name == name {
				out = append(out, src)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
		}
	}
	return out, nil
}

func (c components) runAll(ctx context.Context, names []string) ([]model.BatchReport, error) {
	sources, err := c.resolve(names)
	if err != nil {
		return nil, err
	}

	reports := make([]model.BatchReport, len(sources))
	errs := make([]error, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			reports[i], errs[i] = c.runSource(ctx, src)
			return nil
		})
	}
	_ = g.Wait()
	return reports, errors.Join(errs...)
}

func (c components) runSource(ctx context.Context, src config.Source) (report model.BatchReport, err error) {
	start := time.Now()
	report.Source = src.Name
	status := batchSucceeded
	defer func() { c.finish(ctx, &report, &status, start, err) }()

	variant, err := normalize.ParseVariant(src.Variant)
	if err != nil {
		return report, err
	}

	c.logger.Info(ctx, "extraction started",
		logger.String("source_name", src.Name),
		logger.String("variant", variant.Name),
		logger.String("format", src.Format),
	)
	payload, err := c.fetcher.Fetch(ctx, src)
	if err != nil {
		c.logger.Error(ctx, "source fetch failed", logger.String("source_name", src.Name), logger.Error(err))
		return report, err
	}
	report.PayloadBytes = len(payload)
	if len(bytes.TrimSpace(payload)) == 0 {
		status = batchEmpty
		c.logger.Info(ctx, "source metadata is empty", logger.String("source_name", src.Name))
		return report, nil
	}
	err = c.ingest(ctx, src.Name, variant, strings.EqualFold(src.Format, config.FormatXML), payload, &report)
	return report, err
}

// runCreditData ingests an uploaded Course XML document like a source batch.
func (c components) runCreditData(ctx context.Context, r io.Reader) (report model.BatchReport, err error) {
	start := time.Now()
	report.Source = creditDataSource
	status := batchSucceeded
	defer func() { c.finish(ctx, &report, &status, start, err) }()

	payload, err := io.ReadAll(r)
	if err != nil {
		return report, fmt.Errorf("read credit data: %w", err)
	}
	report.PayloadBytes = len(payload)
	if len(bytes.TrimSpace(payload)) == 0 {
		status = batchEmpty
		return report, nil
	}
	err = c.ingest(ctx, creditDataSource, normalize.Course, true, payload, &report)
	return report, err
}

func (c components) finish(ctx context.Context, report *model.BatchReport, status *string, start time.Time, err error) {
	report.Duration = time.Since(start)
	if err != nil {
		*status = batchFailed
		report.Error = err.Error()
	}
	metrics.RecordBatch(report.Source, *status, report.Duration.Seconds())
	c.logger.Info(ctx, "batch finished",
		logger.String("source_name", report.Source),
		logger.String("status", *status),
		logger.Int("extracted", report.Extracted),
		logger.Int("dropped", report.Dropped),
		logger.Int("inserted", report.Inserted),
		logger.Int("unchanged", report.Unchanged),
		logger.Int("superseded", report.Superseded),
		logger.Int("failed", report.Failed),
		logger.Duration("took", report.Duration),
	)
}

// ingest normalizes payload, stamps the publisher and hands the records to
// the worker pool, folding the outcome into report.
func (c components) ingest(ctx context.Context, name string, variant normalize.Variant, isXML bool, payload []byte, report *model.BatchReport) error {
	n := normalize.New(variant)
	var (
		res normalize.Result
		err error
	)
	if isXML {
		res, err = n.NormalizeXML(payload)
	} else {
		res, err = n.Normalize(payload)
	}
	if err != nil {
		return fmt.Errorf("normalize %s: %w", name, err)
	}
	for _, d := range res.Drops {
		metrics.RecordDropped(d.Reason)
		c.logger.Warn(ctx, "record dropped",
			logger.String("source_name", name),
			logger.String("reason", d.Reason),
			logger.String("record", d.Identifier),
			logger.String("detail", d.Detail),
		)
	}
	report.Extracted = len(res.Records)
	report.Dropped = len(res.Drops)
	metrics.RecordExtracted(name, variant.Name, len(res.Records))
	c.logger.Info(ctx, "extraction finished",
		logger.String("source_name", name),
		logger.Int("records", len(res.Records)),
		logger.Int("dropped", len(res.Drops)),
	)

	publisher, err := c.publisher.Lookup(ctx)
	if err != nil {
		return fmt.Errorf("publisher lookup: %w", err)
	}
	if publisher == "" {
		return fmt.Errorf("%w: %s records need %s", ErrNoPublisher, name, model.FieldSourceSystem)
	}
	for i := range res.Records {
		res.Records[i].Set(model.FieldSourceSystem, publisher)
	}

	out, err := c.pool.Process(ctx, workerpool.Batch{
		Source:    name,
		KeyFields: variant.KeyFields,
		Records:   res.Records,
	})
	report.Dropped += out.Report.Dropped
	report.Inserted = out.Report.Inserted
	report.Unchanged = out.Report.Unchanged
	report.Superseded = out.Report.Superseded
	report.Failed = out.Report.Failed
	return err
}
