package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRevisionsTotal = "defectscope.revisions.total"
	metricTicketsTotal   = "defectscope.tickets.total"
	metricMarkedTotal    = "defectscope.records.marked.total"
	metricRecordsTotal   = "defectscope.records.total"
	metricRunDuration    = "defectscope.run.duration.seconds"

	attrOutcome = "outcome"
)

// Revision outcomes.
const (
	RevisionProcessed    = "processed"
	RevisionRoot         = "root"
	RevisionPastBoundary = "past_boundary"
	RevisionFailed       = "failed"
)

// durationBucketBoundaries covers 10ms to 1h for runs ranging from snapshot
// replays to full histories of large repositories.
var durationBucketBoundaries = []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800, 3600}

// PipelineMetrics holds the OTel instruments of a pipeline run.
type PipelineMetrics struct {
	revisions   metric.Int64Counter
	tickets     metric.Int64Counter
	marked      metric.Int64Counter
	records     metric.Int64Counter
	runDuration metric.Float64Histogram
}

// RunStats summarises one pipeline run.
type RunStats struct {
	Revisions map[string]int64
	Defects   int64
	Deferred  int64
	Estimated int64
	Rejected  int64
	Marked    int64
	Records   int64
	Duration  time.Duration
}

// NewPipelineMetrics creates the pipeline instruments from mt.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	revisions, err := mt.Int64Counter(metricRevisionsTotal,
		metric.WithDescription("Revisions seen by outcome"),
		metric.WithUnit("{revision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRevisionsTotal, err)
	}

	tickets, err := mt.Int64Counter(metricTicketsTotal,
		metric.WithDescription("Tickets classified by outcome"),
		metric.WithUnit("{ticket}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTicketsTotal, err)
	}

	marked, err := mt.Int64Counter(metricMarkedTotal,
		metric.WithDescription("Placeholder records labelled buggy by range marking"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMarkedTotal, err)
	}

	records, err := mt.Int64Counter(metricRecordsTotal,
		metric.WithDescription("Dataset rows exported"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRecordsTotal, err)
	}

	runDuration, err := mt.Float64Histogram(metricRunDuration,
		metric.WithDescription("Pipeline run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunDuration, err)
	}

	return &PipelineMetrics{
		revisions:   revisions,
		tickets:     tickets,
		marked:      marked,
		records:     records,
		runDuration: runDuration,
	}, nil
}

// RecordRun records the statistics of a completed run.
// Safe to call on a nil receiver (no-op).
func (pm *PipelineMetrics) RecordRun(ctx context.Context, stats RunStats) {
	if pm == nil {
		return
	}

	for outcome, n := range stats.Revisions {
		pm.revisions.Add(ctx, n, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
	}

	pm.tickets.Add(ctx, stats.Defects, metric.WithAttributes(attribute.String(attrOutcome, "defect")))
	pm.tickets.Add(ctx, stats.Deferred, metric.WithAttributes(attribute.String(attrOutcome, "deferred")))
	pm.tickets.Add(ctx, stats.Estimated, metric.WithAttributes(attribute.String(attrOutcome, "estimated")))
	pm.tickets.Add(ctx, stats.Rejected, metric.WithAttributes(attribute.String(attrOutcome, "rejected")))

	pm.marked.Add(ctx, stats.Marked)
	pm.records.Add(ctx, stats.Records)
	pm.runDuration.Record(ctx, stats.Duration.Seconds())
}
