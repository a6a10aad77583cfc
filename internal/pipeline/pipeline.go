// Package pipeline drives one defect-injection run: it builds the release
// timeline, resolves ticket ranges, walks the revision history and hands back
// the labelled per-release file dataset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/defectscope/pkg/dataset"
	"github.com/Sumatoshi-tech/defectscope/pkg/filter"
	"github.com/Sumatoshi-tech/defectscope/pkg/history"
	"github.com/Sumatoshi-tech/defectscope/pkg/matcher"
	"github.com/Sumatoshi-tech/defectscope/pkg/observability"
	"github.com/Sumatoshi-tech/defectscope/pkg/release"
	"github.com/Sumatoshi-tech/defectscope/pkg/revmetrics"
	"github.com/Sumatoshi-tech/defectscope/pkg/ticket"
)

const tracerName = "defectscope/pipeline"

var (
	// ErrNoSource is returned when a run has no revision stream.
	ErrNoSource = errors.New("no revision source")
	// ErrNoProject is returned when a run has no ticket key prefix.
	ErrNoProject = errors.New("project key prefix is empty")
	// ErrInvalidUpperBound is returned for a negative upper bound.
	ErrInvalidUpperBound = errors.New("upper bound must not be negative")
)

// Input is what one run consumes.
type Input struct {
	// Project is the ticket key prefix, e.g. "OPENJPA".
	Project  string
	Releases []release.Release
	Tickets  []ticket.Ticket
	Source   history.Source
	// HeadFiles are seeded as empty records for releases 1..upper bound.
	HeadFiles []string
	// Filter selects tracked files. Nil tracks DefaultExtension.
	Filter *filter.Filter
	// UpperBound is the last accumulated release. Zero picks the default.
	UpperBound int
}

// Result is the outcome of a run.
type Result struct {
	RunID      string
	Timeline   *release.Timeline
	Index      *ticket.Index
	UpperBound int
	Dataset    *dataset.Dataset
	Rows       []dataset.Row
	Stats      observability.RunStats
	// TicketErrors joins the per-ticket failures; those tickets were skipped.
	TicketErrors error
}

// Pipeline runs defect-injection passes.
type Pipeline struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.PipelineMetrics
	runID   string
	now     func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithTracer sets the tracer used for run spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = tracer }
}

// WithMetrics sets the instruments a finished run is recorded into.
func WithMetrics(metrics *observability.PipelineMetrics) Option {
	return func(p *Pipeline) { p.metrics = metrics }
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// New creates a pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer(tracerName),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run executes the whole pass. A missing release list or revision source
// aborts before any processing; invalid tickets and undiffable revisions are
// logged and skipped.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	start := p.now()

	runID := p.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	logger := p.logger.With(observability.AttrRunID, runID)

	ctx, span := p.tracer.Start(ctx, "defectscope.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("project", in.Project),
		),
	)
	defer span.End()

	res, err := p.run(ctx, logger, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	res.RunID = runID
	res.Stats.Duration = p.now().Sub(start)

	span.SetAttributes(
		attribute.Int("run.upper_bound", res.UpperBound),
		attribute.Int64("run.defects", res.Stats.Defects),
		attribute.Int64("run.records", res.Stats.Records),
	)

	p.metrics.RecordRun(ctx, res.Stats)

	logger.InfoContext(ctx, "run finished",
		"releases", res.Timeline.Len(),
		"upper_bound", res.UpperBound,
		"defects", res.Stats.Defects,
		"rows", len(res.Rows),
		"duration", res.Stats.Duration,
	)

	return res, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, in Input) (*Result, error) {
	if in.Source == nil {
		return nil, ErrNoSource
	}

	if in.Project == "" {
		return nil, ErrNoProject
	}

	if in.UpperBound < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidUpperBound, in.UpperBound)
	}

	tl, err := release.NewTimeline(in.Releases)
	if err != nil {
		return nil, fmt.Errorf("build timeline: %w", err)
	}

	upper := in.UpperBound
	if upper == 0 {
		upper = release.DefaultUpperBound(tl.Len())
	}

	logger.InfoContext(ctx, "timeline built", "releases", tl.Len(), "upper_bound", upper)

	idx, ticketErrs := p.resolve(ctx, logger, tl, in.Tickets)

	tracked := in.Filter
	if tracked == nil {
		tracked = filter.New(filter.DefaultExtension)
	}

	data := dataset.New()
	data.Seed(tracked.Paths(in.HeadFiles), upper)

	w := &walker{
		logger:   logger,
		timeline: tl,
		index:    idx,
		filter:   tracked,
		matcher:  matcher.New(in.Project),
		acc:      revmetrics.NewAccumulator(data, upper+1),
		marker:   revmetrics.NewMarker(data, upper+1),
		outcomes: map[string]int64{},
	}

	err = p.walk(ctx, in.Source, w)
	if err != nil {
		return nil, err
	}

	rows := data.Rows(upper)

	return &Result{
		Timeline:     tl,
		Index:        idx,
		UpperBound:   upper,
		Dataset:      data,
		Rows:         rows,
		TicketErrors: ticketErrs,
		Stats: observability.RunStats{
			Revisions: w.outcomes,
			Defects:   int64(len(idx.Defects)),
			Deferred:  int64(idx.Deferred),
			Estimated: countEstimated(idx),
			Rejected:  int64(len(idx.Classifications) - len(idx.Defects)),
			Marked:    w.marked,
			Records:   int64(len(rows)),
		},
	}, nil
}

func (p *Pipeline) resolve(
	ctx context.Context, logger *slog.Logger, tl *release.Timeline, tickets []ticket.Ticket,
) (*ticket.Index, error) {
	_, span := p.tracer.Start(ctx, "defectscope.resolve_tickets",
		trace.WithAttributes(attribute.Int("tickets", len(tickets))))
	defer span.End()

	idx, err := ticket.Resolve(tl, tickets)
	if err != nil {
		logger.WarnContext(ctx, "tickets skipped", "error", err)
	}

	span.SetAttributes(
		attribute.Int("tickets.defects", len(idx.Defects)),
		attribute.Int("tickets.deferred", idx.Deferred),
		attribute.Int("tickets.samples", len(idx.Samples)),
	)

	logger.InfoContext(ctx, "tickets resolved",
		"tickets", len(tickets),
		"defects", len(idx.Defects),
		"deferred", idx.Deferred,
		"samples", len(idx.Samples),
	)

	return idx, err
}

func (p *Pipeline) walk(ctx context.Context, src history.Source, w *walker) error {
	ctx, span := p.tracer.Start(ctx, "defectscope.walk_history")
	defer span.End()

	err := src.Walk(ctx, func(rev *history.Revision) error {
		w.visit(ctx, rev)

		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return fmt.Errorf("walk history: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("revisions.processed", w.outcomes[observability.RevisionProcessed]),
		attribute.Int64("revisions.past_boundary", w.outcomes[observability.RevisionPastBoundary]),
		attribute.Int64("records.marked", w.marked),
	)

	return nil
}

// walker folds revisions into the dataset one at a time.
type walker struct {
	logger   *slog.Logger
	timeline *release.Timeline
	index    *ticket.Index
	filter   *filter.Filter
	matcher  *matcher.Matcher
	acc      *revmetrics.Accumulator
	marker   *revmetrics.Marker
	outcomes map[string]int64
	marked   int64
}

func (w *walker) visit(ctx context.Context, rev *history.Revision) {
	if !rev.HasParent {
		w.outcomes[observability.RevisionRoot]++

		return
	}

	rel := w.timeline.CommitIndex(rev.Date)
	if rel >= w.acc.Boundary() {
		w.outcomes[observability.RevisionPastBoundary]++

		return
	}

	fixes := w.matcher.MatchTickets(rev.Message, w.index.Tracked)
	defects := w.matcher.MatchResolved(rev.Message, w.index.Defects)
	changeSetSize := len(rev.Changes)

	for _, change := range rev.Changes {
		if !w.filter.Match(change.Path()) {
			continue
		}

		w.acc.Apply(rel, change, changeSetSize, fixes)
		w.marked += int64(w.marker.MarkRange(defects, change))
	}

	if len(defects) > 0 {
		w.logger.DebugContext(ctx, "fixing revision",
			"hash", rev.Hash,
			"release", rel,
			"defects", matcher.Flatten(defects),
		)
	}

	w.outcomes[observability.RevisionProcessed]++
}

func countEstimated(idx *ticket.Index) int64 {
	var n int64

	for _, cls := range idx.Classifications {
		if cls.Estimated {
			n++
		}
	}

	return n
}
