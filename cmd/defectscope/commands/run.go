package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/defectscope/internal/export"
	"github.com/Sumatoshi-tech/defectscope/internal/gitsource"
	"github.com/Sumatoshi-tech/defectscope/internal/pipeline"
	"github.com/Sumatoshi-tech/defectscope/pkg/config"
	"github.com/Sumatoshi-tech/defectscope/pkg/observability"
)

// RunCommand holds the flags of the run command.
type RunCommand struct {
	configFlags

	upperBound    int
	newestFirst   bool
	firstParent   bool
	detectRenames bool
	since         string
	extension     string
	skipVendor    bool

	csv      string
	compress bool
	sqlite   string
	chart    string
	summary  bool
	noColor  bool

	metricsAddr  string
	otlpEndpoint string

	stdout io.Writer
	stderr io.Writer
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{}

	cmd := &cobra.Command{
		Use:   "run [repository]",
		Short: "Build the labelled release dataset of a repository",
		Long: `Resolve the injected and fixed release of every fixed defect, walk the
repository history and export per-release file metrics labelled buggy or clean.`,
		Args: cobra.MaximumNArgs(1),
		RunE: rc.run,
	}

	fs := cmd.Flags()
	rc.configFlags.register(fs)

	fs.IntVar(&rc.upperBound, "upper-bound", 0, "Last release accumulated (0 = half of the releases)")
	fs.BoolVar(&rc.newestFirst, "newest-first", false, "Walk commits newest first")
	fs.BoolVar(&rc.firstParent, "first-parent", false, "Follow only the first parent of merge commits")
	fs.BoolVar(&rc.detectRenames, "detect-renames", true, "Detect renamed files")
	fs.StringVar(&rc.since, "since", "", "Only walk commits after this date (YYYY-MM-DD)")
	fs.StringVar(&rc.extension, "extension", "", "Tracked source file extension")
	fs.BoolVar(&rc.skipVendor, "skip-vendor", false, "Ignore vendored paths")

	fs.StringVar(&rc.csv, "csv", "", "Dataset CSV output path")
	fs.BoolVar(&rc.compress, "compress", false, "Compress the CSV with lz4")
	fs.StringVar(&rc.sqlite, "sqlite", "", "SQLite database to append the run to")
	fs.StringVar(&rc.chart, "chart", "", "HTML chart output path")
	fs.BoolVar(&rc.summary, "summary", true, "Print a per-release summary table")
	fs.BoolVar(&rc.noColor, "no-color", false, "Disable colored output")

	fs.StringVar(&rc.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	fs.StringVar(&rc.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector address")

	return cmd
}

func (rc *RunCommand) config(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := rc.configFlags.load(cmd)
	if err != nil {
		return nil, err
	}

	fs := cmd.Flags()

	if len(args) > 0 {
		cfg.Project.Repository = args[0]
	}

	overrideInt(fs, "upper-bound", &cfg.Analysis.UpperBound, rc.upperBound)
	overrideBool(fs, "newest-first", &cfg.Analysis.NewestFirst, rc.newestFirst)
	overrideBool(fs, "first-parent", &cfg.Analysis.FirstParent, rc.firstParent)
	overrideBool(fs, "detect-renames", &cfg.Analysis.DetectRenames, rc.detectRenames)
	overrideString(fs, "since", &cfg.Analysis.Since, rc.since)
	overrideString(fs, "extension", &cfg.Analysis.Extension, rc.extension)
	overrideBool(fs, "skip-vendor", &cfg.Analysis.SkipVendor, rc.skipVendor)
	overrideString(fs, "csv", &cfg.Output.CSV, rc.csv)
	overrideBool(fs, "compress", &cfg.Output.Compress, rc.compress)
	overrideString(fs, "sqlite", &cfg.Output.SQLite, rc.sqlite)
	overrideString(fs, "chart", &cfg.Output.Chart, rc.chart)
	overrideBool(fs, "summary", &cfg.Output.Summary, rc.summary)
	overrideString(fs, "metrics-addr", &cfg.Telemetry.MetricsAddr, rc.metricsAddr)
	overrideString(fs, "otlp-endpoint", &cfg.Telemetry.OTLPEndpoint, rc.otlpEndpoint)

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) (err error) {
	cfg, err := rc.config(cmd, args)
	if err != nil {
		return err
	}

	out := rc.stdout
	if out == nil {
		out = cmd.OutOrStdout()
	}

	logOut := rc.stderr
	if logOut == nil {
		logOut = cmd.ErrOrStderr()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runID := uuid.NewString()

	obsCfg, err := observabilityConfig(cfg, runID, logOut)
	if err != nil {
		return err
	}

	var initOpts []observability.Option

	if cfg.Telemetry.MetricsAddr != "" {
		handler, mp, promErr := observability.PrometheusHandler()
		if promErr != nil {
			return promErr
		}

		initOpts = append(initOpts, observability.WithMeterProvider(mp))

		defer func() { _ = mp.Shutdown(context.WithoutCancel(ctx)) }()

		defer rc.serveMetrics(ctx, cfg.Telemetry.MetricsAddr, handler, logOut)()
	}

	providers, err := observability.Init(obsCfg, initOpts...)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.WithoutCancel(ctx))
		if err == nil && shutdownErr != nil {
			err = fmt.Errorf("shutdown observability: %w", shutdownErr)
		}
	}()

	return rc.execute(ctx, cfg, providers, runID, out)
}

// serveMetrics starts the scrape endpoint and returns its stop function.
func (rc *RunCommand) serveMetrics(ctx context.Context, addr string, handler http.Handler, logOut io.Writer) func() {
	srvCtx, stop := context.WithCancel(ctx)
	logger := slog.New(slog.NewTextHandler(logOut, nil))

	bound, err := observability.ServeMetrics(srvCtx, addr, handler, logger)
	if err != nil {
		logger.Warn("metrics endpoint disabled", "error", err)

		return stop
	}

	logger.Info("serving metrics", "addr", bound.String())

	return stop
}

func (rc *RunCommand) execute(
	ctx context.Context, cfg *config.Config, providers observability.Providers, runID string, out io.Writer,
) error {
	logger := providers.Logger

	releases, tickets, err := trackerInputs(ctx, cfg, logger)
	if err != nil {
		return err
	}

	since, err := cfg.Analysis.SinceTime()
	if err != nil {
		return err
	}

	src, err := gitsource.Open(cfg.Project.Repository, gitsource.Options{
		Since:         since,
		FirstParent:   cfg.Analysis.FirstParent,
		NewestFirst:   cfg.Analysis.NewestFirst,
		DetectRenames: cfg.Analysis.DetectRenames,
	}, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	headFiles, err := src.HeadFiles()
	if err != nil {
		return err
	}

	metrics, err := newPipelineMetrics(providers.Meter)
	if err != nil {
		return err
	}

	res, err := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithTracer(providers.Tracer),
		pipeline.WithMetrics(metrics),
		pipeline.WithRunID(runID),
	).Run(ctx, pipeline.Input{
		Project:    cfg.Project.Key,
		Releases:   releases,
		Tickets:    tickets,
		Source:     src,
		HeadFiles:  headFiles,
		Filter:     trackedFilter(cfg.Analysis),
		UpperBound: cfg.Analysis.UpperBound,
	})
	if err != nil {
		return err
	}

	return rc.export(ctx, cfg, res, logger, out)
}

func newPipelineMetrics(mt metric.Meter) (*observability.PipelineMetrics, error) {
	pm, err := observability.NewPipelineMetrics(mt)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	return pm, nil
}

func (rc *RunCommand) export(ctx context.Context, cfg *config.Config, res *pipeline.Result, logger *slog.Logger, out io.Writer) error {
	label := releaseLabel(res.Timeline)

	if cfg.Output.CSV != "" {
		path := cfg.Output.CSV
		if cfg.Output.Compress && !strings.HasSuffix(path, export.ExtLZ4) {
			path += export.ExtLZ4
		}

		err := export.SaveCSV(path, res.Rows, cfg.Output.Compress)
		if err != nil {
			return err
		}

		logger.InfoContext(ctx, "dataset written", "path", path, "rows", len(res.Rows))
	}

	if cfg.Output.SQLite != "" {
		err := saveRun(ctx, cfg, res)
		if err != nil {
			return err
		}

		logger.InfoContext(ctx, "run stored", "path", cfg.Output.SQLite)
	}

	if cfg.Output.Chart != "" {
		err := writeChart(cfg.Output.Chart, cfg.Project.Key, res, label)
		if err != nil {
			return err
		}

		logger.InfoContext(ctx, "chart written", "path", cfg.Output.Chart)
	}

	if cfg.Output.Summary {
		export.PrintSummary(out, res.Rows, export.TableOptions{
			Title:   fmt.Sprintf("%s releases 1..%d", cfg.Project.Key, res.UpperBound+1),
			Label:   label,
			NoColor: rc.noColor,
		})
	}

	return nil
}

func saveRun(ctx context.Context, cfg *config.Config, res *pipeline.Result) error {
	store, err := export.OpenStore(ctx, cfg.Output.SQLite)
	if err != nil {
		return err
	}
	defer store.Close()

	estimated := map[int]bool{}

	for id, cls := range res.Index.Classifications {
		if cls.Estimated {
			estimated[id] = true
		}
	}

	return store.Save(ctx, export.Run{
		ID:         res.RunID,
		Project:    cfg.Project.Key,
		UpperBound: res.UpperBound,
		CreatedAt:  time.Now(),
	}, res.Rows, res.Index.Defects, estimated)
}

func writeChart(path, project string, res *pipeline.Result, label func(int) string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}

	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close chart: %w", closeErr)
		}
	}()

	return export.RenderChart(f, project+" defect labels", res.Rows, label)
}
