// Package commands implements the defectscope CLI commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Sumatoshi-tech/defectscope/pkg/config"
	"github.com/Sumatoshi-tech/defectscope/pkg/filter"
	"github.com/Sumatoshi-tech/defectscope/pkg/jira"
	"github.com/Sumatoshi-tech/defectscope/pkg/observability"
	"github.com/Sumatoshi-tech/defectscope/pkg/release"
	"github.com/Sumatoshi-tech/defectscope/pkg/ticket"
	"github.com/Sumatoshi-tech/defectscope/pkg/version"
)

// ErrNoReleases is returned when the tracker lists no dated release.
var ErrNoReleases = errors.New("no dated releases retrieved")

// configFlags are the flags shared by commands that read the config file.
type configFlags struct {
	path      string
	project   string
	snapshot  string
	jiraURL   string
	logLevel  string
	logFormat string
}

func (cf *configFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&cf.path, "config", "c", "", "Config file (default: ./defectscope.yaml)")
	fs.StringVarP(&cf.project, "project", "p", "", "Issue-tracker project key, e.g. OPENJPA")
	fs.StringVar(&cf.snapshot, "snapshot", "", "Read releases and tickets from a snapshot file instead of Jira")
	fs.StringVar(&cf.jiraURL, "jira-url", "", "Jira base URL")
	fs.StringVar(&cf.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&cf.logFormat, "log-format", "", "Log format: text, json")
}

// load reads the config file and applies the flags that were set.
func (cf *configFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cf.path)
	if err != nil {
		return nil, err
	}

	fs := cmd.Flags()

	overrideString(fs, "project", &cfg.Project.Key, cf.project)
	overrideString(fs, "snapshot", &cfg.Project.Snapshot, cf.snapshot)
	overrideString(fs, "jira-url", &cfg.Jira.BaseURL, cf.jiraURL)
	overrideString(fs, "log-level", &cfg.Logging.Level, cf.logLevel)
	overrideString(fs, "log-format", &cfg.Logging.Format, cf.logFormat)

	return cfg, nil
}

func overrideString(fs *pflag.FlagSet, name string, dst *string, value string) {
	if fs.Changed(name) {
		*dst = value
	}
}

func overrideBool(fs *pflag.FlagSet, name string, dst *bool, value bool) {
	if fs.Changed(name) {
		*dst = value
	}
}

func overrideInt(fs *pflag.FlagSet, name string, dst *int, value int) {
	if fs.Changed(name) {
		*dst = value
	}
}

// observabilityConfig maps the config file onto telemetry settings.
func observabilityConfig(cfg *config.Config, runID string, logOutput io.Writer) (observability.Config, error) {
	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Config{}, err
	}

	obs := observability.DefaultConfig()
	obs.ServiceVersion = version.Version
	obs.RunID = runID
	obs.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obs.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obs.SampleRatio = cfg.Telemetry.SampleRatio
	obs.LogLevel = level
	obs.LogJSON = cfg.Logging.Format == "json"
	obs.LogOutput = logOutput

	return obs, nil
}

// initObservability sets up logging and no-op or OTLP telemetry for commands
// that do not serve metrics.
func initObservability(cfg *config.Config, runID string, logOutput io.Writer) (observability.Providers, error) {
	obs, err := observabilityConfig(cfg, runID, logOutput)
	if err != nil {
		return observability.Providers{}, err
	}

	providers, err := observability.Init(obs)
	if err != nil {
		return observability.Providers{}, fmt.Errorf("init observability: %w", err)
	}

	return providers, nil
}

// trackerInputs loads releases and tickets from the snapshot when one is
// configured, or from Jira otherwise.
func trackerInputs(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]release.Release, []ticket.Ticket, error) {
	if cfg.Project.Snapshot != "" {
		snap, err := jira.LoadSnapshot(cfg.Project.Snapshot)
		if err != nil {
			return nil, nil, err
		}

		logger.InfoContext(ctx, "snapshot loaded",
			"path", cfg.Project.Snapshot,
			"project", snap.Project,
			"releases", len(snap.Releases),
			"tickets", len(snap.Tickets),
		)

		return snap.ReleaseList(), snap.TicketList(), nil
	}

	return fetchTracker(ctx, cfg, logger)
}

func fetchTracker(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]release.Release, []ticket.Ticket, error) {
	client := jira.NewClient(cfg.Jira.BaseURL,
		jira.WithHTTPClient(&http.Client{Timeout: cfg.Jira.Timeout}),
		jira.WithPageSize(cfg.Jira.PageSize),
	)

	releases, err := client.Versions(ctx, cfg.Project.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch releases: %w", err)
	}

	if len(releases) == 0 {
		return nil, nil, fmt.Errorf("%w for %s", ErrNoReleases, cfg.Project.Key)
	}

	tickets, err := client.Issues(ctx, cfg.Project.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch tickets: %w", err)
	}

	logger.InfoContext(ctx, "tracker fetched",
		"base_url", cfg.Jira.BaseURL,
		"project", cfg.Project.Key,
		"releases", len(releases),
		"tickets", len(tickets),
	)

	return releases, tickets, nil
}

// trackedFilter builds the file filter from the analysis section.
func trackedFilter(a config.AnalysisConfig) *filter.Filter {
	f := filter.New(a.Extension)
	f.Languages = a.Languages
	f.SkipVendor = a.SkipVendor
	f.SkipPrefixes = a.SkipPrefixes

	return f
}

// releaseLabel names release indices after the first release on that index.
func releaseLabel(tl *release.Timeline) func(int) string {
	return func(index int) string {
		rel, ok := tl.At(index)
		if !ok {
			return strconv.Itoa(index)
		}

		return rel.Name
	}
}
