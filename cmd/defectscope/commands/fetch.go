package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/defectscope/pkg/jira"
)

// NewFetchCommand creates the fetch command.
func NewFetchCommand() *cobra.Command {
	var (
		cf     configFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download releases and fixed bugs into a snapshot file",
		Long: `Fetch the dated releases and the fixed bug tickets of a Jira project and
store them as a snapshot (.json, .json.lz4 or .yaml) for offline runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cf.load(cmd)
			if err != nil {
				return err
			}

			err = cfg.Validate()
			if err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			if output == "" {
				output = cfg.Project.Key + jira.ExtCompressedJSON
			}

			providers, err := initObservability(cfg, "", cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defer func() { _ = providers.Shutdown(context.WithoutCancel(cmd.Context())) }()

			releases, tickets, err := fetchTracker(cmd.Context(), cfg, providers.Logger)
			if err != nil {
				return err
			}

			err = jira.SaveSnapshot(output, jira.NewSnapshot(cfg.Project.Key, releases, tickets, time.Now()))
			if err != nil {
				return err
			}

			info, err := os.Stat(output)
			if err != nil {
				return fmt.Errorf("stat snapshot: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d releases, %d tickets (%s)\n",
				output, len(releases), len(tickets), humanize.Bytes(uint64(info.Size())))

			return nil
		},
	}

	cf.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "Snapshot path (default: <PROJECT>.json.lz4)")

	return cmd
}
