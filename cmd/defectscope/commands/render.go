package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/defectscope/internal/export"
	"github.com/Sumatoshi-tech/defectscope/pkg/dataset"
)

// ErrRenderInput is returned when render gets neither a dataset file nor a stored run.
var ErrRenderInput = errors.New("render needs a dataset file or --sqlite with --run")

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	var (
		chart   string
		sqlite  string
		runID   string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "render [dataset.csv]",
		Short: "Summarize an exported dataset",
		Long: `Print the per-release buggy and clean file counts of a dataset CSV (optionally
lz4-compressed) or of a run stored in SQLite, and optionally render an HTML chart.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				rows  []dataset.Row
				title string
				err   error
			)

			switch {
			case len(args) == 1:
				title = args[0]
				rows, err = export.LoadCSV(args[0])
			case sqlite != "" && runID != "":
				title = runID
				rows, err = storedRows(cmd, sqlite, runID)
			default:
				return ErrRenderInput
			}

			if err != nil {
				return err
			}

			export.PrintSummary(cmd.OutOrStdout(), rows, export.TableOptions{Title: title, NoColor: noColor})

			if chart == "" {
				return nil
			}

			f, err := os.Create(chart)
			if err != nil {
				return fmt.Errorf("create chart: %w", err)
			}

			err = export.RenderChart(f, title, rows, nil)
			if err != nil {
				f.Close()

				return err
			}

			return f.Close()
		},
	}

	cmd.Flags().StringVar(&chart, "chart", "", "Write an HTML chart to this path")
	cmd.Flags().StringVar(&sqlite, "sqlite", "", "Read rows from this SQLite database")
	cmd.Flags().StringVar(&runID, "run", "", "Run id to read from the database")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func storedRows(cmd *cobra.Command, path, runID string) ([]dataset.Row, error) {
	store, err := export.OpenStore(cmd.Context(), path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.Rows(cmd.Context(), runID)
}
