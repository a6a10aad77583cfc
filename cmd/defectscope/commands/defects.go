package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/defectscope/internal/export"
	"github.com/Sumatoshi-tech/defectscope/pkg/release"
	"github.com/Sumatoshi-tech/defectscope/pkg/ticket"
)

// DefectEntry is the JSON form of one classified ticket.
type DefectEntry struct {
	Ticket    string `json:"ticket"`
	OV        int    `json:"ov"`
	FV        int    `json:"fv"`
	IV        int    `json:"iv,omitempty"`
	Estimated bool   `json:"estimated,omitempty"`
	Defect    bool   `json:"defect"`
}

// NewDefectsCommand creates the defects command.
func NewDefectsCommand() *cobra.Command {
	var (
		cf      configFlags
		asJSON  bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "defects",
		Short: "Show the injected and fixed release of every fixed bug",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cf.load(cmd)
			if err != nil {
				return err
			}

			err = cfg.Validate()
			if err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			providers, err := initObservability(cfg, "", cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defer func() { _ = providers.Shutdown(cmd.Context()) }()

			releases, tickets, err := trackerInputs(cmd.Context(), cfg, providers.Logger)
			if err != nil {
				return err
			}

			tl, err := release.NewTimeline(releases)
			if err != nil {
				return fmt.Errorf("build timeline: %w", err)
			}

			idx, err := ticket.Resolve(tl, tickets)
			if err != nil {
				providers.Logger.WarnContext(cmd.Context(), "tickets skipped", "error", err)
			}

			if asJSON {
				return writeDefectsJSON(cmd.OutOrStdout(), cfg.Project.Key, idx)
			}

			export.PrintDefects(cmd.OutOrStdout(), cfg.Project.Key, idx, export.TableOptions{
				Title:   cfg.Project.Key + " defects",
				Label:   releaseLabel(tl),
				NoColor: noColor,
			})

			return nil
		},
	}

	cf.register(cmd.Flags())
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func writeDefectsJSON(w io.Writer, prefix string, idx *ticket.Index) error {
	ids := make([]int, 0, len(idx.Classifications))
	for id := range idx.Classifications {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	entries := make([]DefectEntry, 0, len(ids))

	for _, id := range ids {
		cls := idx.Classifications[id]
		_, isDefect := idx.Defect(id)

		entries = append(entries, DefectEntry{
			Ticket:    fmt.Sprintf("%s-%d", prefix, id),
			OV:        cls.OV,
			FV:        cls.FV,
			IV:        cls.IV.Index,
			Estimated: cls.Estimated,
			Defect:    isDefect,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(entries)
	if err != nil {
		return fmt.Errorf("encode defects: %w", err)
	}

	return nil
}
