package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/defectscope/pkg/version"
)

// NewRootCommand assembles the defectscope command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "defectscope",
		Short: "Defect-injection estimation and release dataset builder",
		Long: `defectscope estimates when each fixed bug was introduced and labels every
release of every source file as buggy or clean.

Commands:
  run       Walk a repository and export the labelled dataset
  fetch     Snapshot releases and fixed bugs from Jira
  defects   Show the estimated defect ranges
  render    Summarize an exported dataset`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(NewRunCommand())
	root.AddCommand(NewFetchCommand())
	root.AddCommand(NewDefectsCommand())
	root.AddCommand(NewRenderCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
