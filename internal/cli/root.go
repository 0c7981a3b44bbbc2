// Package cli implements the reviewsync command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// Exit codes returned by Run.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reviewsync",
		Short:         "Offline-tolerant pull request review client",
		Long:          "reviewsync keeps draft reviews on disk, caches remote reads for offline use, and routes every comment to the backend that owns it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newDraftsCmd())
	root.AddCommand(newHealthcheckCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Run executes the root command with args and returns an exit code. ctx is
// cancelled on shutdown signals.
func Run(ctx context.Context, args []string) int {
	root := NewRootCmd()
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return ExitFailure
	}
	return ExitSuccess
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print reviewsync version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reviewsync version %s\n", version)
		},
	}
}
