package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/reviewsync/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the offline resource cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show resource cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := sqliteadapter.NewCacheRepo(db).Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading cache stats: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entries: %d\n", stats.Entries)
			fmt.Fprintf(out, "bytes:   %d\n", stats.TotalBytes)

			kinds := make([]string, 0, len(stats.ByKind))
			for kind := range stats.ByKind {
				kinds = append(kinds, string(kind))
			}
			sort.Strings(kinds)
			for _, kind := range kinds {
				fmt.Fprintf(out, "  %-14s %d\n", kind, stats.ByKind[model.CacheKind(kind)])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Remove every cached remote resource",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := sqliteadapter.NewCacheRepo(db).Purge(cmd.Context())
			if err != nil {
				return fmt.Errorf("purging cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached entries.\n", n)
			return nil
		},
	})

	return cmd
}
