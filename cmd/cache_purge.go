package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var cachePurgeAll bool

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove failed entries (or everything with --all) so they re-resolve",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cache, cleanup, err := selectedCache(ctx)
		if err != nil {
			return err
		}
		defer cleanup()
		defer cache.Close()

		removed := cache.Purge(!cachePurgeAll)
		if err := cache.Flush(ctx); err != nil {
			return eris.Wrap(err, "cache: flush after purge")
		}

		fmt.Printf("purged %d entries, %d remain\n", removed, cache.Len())
		return nil
	},
}

func init() {
	cachePurgeCmd.Flags().BoolVar(&cachePurgeAll, "all", false, "purge every entry, not just failed ones")
	cacheCmd.AddCommand(cachePurgeCmd)
}
