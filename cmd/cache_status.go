package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache entry counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cache, cleanup, err := selectedCache(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		defer cache.Close()

		resolved, failed := cache.Stats()
		fmt.Printf("entries:  %d\n", cache.Len())
		fmt.Printf("resolved: %d\n", resolved)
		fmt.Printf("failed:   %d\n", failed)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)
}
