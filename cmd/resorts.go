package main

import (
	"github.com/spf13/cobra"
)

var resortsCmd = &cobra.Command{
	Use:   "resorts",
	Short: "Manage the resort reference set",
}

func init() {
	rootCmd.AddCommand(resortsCmd)
}
