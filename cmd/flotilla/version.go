package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flotilla-io/flotilla"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of flotilla",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("flotilla version %s\n", flotilla.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
