package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flotilla-io/flotilla/internal/cli"
)

var showCmd = &cobra.Command{
	Use:   "show [target]",
	Short: "Show the resolved node inventory once and exit",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		verbose, _ := cmd.Flags().GetBool("extended")

		app, err := cli.Bootstrap(ctx, options(cmd))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		target := ""
		if len(args) > 0 {
			target = args[0]
		}
		nodes, err := app.Resolver.Resolve(ctx, target)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		templates, err := app.Templates.Templates()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		app.Console.ShowNodes(nodes, templates, verbose)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolP("extended", "v", false, "Show extended per-node fields")
}
