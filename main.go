package main

import (
	"os"

	"github.com/cottand/theorem/cmd"
	"github.com/spf13/cobra"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "theorem [subcommand]",
	Short:        "theorem\n typed constraint problems solved by an SMT engine",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

func init() {
	cmd.AddFlags(rootCmd)
	rootCmd.AddCommand(cmd.SolveCmd)
	rootCmd.AddCommand(cmd.SudokuCmd)
	rootCmd.AddCommand(cmd.RiverCmd)
	rootCmd.AddCommand(cmd.EnginesCmd)
}
