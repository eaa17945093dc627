package cmd

import (
	"context"
	"fmt"

	"github.com/cottand/theorem/examples/river"
	"github.com/spf13/cobra"
)

var maxSteps *int

func init() {
	maxSteps = RiverCmd.Flags().IntP("max", "m", 12, "most crossings to try")
}

var RiverCmd = &cobra.Command{
	Use:   "river",
	Short: "Find the shortest plan for the wolf, goat and cabbage crossing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := engine("")
		if err != nil {
			return err
		}
		plan, ok, err := river.Shortest(context.Background(), e, *maxSteps)
		if err != nil {
			return describe(err)
		}
		out := cmd.OutOrStdout()
		if !ok {
			fmt.Fprintf(out, "%s no plan within %d steps\n", unsatLabel("unsat"), *maxSteps)
			return nil
		}
		fmt.Fprintf(out, "%s %d steps\n", satLabel("sat"), plan.Steps())
		fmt.Fprint(out, plan.String())
		return nil
	},
}
