package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/cottand/theorem/problem"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var timeout *time.Duration

func init() {
	timeout = SolveCmd.Flags().DurationP("timeout", "t", 0, "give up after this long (0 waits forever)")
}

var SolveCmd = &cobra.Command{
	Use:   "solve problem.yaml",
	Short: "Solve a problem described in a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := problem.Load(args[0])
		if err != nil {
			return describe(err)
		}
		e, err := engine(p.Engine)
		if err != nil {
			return err
		}
		ctx := context.Background()
		if *timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, *timeout)
			defer cancel()
		}

		values, ok, err := p.Solve(ctx, e)
		if err != nil {
			return describe(err)
		}
		out := cmd.OutOrStdout()
		if !ok {
			fmt.Fprintf(out, "%s %s\n", unsatLabel("unsat"), p.Name)
			return nil
		}
		fmt.Fprintf(out, "%s %s\n", satLabel("sat"), p.Name)
		text, err := yaml.Marshal(values)
		if err != nil {
			return err
		}
		_, err = out.Write(text)
		return err
	},
}
