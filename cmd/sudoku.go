package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/cottand/theorem/examples/sudoku"
	"github.com/spf13/cobra"
)

var SudokuCmd = &cobra.Command{
	Use:   "sudoku <puzzle|file>",
	Short: "Solve a sudoku given as 81 cells, '.' or 0 for blanks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]
		if data, err := os.ReadFile(src); err == nil {
			src = string(data)
		}
		puzzle, err := sudoku.Parse(src)
		if err != nil {
			return err
		}
		e, err := engine("")
		if err != nil {
			return err
		}

		solution, ok, err := sudoku.Solve(context.Background(), e, puzzle)
		if err != nil {
			return describe(err)
		}
		out := cmd.OutOrStdout()
		if !ok {
			fmt.Fprintf(out, "%s puzzle with %d givens has no solution\n", unsatLabel("unsat"), puzzle.Givens())
			return nil
		}
		if err := sudoku.Validate(solution); err != nil {
			return err
		}
		fmt.Fprintln(out, satLabel("sat"))
		fmt.Fprint(out, solution.String())
		return nil
	},
}
