package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRoot = func() *cobra.Command {
	root := &cobra.Command{Use: "theorem", SilenceUsage: true, SilenceErrors: true}
	AddFlags(root)
	root.AddCommand(SolveCmd, SudokuCmd, RiverCmd, EnginesCmd)
	return root
}()

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	testRoot.SetOut(&out)
	testRoot.SetArgs(append([]string{"--no-color", "--engine", ""}, args...))
	err := testRoot.Execute()
	return out.String(), err
}

func TestSolveFile(t *testing.T) {
	out, err := run(t, "solve", filepath.Join("..", "problem", "testdata", "shop.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "sat Shop")
	assert.Contains(t, out, "Apples: 12")
	assert.Contains(t, out, "Label: fruit")
}

func TestSolveUnsat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.yaml")
	src := `
problem:
  name: never
  fields:
    - name: X
      type: int32
  where:
    - e.X > 3 && e.X < 4
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	out, err := run(t, "solve", path)
	require.NoError(t, err)
	assert.Contains(t, out, "unsat never")
}

func TestUnknownEngine(t *testing.T) {
	_, err := run(t, "--engine", "nope", "river")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "finite")
}

func TestSudoku(t *testing.T) {
	puzzle := "53..7....6..195....98....6.8...6...34..8.3..17...2...6.6....28....419..5....8..79"
	out, err := run(t, "sudoku", puzzle)
	require.NoError(t, err)
	assert.Contains(t, out, "5 3 4 | 6 7 8 | 9 1 2")
}

func TestRiver(t *testing.T) {
	out, err := run(t, "river", "--max", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "sat 7 steps")
}

func TestEngines(t *testing.T) {
	out, err := run(t, "engines")
	require.NoError(t, err)
	assert.Contains(t, out, "finite")
}
