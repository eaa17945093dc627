package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cottand/theorem/internal/log"
	"github.com/cottand/theorem/smt"
	_ "github.com/cottand/theorem/smt/finite"
	"github.com/cottand/theorem/thmerr"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	engineName *string
	logLevel   *int
	noColor    *bool
)

// AddFlags registers the flags every subcommand understands
func AddFlags(root *cobra.Command) {
	engineName = root.PersistentFlags().StringP("engine", "e", "", "engine to solve with (default finite)")
	logLevel = root.PersistentFlags().IntP("log-level", "l", int(slog.LevelWarn), "log level")
	noColor = root.PersistentFlags().Bool("no-color", false, "disable coloured output")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		log.SetLevel(slog.Level(*logLevel))
		color.NoColor = *noColor || !isatty.IsTerminal(os.Stdout.Fd())
	}
}

// engine picks the engine named by --engine, then fallback, then finite
func engine(fallback string) (smt.Engine, error) {
	name := "finite"
	switch {
	case engineName != nil && *engineName != "":
		name = *engineName
	case fallback != "":
		name = fallback
	}
	e, ok := smt.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown engine %q, available: %s", name, strings.Join(smt.Engines(), ", "))
	}
	return e, nil
}

var (
	satLabel   = color.New(color.FgGreen, color.Bold).SprintFunc()
	unsatLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	codeLabel  = color.New(color.FgYellow).SprintFunc()
)

// describe renders err with its code when it is one of ours
func describe(err error) error {
	code := thmerr.CodeOf(err)
	if code == thmerr.None {
		return err
	}
	return fmt.Errorf("%s %w", codeLabel(fmt.Sprintf("E%03d", code)), err)
}

var EnginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List the available engines",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range smt.Engines() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}
