// Command grep searches wiki page sources stored in results.json.
package main

import (
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"style_spider/internal/grep"
	"style_spider/internal/report"
)

const defaultPath = "output/results.json"

// errReported marks failures already printed to stderr.
type errReported struct{}

func (errReported) Error() string { return "" }

func NewRootCmd() *cobra.Command {
	var colorMode string

	cmd := &cobra.Command{
		Use:           "grep [--color always|never|auto] pattern [path]",
		Short:         "grep for wikidot sites",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			useColor, err := grep.UseColor(colorMode, out)
			if err != nil {
				return err
			}
			printer := grep.NewPrinter(out, cmd.ErrOrStderr(), useColor)

			re, err := regexp.Compile(args[0])
			if err != nil {
				printer.Errorf("Invalid regular expression: %v", err)
				return errReported{}
			}

			path := defaultPath
			if len(args) > 1 {
				path = args[1]
			}
			results, err := report.LoadResults(path)
			if err != nil {
				printer.Errorf("Unable to load page data: %v", err)
				return errReported{}
			}

			return printer.Print(grep.Search(re, report.SortedPages(results)))
		},
	}

	cmd.Flags().StringVar(&colorMode, "color", grep.ColorAuto, "Whether to use colors to highlight results (always, never, auto)")
	cmd.Flags().SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "colour" {
			name = "color"
		}
		return pflag.NormalizedName(name)
	})
	return cmd
}

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		if _, ok := err.(errReported); !ok {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
