// Command merge combines JSON object files, later files overriding
// earlier ones, and writes the result to the last argument.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"style_spider/internal/merge"
)

const usage = "Usage: merge input-file... output-file"

func NewRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge input-file... output-file",
		Short: "Merge JSON object files into one",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 3 {
				return errors.New(usage)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return merge.Run(args[:len(args)-1], args[len(args)-1])
		},
	}
}

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
