/*
wagectl - command-line access to the wage engine

COMMANDS:
  validate <job.json>                          Check a job policy file
  break --start HH:mm --end HH:mm [--job f]    Break and work time of a shift
  report --db path --user id --month YYYY-MM   Monthly report from a database
         [--xlsx out.xlsx] [--json]

  break uses the statutory table when --job is omitted.

SEE ALSO:
  - factory/job.go: job JSON format
  - wage/service.go: report assembly
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "wagectl",
		Short:         "wagectl - work hours and wage calculations",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(breakCmd())
	rootCmd.AddCommand(reportCmd())
	return rootCmd
}
