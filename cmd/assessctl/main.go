// Command assessctl scores answer files, renders and parses narratives and
// manages clinician accounts from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "assessctl",
		Short:         "Offline tools for the overexcitability questionnaire",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newScoreCmd(),
		newPromptCmd(),
		newParseCmd(),
		newMarkersCmd(),
		newPsychologistCmd(),
		newTokenCmd(),
	)
	return root
}
