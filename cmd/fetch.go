package cmd

import (
	"io"

	"github.com/pilosa/trialkit/ctgov"
	"github.com/spf13/cobra"
)

// NewFetchCommand returns a new cobra command which wraps ctgov.Main
func NewFetchCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := ctgov.NewMain()
	m.Stdout = stdout
	return newCommand(m, "fetch", "trialkit fetch writes studies matching a search expression to stdout.", `
trialkit fetch queries the ClinicalTrials.gov studies endpoint, following
continuation tokens until max-studies have been read, and writes them to
stdout as CSV or JSON.
`)
}

func init() {
	subcommandFns["fetch"] = NewFetchCommand
}
