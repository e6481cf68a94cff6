package cmd

import (
	"io"

	"github.com/pilosa/trialkit/http"
	"github.com/spf13/cobra"
)

func NewServeCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := http.NewMain()
	m.Stdout = stdout
	m.Stderr = stderr
	return newCommand(m, "serve", "trialkit serve serves derived datasets and metrics over HTTP.", "")
}

func init() {
	subcommandFns["serve"] = NewServeCommand
}
