package cmd

import (
	"io"

	"github.com/pilosa/trialkit/kafka"
	"github.com/spf13/cobra"
)

// NewPublishCommand returns a new cobra command which wraps kafka.Main
func NewPublishCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := kafka.NewMain()
	m.Stdout = stdout
	m.Stderr = stderr
	return newCommand(m, "publish", "trialkit publish sends the rows of derived datasets to Kafka.", "")
}

func init() {
	subcommandFns["publish"] = NewPublishCommand
}
