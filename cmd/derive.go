package cmd

import (
	"io"

	"github.com/pilosa/trialkit/competitors"
	"github.com/spf13/cobra"
)

// NewDeriveCommand returns a new cobra command which wraps competitors.Main
func NewDeriveCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := competitors.NewMain()
	m.Stdout = stdout
	m.Stderr = stderr
	return newCommand(m, "derive", "trialkit derive resolves derived datasets through the cache.", `
trialkit derive resolves each target dataset, loading it from the cache when
present and otherwise computing it (and whatever it depends on) and caching
the result. Targets: last_five_years_data, conditions, competitors,
competitor_trials, competitor_trials_one_cond, geographic_data,
trials_by_phase, studies_per_year, enrollment_per_year, intervention_types,
trials_by_sponsor_and_group, trials_by_country.
`)
}

func init() {
	subcommandFns["derive"] = NewDeriveCommand
}
