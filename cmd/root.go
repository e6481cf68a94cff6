// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jaffee/commandeer/cobrafy"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// Version of this software - filled in by ldflags in Makefile.
	Version string
	// BuildTime of this software - filled in by ldflags in Makefile.
	BuildTime string
)

// EnvPrefix prefixes the environment variable of every flag.
const EnvPrefix = "TRIALKIT"

func setupVersionBuild() {
	if Version == "" {
		Version = "v0.0.0"
	}
	if BuildTime == "" {
		BuildTime = "not recorded"
	}
}

var subcommandFns = map[string]func(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command{}

// newCommand turns a Main struct into a subcommand. Its exported fields
// become flags; see github.com/jaffee/commandeer.
func newCommand(m interface{}, use, short, long string) *cobra.Command {
	com, err := cobrafy.Command(m)
	if err != nil {
		panic(errors.Wrapf(err, "building %s command", use))
	}
	com.Use = use
	com.Short = short
	com.Long = strings.TrimPrefix(long, "\n")
	return com
}

// NewRootCommand creates the trialkit command with every registered
// subcommand, in name order, plus version.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	setupVersionBuild()
	rc := &cobra.Command{
		Use:   "trialkit",
		Short: "trialkit - competitor analysis from ClinicalTrials.gov",
		Long: `Fetch studies from the ClinicalTrials.gov API and derive, for a
reference sponsor, its conditions of interest, its industry competitors,
their trials and where those trials run. Derived datasets are cached and
only recomputed when their cached copy is removed.

Every flag can also be set with a ` + EnvPrefix + `_ environment variable
(e.g. ` + EnvPrefix + `_CACHE_DIR) or in the file given to --config.

Version: ` + Version + `
Build Time: ` + BuildTime + "\n",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setAllConfig(viper.New(), cmd.Flags(), EnvPrefix)
		},
		SilenceUsage: true,
	}
	rc.PersistentFlags().String("config", "", "TOML, YAML or JSON file to read configuration from.")

	names := make([]string, 0, len(subcommandFns))
	for name := range subcommandFns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rc.AddCommand(subcommandFns[name](stdin, stdout, stderr))
	}
	rc.AddCommand(newVersionCommand(stdout))
	rc.SetOutput(stderr)
	return rc
}

func newVersionCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the trialkit version and build time.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(stdout, "trialkit %s (built %s)\n", Version, BuildTime)
			return err
		},
	}
}

// setAllConfig sets every flag in flags which wasn't given on the command
// line from, in order of precedence, the environment variable named
// envPrefix_FLAG_NAME and the config file named by the config flag.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet, envPrefix string) error {
	if err := v.BindPFlags(flags); err != nil {
		return errors.Wrap(err, "binding flags")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, v.GetString("config")); err != nil {
		return err
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			// Flags given on the command line win. Setting a slice flag
			// again would append to it.
			return
		}
		if err := f.Value.Set(configValue(v, f)); err != nil {
			flagErr = errors.Wrapf(err, "setting %s", f.Name)
		}
	})
	return flagErr
}

// readConfigFile reads path into v. The format follows the extension and
// defaults to TOML.
func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	case ".json":
		v.SetConfigType("json")
	default:
		v.SetConfigType("toml")
	}
	return errors.Wrapf(v.ReadInConfig(), "reading configuration file '%s'", path)
}

// configValue is the string form of f's configured value. Lists from a
// config file come back from viper as slices, not comma separated strings.
func configValue(v *viper.Viper, f *pflag.Flag) string {
	if f.Value.Type() == "stringSlice" {
		return strings.Join(v.GetStringSlice(f.Name), ",")
	}
	return v.GetString(f.Name)
}
