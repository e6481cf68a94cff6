package cmd

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootSubcommands(t *testing.T) {
	rc := NewRootCommand(nil, ioutil.Discard, ioutil.Discard)
	var names []string
	for _, c := range rc.Commands() {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{"derive", "fetch", "publish", "serve", "version"}, names)
}

func TestVersionCommand(t *testing.T) {
	buf := &bytes.Buffer{}
	rc := NewRootCommand(nil, buf, ioutil.Discard)
	rc.SetArgs([]string{"version"})
	require.NoError(t, rc.Execute())
	assert.Equal(t, "trialkit v0.0.0 (built not recorded)\n", buf.String())
}

func TestSetAllConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "trialkit-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	conf := filepath.Join(dir, "trialkit.toml")
	require.NoError(t, ioutil.WriteFile(conf, []byte("sponsor = \"File Sponsor\"\nyears = 3\ntargets = [\"conditions\", \"competitors\"]\n"), 0644))

	newFlags := func() (*pflag.FlagSet, *string, *int, *[]string) {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		sponsor := fs.String("sponsor", "Default Sponsor", "")
		years := fs.Int("years", 5, "")
		targets := fs.StringSlice("targets", []string{"geographic_data"}, "")
		fs.String("config", "", "")
		return fs, sponsor, years, targets
	}

	fs, sponsor, years, targets := newFlags()
	require.NoError(t, fs.Parse([]string{"--config", conf}))
	require.NoError(t, setAllConfig(viper.New(), fs, "TRIALKIT"))
	assert.Equal(t, "File Sponsor", *sponsor)
	assert.Equal(t, 3, *years)
	assert.Equal(t, []string{"conditions", "competitors"}, *targets)

	os.Setenv("TRIALKIT_SPONSOR", "Env Sponsor")
	defer os.Unsetenv("TRIALKIT_SPONSOR")
	fs, sponsor, years, _ = newFlags()
	require.NoError(t, fs.Parse([]string{"--config", conf}))
	require.NoError(t, setAllConfig(viper.New(), fs, "TRIALKIT"))
	assert.Equal(t, "Env Sponsor", *sponsor)
	assert.Equal(t, 3, *years)

	fs, sponsor, _, _ = newFlags()
	require.NoError(t, fs.Parse([]string{"--config", conf, "--sponsor", "Flag Sponsor"}))
	require.NoError(t, setAllConfig(viper.New(), fs, "TRIALKIT"))
	assert.Equal(t, "Flag Sponsor", *sponsor)

	fs, _, _, _ = newFlags()
	require.NoError(t, fs.Parse([]string{"--config", filepath.Join(dir, "missing.toml")}))
	assert.Error(t, setAllConfig(viper.New(), fs, "TRIALKIT"))
}

func TestSetAllConfigYAML(t *testing.T) {
	dir, err := ioutil.TempDir("", "trialkit-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	conf := filepath.Join(dir, "trialkit.yaml")
	require.NoError(t, ioutil.WriteFile(conf, []byte("sponsor: YAML Sponsor\ntargets:\n  - competitors\n"), 0644))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	sponsor := fs.String("sponsor", "Default Sponsor", "")
	targets := fs.StringSlice("targets", []string{"geographic_data"}, "")
	fs.String("config", "", "")
	require.NoError(t, fs.Parse([]string{"--config", conf}))
	require.NoError(t, setAllConfig(viper.New(), fs, EnvPrefix))
	assert.Equal(t, "YAML Sponsor", *sponsor)
	assert.Equal(t, []string{"competitors"}, *targets)
}
