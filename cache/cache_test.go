package cache_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pilosa/trialkit"
	"github.com/pilosa/trialkit/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() *trialkit.Dataset {
	return &trialkit.Dataset{
		Header: []string{"NCT Number", "Conditions", "Study Title"},
		Rows: [][]string{
			{"NCT1", "Diabetes|Obesity", "A study, with commas"},
			{"NCT2", "", "Quotes \"inside\""},
			{"NCT3", "Obesity", "multi\nline"},
		},
	}
}

func exerciseStore(t *testing.T, s cache.Store) {
	t.Helper()
	ok, err := s.Exists("conditions")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Load("conditions")
	require.Error(t, err)
	assert.True(t, cache.IsNotFound(err), "expected not found, got %v", err)

	ds := sampleDataset()
	require.NoError(t, s.Save("conditions", ds))
	ok, err = s.Exists("conditions")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Load("conditions")
	require.NoError(t, err)
	assert.Equal(t, ds, got)

	// replace
	single := &trialkit.Dataset{Header: []string{"Condition"}, Rows: [][]string{{"Diabetes"}, {""}}}
	require.NoError(t, s.Save("conditions", single))
	got, err = s.Load("conditions")
	require.NoError(t, err)
	assert.Equal(t, single, got)

	empty := trialkit.NewDataset("Competitor")
	require.NoError(t, s.Save("competitors", empty))
	got, err = s.Load("competitors")
	require.NoError(t, err)
	assert.Equal(t, []string{"Competitor"}, got.Header)
	assert.Equal(t, 0, got.Len())

	assert.Error(t, s.Save("../escape", ds))
	assert.Error(t, s.Save("nocols", &trialkit.Dataset{}))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, cache.New(cache.NewMemory()))
}

func TestDirStore(t *testing.T) {
	root, err := ioutil.TempDir("", "trialkit-cache")
	require.NoError(t, err)
	defer os.RemoveAll(root)

	dir, err := cache.NewDir(filepath.Join(root, "nested"))
	require.NoError(t, err)
	exerciseStore(t, cache.New(dir))

	data, err := ioutil.ReadFile(dir.Path("conditions"))
	require.NoError(t, err)
	assert.Equal(t, "Condition\nDiabetes\n\"\"\n", string(data))

	// no temp files left behind
	entries, err := ioutil.ReadDir(filepath.Join(root, "nested"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"conditions.csv", "competitors.csv"}, names)
}

func TestRemove(t *testing.T) {
	mem := cache.NewMemory()
	s := cache.New(mem)
	require.NoError(t, s.Save("a", sampleDataset()))
	require.NoError(t, s.Remove("a"))
	ok, err := s.Exists("a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, mem.Names())
}

func TestLoadCorrupt(t *testing.T) {
	mem := cache.NewMemory()
	require.NoError(t, mem.Put("bad", []byte("a,b\n1\n")))
	_, err := cache.New(mem).Load("bad")
	assert.Error(t, err)
}
