package competitors_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pilosa/trialkit/competitors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	reportTrials = dataset(
		[]string{"NCT Number", "Sponsor", "Phases", "Interventions", "Enrollment", "Start Date", "Completion Date"},
		[]string{"NCT1", "A", "PHASE2|PHASE3", "DRUG: X|DEVICE: Y", "100", "2021-03-01", "2022-06"},
		[]string{"NCT2", "A", "", "DRUG: Z", "50", "2022-01", "2022-12-31"},
		[]string{"NCT3", "B", "PHASE1", "", "abc", "2020", "bad"},
		[]string{"NCT4", "B", "EARLY_PHASE1", "BEHAVIORAL: W", "10", "2023-05", "2023-05"},
	)
	reportGroups = dataset(
		[]string{"NCT Number", "Sponsor", "Conditions", "Condition", "Group"},
		[]string{"NCT1", "A", "Diabetes|Obesity", "Diabetes", "Metabolic"},
		[]string{"NCT1", "A", "Diabetes|Obesity", "Obesity", "Metabolic"},
		[]string{"NCT2", "A", "Asthma", "Asthma", "Other"},
		[]string{"NCT3", "B", "Diabetes", "Diabetes", "Metabolic"},
		[]string{"NCT4", "B", "Asthma", "Asthma", "Other"},
	)
)

func TestCountByPhase(t *testing.T) {
	got, err := competitors.CountByPhase(reportTrials)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sponsor", "Phases", "Count"}, got.Header)
	assert.Equal(t, [][]string{
		{"A", "PHASE2|PHASE3", "1"},
		{"A", "Not Reported", "1"},
		{"B", "PHASE1", "1"},
	}, got.Rows)
}

func TestCountStudiesPerYear(t *testing.T) {
	got, err := competitors.CountStudiesPerYear(reportTrials, reportGroups)
	require.NoError(t, err)
	assert.Equal(t, []string{"Group", "Year", "Count"}, got.Header)
	assert.Equal(t, [][]string{
		{"Metabolic", "2021", "2"},
		{"Metabolic", "2022", "2"},
		{"Other", "2022", "1"},
		{"Other", "2023", "1"},
	}, got.Rows)
}

func TestSumEnrollmentPerYear(t *testing.T) {
	got, err := competitors.SumEnrollmentPerYear(reportTrials, reportGroups)
	require.NoError(t, err)
	assert.Equal(t, []string{"Group", "Year", "Sponsor", "Enrollment"}, got.Header)
	assert.Equal(t, [][]string{
		{"Metabolic", "2021", "A", "200"},
		{"Metabolic", "2022", "A", "200"},
		{"Other", "2022", "A", "50"},
		{"Other", "2023", "B", "10"},
	}, got.Rows)
}

func TestCountInterventionTypes(t *testing.T) {
	got, err := competitors.CountInterventionTypes(reportTrials)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"DRUG", "2"}, {"BEHAVIORAL", "1"}}, got.Rows)
}

func TestCountBySponsorAndGroup(t *testing.T) {
	got, err := competitors.CountBySponsorAndGroup(reportGroups)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sponsor", "Group", "Count"}, got.Header)
	assert.Equal(t, [][]string{
		{"A", "Metabolic", "2"},
		{"A", "Other", "1"},
		{"B", "Metabolic", "1"},
		{"B", "Other", "1"},
	}, got.Rows)

	_, err = competitors.CountBySponsorAndGroup(reportTrials)
	assert.Error(t, err)
}

func TestCountByCountry(t *testing.T) {
	geo := dataset([]string{"NCT Number", "Country", "Sponsor", "Country Code"},
		[]string{"NCT1", "Denmark", "A", "DNK"},
		[]string{"NCT2", "Denmark", "A", "DNK"},
		[]string{"NCT2", "Atlantis", "A", ""},
		[]string{"NCT3", "Denmark", "B", "DNK"},
	)
	got, err := competitors.CountByCountry(geo)
	require.NoError(t, err)
	assert.Equal(t, []string{"Country Code", "Sponsor", "Count"}, got.Header)
	assert.Equal(t, [][]string{{"DNK", "A", "2"}, {"DNK", "B", "1"}}, got.Rows)
}

func TestLoadGroupMap(t *testing.T) {
	dir, err := ioutil.TempDir("", "trialkit-groups")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	jsonPath := filepath.Join(dir, "groups.json")
	require.NoError(t, ioutil.WriteFile(jsonPath, []byte(`{"Type 2 Diabetes": "Diabetes", "Obesity": "Obesity"}`), 0644))
	g, err := competitors.LoadGroupMap(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "Diabetes", g.Group("Type 2 Diabetes"))
	assert.Equal(t, "Other", g.Group("Asthma"))

	yamlPath := filepath.Join(dir, "groups.yaml")
	require.NoError(t, ioutil.WriteFile(yamlPath, []byte("Type 1 Diabetes: Diabetes\nHemophilia A: Rare Blood\n"), 0644))
	g, err = competitors.LoadGroupMap(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, competitors.GroupMap{"Type 1 Diabetes": "Diabetes", "Hemophilia A": "Rare Blood"}, g)

	g, err = competitors.LoadGroupMap("")
	require.NoError(t, err)
	assert.Empty(t, g)

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, ioutil.WriteFile(badPath, []byte(`["not", "a", "map"]`), 0644))
	_, err = competitors.LoadGroupMap(badPath)
	assert.Error(t, err)

	_, err = competitors.LoadGroupMap(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
