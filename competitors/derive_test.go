package competitors_test

import (
	"fmt"
	"testing"

	"github.com/pilosa/trialkit"
	"github.com/pilosa/trialkit/competitors"
	"github.com/pilosa/trialkit/ctgov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataset(header []string, rows ...[]string) *trialkit.Dataset {
	d := trialkit.NewDataset(header...)
	d.Rows = rows
	return d
}

var baseHeader = []string{"NCT Number", "Sponsor", "Funder Type", "Conditions"}

func TestDeriveConditions(t *testing.T) {
	base := dataset(baseHeader,
		[]string{"NCT1", "Ref", "INDUSTRY", "Diabetes"},
		[]string{"NCT2", "Ref", "INDUSTRY", "Diabetes"},
		[]string{"NCT3", "Ref", "INDUSTRY", "Obesity"},
		[]string{"NCT4", "Ref", "INDUSTRY", "Healthy Volunteers"},
		[]string{"NCT5", "Other", "INDUSTRY", "Obesity"},
	)
	got, err := competitors.DeriveConditions(base, "Ref", []string{"Healthy Participants", "Healthy Volunteers"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Condition"}, got.Header)
	assert.Equal(t, [][]string{{"Diabetes"}}, got.Rows)

	t.Run("ordering", func(t *testing.T) {
		base := dataset(baseHeader,
			[]string{"NCT1", "Ref", "INDUSTRY", "Asthma|Obesity"},
			[]string{"NCT2", "Ref", "INDUSTRY", "Obesity"},
			[]string{"NCT3", "Ref", "INDUSTRY", "Asthma|Obesity"},
			[]string{"NCT4", "Ref", "INDUSTRY", "Obesity|Healthy Participants|Healthy Participants|Gout"},
		)
		got, err := competitors.DeriveConditions(base, "Ref", []string{"Healthy Participants"})
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"Obesity"}, {"Asthma"}}, got.Rows)
	})

	t.Run("no sponsor trials", func(t *testing.T) {
		got, err := competitors.DeriveConditions(base, "Nobody", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Len())
		assert.Equal(t, []string{"Condition"}, got.Header)
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := competitors.DeriveConditions(dataset([]string{"Sponsor"}), "Ref", nil)
		assert.Error(t, err)
	})
}

func TestDeriveCompetitors(t *testing.T) {
	base := trialkit.NewDataset(baseHeader...)
	add := func(n int, sponsor, funder, conds string) {
		for i := 0; i < n; i++ {
			base.Rows = append(base.Rows, []string{fmt.Sprintf("NCT%s%d", sponsor, i), sponsor, funder, conds})
		}
	}
	add(12, "Ref", "INDUSTRY", "Diabetes")
	add(11, "Rival", "INDUSTRY", "Obesity|Diabetes")
	add(14, "Bigger", "INDUSTRY", "Diabetes")
	add(10, "Small", "INDUSTRY", "Diabetes")
	add(11, "University", "OTHER", "Diabetes")
	add(11, "Offtopic", "INDUSTRY", "Asthma")
	add(11, "", "INDUSTRY", "Diabetes")
	conds := dataset([]string{"Condition"}, []string{"Diabetes"})

	got, err := competitors.DeriveCompetitors(base, conds, "Ref", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Competitor"}, got.Header)
	assert.Equal(t, [][]string{{"Bigger"}, {"Rival"}}, got.Rows)

	got, err = competitors.DeriveCompetitors(base, trialkit.NewDataset("Condition"), "Ref", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestDeriveCompetitorTrials(t *testing.T) {
	base := dataset(baseHeader,
		[]string{"NCT1", "Rival", "INDUSTRY", "Asthma"},
		[]string{"NCT2", "Ref", "INDUSTRY", "Diabetes"},
		[]string{"NCT3", "Rival", "INDUSTRY", "Gout|Diabetes"},
		[]string{"NCT4", "Bigger", "INDUSTRY", "Diabetes"},
		[]string{"NCT5", "Loner", "INDUSTRY", "Diabetes"},
	)
	comps := dataset([]string{"Competitor"}, []string{"Bigger"}, []string{"Rival"})
	conds := dataset([]string{"Condition"}, []string{"Diabetes"})

	got, err := competitors.DeriveCompetitorTrials(base, comps, conds)
	require.NoError(t, err)
	assert.Equal(t, baseHeader, got.Header)
	assert.Equal(t, [][]string{
		{"NCT3", "Rival", "INDUSTRY", "Gout|Diabetes"},
		{"NCT4", "Bigger", "INDUSTRY", "Diabetes"},
	}, got.Rows)

	got, err = competitors.DeriveCompetitorTrials(base, trialkit.NewDataset("Competitor"), conds)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, baseHeader, got.Header)
}

func TestDeriveConditionGroups(t *testing.T) {
	trials := dataset(baseHeader,
		[]string{"NCT1", "Rival", "INDUSTRY", "Diabetes|Obesity|Asthma"},
		[]string{"NCT2", "Bigger", "INDUSTRY", ""},
	)
	conds := dataset([]string{"Condition"}, []string{"Diabetes"}, []string{"Obesity"})
	groups := competitors.GroupMap{"Diabetes": "Metabolic"}

	got, err := competitors.DeriveConditionGroups(trials, conds, groups)
	require.NoError(t, err)
	assert.Equal(t, []string{"NCT Number", "Sponsor", "Conditions", "Condition", "Group"}, got.Header)
	assert.Equal(t, [][]string{
		{"NCT1", "Rival", "Diabetes|Obesity|Asthma", "Diabetes", "Metabolic"},
		{"NCT1", "Rival", "Diabetes|Obesity|Asthma", "Obesity", "Other"},
	}, got.Rows)
}

func study(id string, countries ...string) ctgov.StructuredRecord {
	proto := map[string]interface{}{
		"identificationModule": map[string]interface{}{"nctId": id},
	}
	if countries != nil {
		locs := make([]interface{}, len(countries))
		for i, c := range countries {
			locs[i] = map[string]interface{}{"country": c, "city": "x"}
		}
		proto["contactsLocationsModule"] = map[string]interface{}{"locations": locs}
	}
	return ctgov.StructuredRecord{"protocolSection": proto}
}

func TestExtractLocations(t *testing.T) {
	locs := competitors.ExtractLocations([]ctgov.StructuredRecord{
		study("NCT1", "USA|Denmark"),
		study("NCT2", "France", "Denmark", "France"),
		study("NCT3"),
		study("", "Spain"),
	})
	assert.Equal(t, []string{"NCT Number", "Country"}, locs.Header)
	assert.Equal(t, [][]string{
		{"NCT1", "USA"},
		{"NCT1", "Denmark"},
		{"NCT2", "France"},
		{"NCT2", "Denmark"},
	}, locs.Rows)
}

func TestDeriveGeographic(t *testing.T) {
	locs := competitors.ExtractLocations([]ctgov.StructuredRecord{
		study("NCT1", "USA|Denmark"),
		study("NCT2", "France"),
	})
	trials := dataset([]string{"NCT Number", "Sponsor", "Conditions"},
		[]string{"NCT1", "Rival", "Diabetes"},
		[]string{"NCT3", "Bigger", "Diabetes"},
	)
	lookup := func(name string) (string, bool) {
		code, ok := map[string]string{"Denmark": "DNK"}[name]
		return code, ok
	}

	geo, err := competitors.DeriveGeographic(locs, trials, lookup)
	require.NoError(t, err)
	assert.Equal(t, []string{"NCT Number", "Country", "Sponsor", "Conditions", "Country Code"}, geo.Header)
	assert.Equal(t, [][]string{
		{"NCT1", "USA", "Rival", "Diabetes", ""},
		{"NCT1", "Denmark", "Rival", "Diabetes", "DNK"},
	}, geo.Rows)

	rows, err := competitors.GeoRows(geo)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.False(t, rows[0].CountryCode.Valid)
	assert.Equal(t, "DNK", rows[1].CountryCode.String)
	assert.True(t, rows[1].CountryCode.Valid)

	geo, err = competitors.DeriveGeographic(locs, trials, nil)
	require.NoError(t, err)
	assert.Equal(t, "", geo.Rows[1][4])

	geo, err = competitors.DeriveGeographic(locs, trialkit.NewDataset("NCT Number", "Sponsor"), lookup)
	require.NoError(t, err)
	assert.Equal(t, 0, geo.Len())
	assert.Equal(t, []string{"NCT Number", "Country", "Sponsor", "Country Code"}, geo.Header)
}

func TestDefaultCountryLookup(t *testing.T) {
	code, ok := competitors.DefaultCountryLookup("Denmark")
	assert.True(t, ok)
	assert.Equal(t, "DNK", code)

	_, ok = competitors.DefaultCountryLookup("Atlantis")
	assert.False(t, ok)
}
