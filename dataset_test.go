package trialkit_test

import (
	"testing"

	"github.com/pilosa/trialkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMulti(t *testing.T) {
	tests := []struct {
		in  string
		exp []string
	}{
		{in: "", exp: nil},
		{in: "Diabetes", exp: []string{"Diabetes"}},
		{in: "USA|Denmark", exp: []string{"USA", "Denmark"}},
		{in: "a||b|", exp: []string{"a", "b"}},
		{in: "|", exp: nil},
	}
	for _, test := range tests {
		assert.Equal(t, test.exp, trialkit.SplitMulti(test.in), "SplitMulti(%q)", test.in)
	}
}

func TestNewRecord(t *testing.T) {
	allowed := trialkit.NewFieldSet("NCT Number", "Sponsor")

	rec, err := trialkit.NewRecord([]string{"NCT Number", "Sponsor"}, []string{"NCT1", "Acme"}, allowed)
	require.NoError(t, err, "making record")
	assert.Equal(t, "Acme", rec["Sponsor"])

	_, err = trialkit.NewRecord([]string{"NCT Number", "Bogus"}, []string{"NCT1", "x"}, allowed)
	assert.Error(t, err, "unknown field")
	_, err = trialkit.NewRecord([]string{"NCT Number"}, []string{"NCT1", "x"}, allowed)
	assert.Error(t, err, "len mismatch")
	_, err = trialkit.NewRecord([]string{"Sponsor", "Sponsor"}, []string{"a", "b"}, nil)
	assert.Error(t, err, "duplicate field")
	_, err = trialkit.NewRecord([]string{"Anything"}, []string{"a"}, nil)
	assert.NoError(t, err, "nil field set should allow everything")
}

func TestDatasetExplode(t *testing.T) {
	ds := trialkit.NewDataset("NCT Number", "Countries")
	mustAppend(t, ds, "NCT1", "USA|Denmark")
	mustAppend(t, ds, "NCT2", "")
	mustAppend(t, ds, "NCT3", "France")

	out, err := ds.Explode("Countries", "Country")
	require.NoError(t, err, "exploding")
	assert.Equal(t, [][]string{
		{"NCT1", "USA|Denmark", "USA"},
		{"NCT1", "USA|Denmark", "Denmark"},
		{"NCT3", "France", "France"},
	}, out.Rows)
	assert.Equal(t, []string{"NCT Number", "Countries", "Country"}, out.Header)

	_, err = ds.Explode("Nope", "Country")
	assert.Error(t, err, "exploding missing column")
	_, err = ds.Explode("Countries", "NCT Number")
	assert.Error(t, err, "exploding into existing column")
}

func TestDatasetProjectFilter(t *testing.T) {
	ds := trialkit.NewDataset("a", "b", "c")
	mustAppend(t, ds, "1", "2", "3")
	mustAppend(t, ds, "4", "5", "6")

	p, err := ds.Project("c", "a")
	require.NoError(t, err, "projecting")
	assert.Equal(t, [][]string{{"3", "1"}, {"6", "4"}}, p.Rows)
	_, err = ds.Project("z")
	assert.Error(t, err, "projecting missing column")

	f := ds.Filter(func(row []string) bool { return row[1] == "5" })
	assert.Equal(t, [][]string{{"4", "5", "6"}}, f.Rows)

	assert.Error(t, ds.Append("only one"), "appending short row")
}

func TestFromRecords(t *testing.T) {
	recs := []trialkit.Record{
		{"a": "1", "b": "2", "extra": "x"},
		{"b": "3"},
	}
	ds := trialkit.FromRecords([]string{"a", "b"}, recs)
	assert.Equal(t, [][]string{{"1", "2"}, {"", "3"}}, ds.Rows)
	back := ds.Records()
	assert.Equal(t, "1", back[0]["a"])
	assert.Equal(t, "3", back[1]["b"])
}

func mustAppend(t *testing.T, ds *trialkit.Dataset, row ...string) {
	t.Helper()
	require.NoError(t, ds.Append(row...), "appending %v", row)
}
