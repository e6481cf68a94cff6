package competitors_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/pilosa/trialkit/cache"
	"github.com/pilosa/trialkit/competitors"
	"github.com/pilosa/trialkit/ctgov"
	"github.com/pilosa/trialkit/pipeline"
	"github.com/pilosa/trialkit/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureStudies() []test.Study {
	var studies []test.Study
	add := func(n int, sponsor, funder string, conds, countries []string) {
		for i := 0; i < n; i++ {
			studies = append(studies, test.Study{
				NCTID:          fmt.Sprintf("NCT%03d", len(studies)),
				Title:          sponsor + " study",
				Sponsor:        sponsor,
				FunderType:     funder,
				StartDate:      "2021-03",
				CompletionDate: "2022-11-30",
				Conditions:     conds,
				Phases:         []string{"PHASE3"},
				Enrollment:     100,
				Interventions:  []string{"DRUG: Semaglutide"},
				Countries:      countries,
			})
		}
	}
	add(2, "Ref", "INDUSTRY", []string{"Type 2 Diabetes", "Obesity"}, []string{"Denmark"})
	add(1, "Ref", "INDUSTRY", []string{"Healthy Volunteers"}, nil)
	add(1, "Ref", "INDUSTRY", []string{"Healthy Volunteers", "Hemophilia"}, nil)
	add(3, "Rival", "INDUSTRY", []string{"Type 2 Diabetes"}, []string{"United States", "Denmark"})
	add(1, "Rival", "INDUSTRY", []string{"Asthma"}, []string{"France"})
	add(2, "Tiny", "INDUSTRY", []string{"Obesity"}, []string{"France"})
	add(3, "University", "OTHER", []string{"Obesity"}, []string{"Germany"})
	return studies
}

func testConfig(api *test.FakeAPI, clients *int) competitors.Config {
	cfg := competitors.NewConfig()
	cfg.Sponsor = "Ref"
	cfg.MinSponsorTrials = 2
	cfg.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	cfg.Groups = competitors.GroupMap{"Type 2 Diabetes": "Diabetes"}
	cfg.Country = func(name string) (string, bool) {
		code, ok := map[string]string{"Denmark": "DNK", "United States": "USA"}[name]
		return code, ok
	}
	cfg.Client = func() (competitors.StudyFetcher, error) {
		*clients++
		c, err := ctgov.NewClient(ctgov.OptBaseURL(api.BaseURL()), ctgov.OptPageSize(4))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return cfg
}

func newPipeline(t *testing.T, store cache.Store, cfg competitors.Config) *pipeline.Pipeline {
	t.Helper()
	p := pipeline.New(store)
	require.NoError(t, p.Register(competitors.Stages(cfg)...))
	require.NoError(t, p.Validate())
	return p
}

func TestSearchExpr(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "AREA[StartDate]RANGE[2019-05-03, 2024-05-01]", competitors.SearchExpr(now, 5))
}

func TestStagesEndToEnd(t *testing.T) {
	api := test.NewFakeAPI(fixtureStudies()...)
	defer api.Close()
	mem := cache.NewMemory()
	clients := 0
	p := newPipeline(t, cache.New(mem), testConfig(api, &clients))

	conds, err := p.Resolve(competitors.Conditions)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Type 2 Diabetes"}, {"Obesity"}}, conds.Rows)

	comps, err := p.Resolve(competitors.Competitors)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Rival"}}, comps.Rows)

	trials, err := p.Resolve(competitors.CompetitorTrials)
	require.NoError(t, err)
	assert.Equal(t, []string{"NCT004", "NCT005", "NCT006"}, trials.Column("NCT Number"))

	geo, err := p.Resolve(competitors.Geographic)
	require.NoError(t, err)
	assert.Equal(t, 6, geo.Len())
	first := geo.Records()[0]
	assert.Equal(t, "NCT004", first["NCT Number"])
	assert.Equal(t, "United States", first["Country"])
	assert.Equal(t, "Rival", first["Sponsor"])
	assert.Equal(t, "USA", first["Country Code"])

	for _, name := range p.Stages() {
		_, err := p.Resolve(name)
		require.NoError(t, err, "resolving %s", name)
	}
	assert.Equal(t, 1, clients)
	reqs := api.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "AREA[StartDate]RANGE[2019-05-03, 2024-05-01]", reqs[0].Get("query.term"))

	byCountry, err := p.Resolve(competitors.TrialsByCountry)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"DNK", "Rival", "3"}, {"USA", "Rival", "3"}}, byCountry.Rows)

	// Everything cached: a fresh pipeline never builds a client.
	before := make(map[string][]byte)
	for _, name := range mem.Names() {
		before[name], err = mem.Get(name)
		require.NoError(t, err)
	}
	cfg := testConfig(api, &clients)
	cfg.Client = func() (competitors.StudyFetcher, error) {
		return nil, errors.New("no fetching allowed")
	}
	p = newPipeline(t, cache.New(mem), cfg)
	for _, name := range p.Stages() {
		_, err := p.Resolve(name)
		require.NoError(t, err, "resolving %s from cache", name)
	}
	assert.Equal(t, len(reqs), len(api.Requests()))
	for name, data := range before {
		after, err := mem.Get(name)
		require.NoError(t, err)
		assert.Equal(t, data, after, name)
	}
	assert.Len(t, mem.Names(), len(p.Stages()))
}

func TestStagesRecomputeOnlyRemoved(t *testing.T) {
	api := test.NewFakeAPI(fixtureStudies()...)
	defer api.Close()
	mem := cache.NewMemory()
	clients := 0
	_, err := newPipeline(t, cache.New(mem), testConfig(api, &clients)).Resolve(competitors.CompetitorTrials)
	require.NoError(t, err)
	fetched := len(api.Requests())

	require.NoError(t, mem.Remove(competitors.Competitors))
	_, err = newPipeline(t, cache.New(mem), testConfig(api, &clients)).Resolve(competitors.Competitors)
	require.NoError(t, err)
	assert.Equal(t, fetched, len(api.Requests()), "base data should come from the cache")
	assert.Equal(t, 1, clients)
}

func TestStagesEmptyPropagation(t *testing.T) {
	api := test.NewFakeAPI()
	defer api.Close()
	clients := 0
	p := newPipeline(t, cache.New(cache.NewMemory()), testConfig(api, &clients))
	for _, name := range p.Stages() {
		d, err := p.Resolve(name)
		require.NoError(t, err, "resolving %s", name)
		assert.Equal(t, 0, d.Len(), name)
	}
}

func TestStagesEmptyBody(t *testing.T) {
	api := test.NewFakeAPI()
	defer api.Close()
	api.BareEmptyPages(true)
	mem := cache.NewMemory()
	clients := 0
	p := newPipeline(t, cache.New(mem), testConfig(api, &clients))

	base, err := p.Resolve(competitors.BaseData)
	require.NoError(t, err)
	assert.Equal(t, competitors.BaseColumns, base.Header)
	assert.Equal(t, 0, base.Len())
	for _, name := range p.Stages() {
		d, err := p.Resolve(name)
		require.NoError(t, err, "resolving %s", name)
		assert.Equal(t, 0, d.Len(), name)
	}
	assert.Len(t, mem.Names(), len(p.Stages()))
}

func TestStagesNoMinimumTrials(t *testing.T) {
	api := test.NewFakeAPI(fixtureStudies()...)
	defer api.Close()
	clients := 0
	cfg := testConfig(api, &clients)
	cfg.MinSponsorTrials = 0
	p := newPipeline(t, cache.New(cache.NewMemory()), cfg)

	comps, err := p.Resolve(competitors.Competitors)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Rival"}, {"Tiny"}}, comps.Rows)
}

func TestStagesFetchFailure(t *testing.T) {
	api := test.NewFakeAPI(fixtureStudies()...)
	defer api.Close()
	api.FailWith(500)
	mem := cache.NewMemory()
	clients := 0
	_, err := newPipeline(t, cache.New(mem), testConfig(api, &clients)).Resolve(competitors.Conditions)
	require.Error(t, err)
	var herr *ctgov.HTTPError
	assert.True(t, errors.As(err, &herr), "expected an HTTPError, got %v", err)
	assert.Empty(t, mem.Names())
}
