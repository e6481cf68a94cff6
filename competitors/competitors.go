// Package competitors derives, from five years of trials, the conditions a
// reference sponsor works on, the industry sponsors competing on those
// conditions, their trials, and where those trials run.
//
// Every derived dataset is a pipeline.Stage; Stages returns them all wired to
// one another.
package competitors

import (
	"sync"
	"time"

	"github.com/pilosa/trialkit"
	"github.com/pilosa/trialkit/ctgov"
	"github.com/pilosa/trialkit/pipeline"
	"github.com/pkg/errors"
)

// Artifact names.
const (
	BaseData                = "last_five_years_data"
	Conditions              = "conditions"
	Competitors             = "competitors"
	CompetitorTrials        = "competitor_trials"
	ConditionGroups         = "competitor_trials_one_cond"
	Geographic              = "geographic_data"
	TrialsByPhase           = "trials_by_phase"
	StudiesPerYear          = "studies_per_year"
	EnrollmentPerYear       = "enrollment_per_year"
	InterventionTypes       = "intervention_types"
	TrialsBySponsorAndGroup = "trials_by_sponsor_and_group"
	TrialsByCountry         = "trials_by_country"
)

// Column names.
const (
	ColNCT              = "NCT Number"
	ColSponsor          = "Sponsor"
	ColConditions       = "Conditions"
	ColFunderType       = "Funder Type"
	ColPhases           = "Phases"
	ColInterventions    = "Interventions"
	ColEnrollment       = "Enrollment"
	ColStartDate        = "Start Date"
	ColCompletionDate   = "Completion Date"
	ColCondition        = "Condition"
	ColCompetitor       = "Competitor"
	ColGroup            = "Group"
	ColCountry          = "Country"
	ColCountryCode      = "Country Code"
	ColCount            = "Count"
	ColYear             = "Year"
	ColInterventionType = "Intervention Type"
)

// BaseColumns are the columns the derivations read from the base data. An
// empty base dataset gets them as its header.
var BaseColumns = []string{
	ColNCT, ColSponsor, ColFunderType, ColConditions, ColPhases,
	ColInterventions, ColEnrollment, ColStartDate, ColCompletionDate,
}

// Structured fields fetched for the geographic dataset.
const (
	FieldNCTID   = "protocolSection.identificationModule.nctId"
	FieldCountry = "protocolSection.contactsLocationsModule.locations.country"
)

// FunderIndustry is the Funder Type of commercial sponsors.
const FunderIndustry = "INDUSTRY"

// StudyFetcher is the part of *ctgov.Client the stages use.
type StudyFetcher interface {
	FetchAllFields(searchExpr string, maxStudies int, format ctgov.Format) (*ctgov.Result, error)
	FetchFields(searchExpr string, fields []string, maxStudies int, format ctgov.Format) (*ctgov.Result, error)
}

// CountryLookup maps a country name to its 3-letter code. ok is false for
// names it doesn't know.
type CountryLookup func(name string) (code string, ok bool)

// Config parameterizes the stages. Zero values are replaced by the defaults
// in NewConfig.
type Config struct {
	// Client is called at most once, and only when a stage actually needs
	// to fetch, so a fully cached run never touches the network.
	Client func() (StudyFetcher, error)

	Sponsor          string
	Now              func() time.Time
	Years            int
	MaxStudies       int
	MinSponsorTrials int
	Excluded         []string
	Groups           GroupMap
	Country          CountryLookup

	Log trialkit.Logger
}

// NewConfig returns a Config with the defaults filled in.
func NewConfig() Config {
	return Config{
		Sponsor:          "Novo Nordisk A/S",
		Now:              time.Now,
		Years:            5,
		MaxStudies:       500000,
		MinSponsorTrials: 10,
		Excluded:         []string{"Healthy Participants", "Healthy Volunteers"},
		Groups:           GroupMap{},
		Log:              trialkit.NopLogger{},
	}
}

func (c Config) withDefaults() Config {
	d := NewConfig()
	if c.Sponsor == "" {
		c.Sponsor = d.Sponsor
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	if c.Years < 1 {
		c.Years = d.Years
	}
	if c.MaxStudies < 1 {
		c.MaxStudies = d.MaxStudies
	}
	if c.MinSponsorTrials < 0 {
		c.MinSponsorTrials = d.MinSponsorTrials
	}
	if c.Excluded == nil {
		c.Excluded = d.Excluded
	}
	if c.Groups == nil {
		c.Groups = d.Groups
	}
	if c.Log == nil {
		c.Log = d.Log
	}
	return c
}

// SearchExpr returns the search expression for trials starting in the window
// of years*365 days ending at now.
func SearchExpr(now time.Time, years int) string {
	start := now.Add(-time.Duration(years*365) * 24 * time.Hour)
	return "AREA[StartDate]RANGE[" + start.Format("2006-01-02") + ", " + now.Format("2006-01-02") + "]"
}

// onceClient memoizes the result of the configured client constructor.
type onceClient struct {
	once   sync.Once
	new    func() (StudyFetcher, error)
	client StudyFetcher
	err    error
}

func (o *onceClient) get() (StudyFetcher, error) {
	o.once.Do(func() {
		if o.new == nil {
			o.err = errors.New("no client configured")
			return
		}
		o.client, o.err = o.new()
	})
	return o.client, errors.Wrap(o.err, "creating client")
}

// Stages returns every stage, ready to be registered with a pipeline.
func Stages(cfg Config) []pipeline.Stage {
	cfg = cfg.withDefaults()
	client := &onceClient{new: cfg.Client}
	input := func(in pipeline.Inputs, names ...string) ([]*trialkit.Dataset, error) {
		out := make([]*trialkit.Dataset, len(names))
		for i, n := range names {
			d, err := in.Get(n)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	}

	return []pipeline.Stage{
		{
			Name: BaseData,
			Run: func(pipeline.Inputs) (*trialkit.Dataset, error) {
				c, err := client.get()
				if err != nil {
					return nil, err
				}
				expr := SearchExpr(cfg.Now(), cfg.Years)
				cfg.Log.Printf("fetching up to %d studies for %s", cfg.MaxStudies, expr)
				res, err := c.FetchAllFields(expr, cfg.MaxStudies, ctgov.Tabular)
				if err != nil {
					return nil, errors.Wrap(err, "fetching base data")
				}
				ds, err := res.Dataset()
				if err != nil {
					return nil, err
				}
				if len(ds.Header) == 0 {
					cfg.Log.Printf("no studies match %s", expr)
					return trialkit.NewDataset(BaseColumns...), nil
				}
				return ds, nil
			},
		},
		{
			Name: Conditions,
			Deps: []string{BaseData},
			Run: func(in pipeline.Inputs) (*trialkit.Dataset, error) {
				ds, err := input(in, BaseData)
				if err != nil {
					return nil, err
				}
				return DeriveConditions(ds[0], cfg.Sponsor, cfg.Excluded)
			},
		},
		{
			Name: Competitors,
			Deps: []string{BaseData, Conditions},
			Run: func(in pipeline.Inputs) (*trialkit.Dataset, error) {
				ds, err := input(in, BaseData, Conditions)
				if err != nil {
					return nil, err
				}
				return DeriveCompetitors(ds[0], ds[1], cfg.Sponsor, cfg.MinSponsorTrials)
			},
		},
		{
			Name: CompetitorTrials,
			Deps: []string{BaseData, Competitors, Conditions},
			Run: func(in pipeline.Inputs) (*trialkit.Dataset, error) {
				ds, err := input(in, BaseData, Competitors, Conditions)
				if err != nil {
					return nil, err
				}
				return DeriveCompetitorTrials(ds[0], ds[1], ds[2])
			},
		},
		{
			Name: ConditionGroups,
			Deps: []string{CompetitorTrials, Conditions},
			Run: func(in pipeline.Inputs) (*trialkit.Dataset, error) {
				ds, err := input(in, CompetitorTrials, Conditions)
				if err != nil {
					return nil, err
				}
				return DeriveConditionGroups(ds[0], ds[1], cfg.Groups)
			},
		},
		{
			Name: Geographic,
			Deps: []string{CompetitorTrials},
			Run: func(in pipeline.Inputs) (*trialkit.Dataset, error) {
				ds, err := input(in, CompetitorTrials)
				if err != nil {
					return nil, err
				}
				c, err := client.get()
				if err != nil {
					return nil, err
				}
				expr := SearchExpr(cfg.Now(), cfg.Years)
				res, err := c.FetchFields(expr, []string{FieldNCTID, FieldCountry}, cfg.MaxStudies, ctgov.Structured)
				if err != nil {
					return nil, errors.Wrap(err, "fetching locations")
				}
				return DeriveGeographic(ExtractLocations(res.Studies), ds[0], cfg.Country)
			},
		},
		{
			Name: TrialsByPhase,
			Deps: []string{CompetitorTrials},
			Run: func(in pipeline.Inputs) (*trialkit.Dataset, error) {
				ds, err := input(in, CompetitorTrials)
				if err != nil {
					return nil, err
				}
				return CountByPhase(ds[0])
			},
		},
		{
			Name: StudiesPerYear,
			Deps: []string{CompetitorTrials, ConditionGroups},
			Run: func(in pipeline.Inputs) (*trialkit.Dataset, error) {
				ds, err := input(in, CompetitorTrials, ConditionGroups)
				if err != nil {
					return nil, err
				}
				return CountStudiesPerYear(ds[0], ds[1])
			},
		},
		{
			Name: EnrollmentPerYear,
			Deps: []string{CompetitorTrials, ConditionGroups},
			Run: func(in pipeline.Inputs) (*trialkit.Dataset, error) {
				ds, err := input(in, CompetitorTrials, ConditionGroups)
				if err != nil {
					return nil, err
				}
				return SumEnrollmentPerYear(ds[0], ds[1])
			},
		},
		{
			Name: InterventionTypes,
			Deps: []string{CompetitorTrials},
			Run: func(in pipeline.Inputs) (*trialkit.Dataset, error) {
				ds, err := input(in, CompetitorTrials)
				if err != nil {
					return nil, err
				}
				return CountInterventionTypes(ds[0])
			},
		},
		{
			Name: TrialsBySponsorAndGroup,
			Deps: []string{ConditionGroups},
			Run: func(in pipeline.Inputs) (*trialkit.Dataset, error) {
				ds, err := input(in, ConditionGroups)
				if err != nil {
					return nil, err
				}
				return CountBySponsorAndGroup(ds[0])
			},
		},
		{
			Name: TrialsByCountry,
			Deps: []string{Geographic},
			Run: func(in pipeline.Inputs) (*trialkit.Dataset, error) {
				ds, err := input(in, Geographic)
				if err != nil {
					return nil, err
				}
				return CountByCountry(ds[0])
			},
		},
	}
}
