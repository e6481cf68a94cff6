package competitors

import (
	"sort"

	"github.com/pilosa/trialkit"
	"github.com/pilosa/trialkit/ctgov"
	"github.com/pkg/errors"
)

// tally counts keys and remembers the order they were first seen in.
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(k string) {
	if _, ok := t.counts[k]; !ok {
		t.order = append(t.order, k)
	}
	t.counts[k]++
}

// over returns the keys counted more than min times, most frequent first.
// Ties keep first-seen order.
func (t *tally) over(min int) []string {
	keys := make([]string, 0, len(t.order))
	for _, k := range t.order {
		if t.counts[k] > min {
			keys = append(keys, k)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return t.counts[keys[i]] > t.counts[keys[j]]
	})
	return keys
}

func overlaps(vals []string, set map[string]struct{}) bool {
	for _, v := range vals {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func column(name string, vals []string) *trialkit.Dataset {
	d := trialkit.NewDataset(name)
	d.Rows = make([][]string, len(vals))
	for i, v := range vals {
		d.Rows[i] = []string{v}
	}
	return d
}

// DeriveConditions lists the conditions the sponsor's trials cover more than
// once, excluding placeholder conditions, most frequent first. Every one of
// the sponsor's trials counts, so a condition listed by two trials qualifies.
func DeriveConditions(base *trialkit.Dataset, sponsor string, excluded []string) (*trialkit.Dataset, error) {
	idx, err := base.Cols(ColSponsor, ColConditions)
	if err != nil {
		return nil, errors.Wrap(err, "deriving conditions")
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, e := range excluded {
		skip[e] = struct{}{}
	}
	t := newTally()
	for _, row := range base.Rows {
		if row[idx[0]] != sponsor {
			continue
		}
		for _, c := range trialkit.SplitMulti(row[idx[1]]) {
			if _, ok := skip[c]; !ok {
				t.add(c)
			}
		}
	}
	return column(ColCondition, t.over(1)), nil
}

// DeriveCompetitors lists the industry sponsors, other than sponsor, with
// more than minTrials trials on any of the conditions, most trials first.
func DeriveCompetitors(base, conditions *trialkit.Dataset, sponsor string, minTrials int) (*trialkit.Dataset, error) {
	idx, err := base.Cols(ColSponsor, ColConditions, ColFunderType)
	if err != nil {
		return nil, errors.Wrap(err, "deriving competitors")
	}
	conds := conditions.Values(ColCondition)
	t := newTally()
	for _, row := range base.Rows {
		s := row[idx[0]]
		if s == "" || s == sponsor || row[idx[2]] != FunderIndustry {
			continue
		}
		if overlaps(trialkit.SplitMulti(row[idx[1]]), conds) {
			t.add(s)
		}
	}
	return column(ColCompetitor, t.over(minTrials)), nil
}

// DeriveCompetitorTrials selects, in base order, the full records of every
// trial a competitor runs on any of the conditions.
func DeriveCompetitorTrials(base, competitors, conditions *trialkit.Dataset) (*trialkit.Dataset, error) {
	idx, err := base.Cols(ColNCT, ColSponsor, ColConditions)
	if err != nil {
		return nil, errors.Wrap(err, "deriving competitor trials")
	}
	comps := competitors.Values(ColCompetitor)
	conds := conditions.Values(ColCondition)
	ids := make(map[string]struct{})
	for _, row := range base.Rows {
		if _, ok := comps[row[idx[1]]]; !ok {
			continue
		}
		if overlaps(trialkit.SplitMulti(row[idx[2]]), conds) {
			ids[row[idx[0]]] = struct{}{}
		}
	}
	return base.Filter(func(row []string) bool {
		_, ok := ids[row[idx[0]]]
		return ok
	}), nil
}

// DeriveConditionGroups has one row per (trial, condition of interest) with
// the condition's group.
func DeriveConditionGroups(trials, conditions *trialkit.Dataset, groups GroupMap) (*trialkit.Dataset, error) {
	proj, err := trials.Project(ColNCT, ColSponsor, ColConditions)
	if err != nil {
		return nil, errors.Wrap(err, "deriving condition groups")
	}
	exploded, err := proj.Explode(ColConditions, ColCondition)
	if err != nil {
		return nil, errors.Wrap(err, "deriving condition groups")
	}
	conds := conditions.Values(ColCondition)
	c := exploded.Col(ColCondition)
	out := trialkit.NewDataset(append(exploded.Header, ColGroup)...)
	for _, row := range exploded.Rows {
		if _, ok := conds[row[c]]; !ok {
			continue
		}
		out.Rows = append(out.Rows, append(row, groups.Group(row[c])))
	}
	return out, nil
}

// ExtractLocations returns one (NCT Number, Country) row per distinct country
// a study has a location in. Studies without an identifier or without
// locations are skipped.
func ExtractLocations(studies []ctgov.StructuredRecord) *trialkit.Dataset {
	out := trialkit.NewDataset(ColNCT, ColCountry)
	type pair struct{ id, country string }
	seen := make(map[pair]struct{})
	for _, s := range studies {
		id := s.First(FieldNCTID)
		if id == "" {
			continue
		}
		countries, ok := s.Lookup(FieldCountry)
		if !ok {
			continue
		}
		for _, c := range trialkit.SplitMulti(trialkit.JoinMulti(countries)) {
			p := pair{id, c}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out.Rows = append(out.Rows, []string{id, c})
		}
	}
	return out
}

// DeriveGeographic inner joins locations with the competitor trials by NCT
// Number, keeping location order, and appends a Country Code column. Names
// lookup doesn't know, or every name if lookup is nil, get an empty code.
func DeriveGeographic(locations, trials *trialkit.Dataset, lookup CountryLookup) (*trialkit.Dataset, error) {
	lidx, err := locations.Cols(ColNCT, ColCountry)
	if err != nil {
		return nil, errors.Wrap(err, "deriving geographic data")
	}
	tn := trials.Col(ColNCT)
	if tn < 0 {
		return nil, errors.Errorf("deriving geographic data: missing column '%s' in %v", ColNCT, trials.Header)
	}

	header := []string{ColNCT, ColCountry}
	var keep []int
	for i, h := range trials.Header {
		if i == tn || h == ColCountry || h == ColCountryCode {
			continue
		}
		header = append(header, h)
		keep = append(keep, i)
	}
	header = append(header, ColCountryCode)

	byID := make(map[string][][]string)
	for _, row := range trials.Rows {
		byID[row[tn]] = append(byID[row[tn]], row)
	}
	codes := make(map[string]string)
	code := func(country string) string {
		if lookup == nil {
			return ""
		}
		if c, ok := codes[country]; ok {
			return c
		}
		c, ok := lookup(country)
		if !ok {
			c = ""
		}
		codes[country] = c
		return c
	}

	out := trialkit.NewDataset(header...)
	for _, loc := range locations.Rows {
		id, country := loc[lidx[0]], loc[lidx[1]]
		for _, trial := range byID[id] {
			row := make([]string, 0, len(header))
			row = append(row, id, country)
			for _, i := range keep {
				row = append(row, trial[i])
			}
			out.Rows = append(out.Rows, append(row, code(country)))
		}
	}
	return out, nil
}
