package competitors

import (
	"sort"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/pilosa/trialkit"
	"github.com/pkg/errors"
)

// NotReported stands in for an empty Phases value.
const NotReported = "Not Reported"

// PhaseOrder lists the phase combinations CountByPhase reports, in order.
var PhaseOrder = []string{"PHASE1", "PHASE1|PHASE2", "PHASE2", "PHASE2|PHASE3", "PHASE3", "PHASE4", "NA", NotReported}

// yearOf returns the year of a date such as "2021-03-15" or "2021-03".
func yearOf(date string) (int, bool) {
	date = strings.TrimSpace(date)
	if date == "" {
		return 0, false
	}
	if t, err := dateparse.ParseAny(date); err == nil {
		return t.Year(), true
	}
	if len(date) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0, false
	}
	return y, true
}

type key2 struct{ a, b string }

type key3 struct {
	a    string
	year int
	b    string
}

// CountByPhase counts competitor trials per sponsor and phase combination.
// Empty phases count as NotReported and combinations not in PhaseOrder are
// left out.
func CountByPhase(trials *trialkit.Dataset) (*trialkit.Dataset, error) {
	idx, err := trials.Cols(ColSponsor, ColPhases)
	if err != nil {
		return nil, errors.Wrap(err, "counting by phase")
	}
	rank := make(map[string]int, len(PhaseOrder))
	for i, p := range PhaseOrder {
		rank[p] = i
	}
	counts := make(map[key2]int)
	for _, row := range trials.Rows {
		phase := row[idx[1]]
		if phase == "" {
			phase = NotReported
		}
		if _, ok := rank[phase]; !ok {
			continue
		}
		counts[key2{row[idx[0]], phase}]++
	}
	keys := make([]key2, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return rank[keys[i].b] < rank[keys[j].b]
	})
	out := trialkit.NewDataset(ColSponsor, ColPhases, ColCount)
	for _, k := range keys {
		out.Rows = append(out.Rows, []string{k.a, k.b, strconv.Itoa(counts[k])})
	}
	return out, nil
}

// activeTrial is a grouped trial with the years it runs over.
type activeTrial struct {
	group, sponsor, enrollment string
	start, end                 int
}

// activeTrials joins the condition groups with the trials by NCT Number. A
// trial appears once per group row, and rows without a parseable start and
// completion year are dropped.
func activeTrials(trials, groups *trialkit.Dataset, extra ...string) ([]activeTrial, error) {
	gidx, err := groups.Cols(ColNCT, ColGroup)
	if err != nil {
		return nil, err
	}
	tidx, err := trials.Cols(append([]string{ColNCT, ColStartDate, ColCompletionDate, ColSponsor}, extra...)...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string][]string, len(trials.Rows))
	for _, row := range trials.Rows {
		if _, ok := byID[row[tidx[0]]]; !ok {
			byID[row[tidx[0]]] = row
		}
	}
	var out []activeTrial
	for _, g := range groups.Rows {
		row, ok := byID[g[gidx[0]]]
		if !ok {
			continue
		}
		start, ok1 := yearOf(row[tidx[1]])
		end, ok2 := yearOf(row[tidx[2]])
		if !ok1 || !ok2 {
			continue
		}
		at := activeTrial{group: g[gidx[1]], sponsor: row[tidx[3]], start: start, end: end}
		if len(extra) > 0 {
			at.enrollment = row[tidx[4]]
		}
		out = append(out, at)
	}
	return out, nil
}

// CountStudiesPerYear counts, per condition group, the trials active in each
// year from their start year to their completion year inclusive.
func CountStudiesPerYear(trials, groups *trialkit.Dataset) (*trialkit.Dataset, error) {
	active, err := activeTrials(trials, groups)
	if err != nil {
		return nil, errors.Wrap(err, "counting studies per year")
	}
	counts := make(map[key3]int)
	for _, at := range active {
		for y := at.start; y <= at.end; y++ {
			counts[key3{a: at.group, year: y}]++
		}
	}
	out := trialkit.NewDataset(ColGroup, ColYear, ColCount)
	for _, k := range sortedKeys(counts) {
		out.Rows = append(out.Rows, []string{k.a, strconv.Itoa(k.year), strconv.Itoa(counts[k])})
	}
	return out, nil
}

// SumEnrollmentPerYear sums, per condition group and sponsor, the enrollment
// of the trials active in each year. Trials whose enrollment isn't an integer
// are dropped.
func SumEnrollmentPerYear(trials, groups *trialkit.Dataset) (*trialkit.Dataset, error) {
	active, err := activeTrials(trials, groups, ColEnrollment)
	if err != nil {
		return nil, errors.Wrap(err, "summing enrollment per year")
	}
	sums := make(map[key3]int)
	for _, at := range active {
		n, err := strconv.Atoi(strings.TrimSpace(at.enrollment))
		if err != nil {
			continue
		}
		for y := at.start; y <= at.end; y++ {
			sums[key3{a: at.group, year: y, b: at.sponsor}] += n
		}
	}
	out := trialkit.NewDataset(ColGroup, ColYear, ColSponsor, ColEnrollment)
	for _, k := range sortedKeys(sums) {
		out.Rows = append(out.Rows, []string{k.a, strconv.Itoa(k.year), k.b, strconv.Itoa(sums[k])})
	}
	return out, nil
}

func sortedKeys(m map[key3]int) []key3 {
	keys := make([]key3, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.a != b.a {
			return a.a < b.a
		}
		if a.year != b.year {
			return a.year < b.year
		}
		return a.b < b.b
	})
	return keys
}

// CountInterventionTypes counts competitor trials by the type of their first
// intervention, most common first.
func CountInterventionTypes(trials *trialkit.Dataset) (*trialkit.Dataset, error) {
	c := trials.Col(ColInterventions)
	if c < 0 {
		return nil, errors.Errorf("counting intervention types: missing column '%s' in %v", ColInterventions, trials.Header)
	}
	t := newTally()
	for _, row := range trials.Rows {
		typ := row[c]
		if i := strings.Index(typ, ":"); i >= 0 {
			typ = typ[:i]
		}
		if typ = strings.TrimSpace(typ); typ != "" {
			t.add(typ)
		}
	}
	out := trialkit.NewDataset(ColInterventionType, ColCount)
	for _, typ := range t.over(0) {
		out.Rows = append(out.Rows, []string{typ, strconv.Itoa(t.counts[typ])})
	}
	return out, nil
}

// CountBySponsorAndGroup counts condition group rows per sponsor and group.
func CountBySponsorAndGroup(groups *trialkit.Dataset) (*trialkit.Dataset, error) {
	out, err := countPairs(groups, ColSponsor, ColGroup)
	return out, errors.Wrap(err, "counting by sponsor and group")
}

// CountByCountry counts geographic rows per country code and sponsor.
// Countries without a code are left out.
func CountByCountry(geo *trialkit.Dataset) (*trialkit.Dataset, error) {
	c := geo.Col(ColCountryCode)
	coded := geo.Filter(func(row []string) bool {
		return c >= 0 && row[c] != ""
	})
	out, err := countPairs(coded, ColCountryCode, ColSponsor)
	return out, errors.Wrap(err, "counting by country")
}

func countPairs(d *trialkit.Dataset, a, b string) (*trialkit.Dataset, error) {
	idx, err := d.Cols(a, b)
	if err != nil {
		return nil, err
	}
	counts := make(map[key2]int)
	for _, row := range d.Rows {
		counts[key2{row[idx[0]], row[idx[1]]}]++
	}
	keys := make([]key2, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})
	out := trialkit.NewDataset(a, b, ColCount)
	for _, k := range keys {
		out.Rows = append(out.Rows, []string{k.a, k.b, strconv.Itoa(counts[k])})
	}
	return out, nil
}
