package ctgov

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pilosa/trialkit"
	"github.com/pkg/errors"
)

// MaxPageSize is the largest page the studies endpoint will serve.
const MaxPageSize = 1000

// Result holds the records accumulated over all pages of a fetch. Exactly one
// of Records (Tabular) or Studies (Structured) is populated, matching Format.
type Result struct {
	Format Format

	// Header is the column order of the first tabular page.
	Header  []string
	Records []trialkit.Record
	Studies []StructuredRecord
}

// Len returns the number of records.
func (r *Result) Len() int {
	return len(r.Records) + len(r.Studies)
}

// Dataset returns tabular results as a Dataset in the order the columns were
// served. It fails for structured results.
func (r *Result) Dataset() (*trialkit.Dataset, error) {
	if r.Format != Tabular {
		return nil, errors.Errorf("can't make a dataset from %s results", r.Format)
	}
	return trialkit.FromRecords(r.Header, r.Records), nil
}

func (r *Result) add(p *Page) {
	if r.Header == nil && len(p.Header) > 0 {
		r.Header = p.Header
	}
	r.Records = append(r.Records, p.Records...)
	r.Studies = append(r.Studies, p.Studies...)
}

func (r *Result) truncate(n int) {
	if len(r.Records) > n {
		r.Records = r.Records[:n]
	}
	if len(r.Studies) > n {
		r.Studies = r.Studies[:n]
	}
}

// Fetcher pages through the studies endpoint.
type Fetcher struct {
	transport Transport
	base      string
	pageSize  int
	allowed   func(Format) trialkit.FieldSet

	stats trialkit.Statter
	log   trialkit.Logger
}

// NewFetcher returns a Fetcher requesting pages of at most pageSize records
// from base (e.g. "https://clinicaltrials.gov/api/v2/"). allowed may be nil,
// in which case tabular columns are not checked.
func NewFetcher(t Transport, base string, pageSize int, allowed func(Format) trialkit.FieldSet) *Fetcher {
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &Fetcher{
		transport: t,
		base:      strings.TrimSuffix(base, "/"),
		pageSize:  pageSize,
		allowed:   allowed,
		stats:     trialkit.NopStatter{},
		log:       trialkit.NopLogger{},
	}
}

// Fetch requests successive pages of query in the given format until
// maxRecords records have been collected or the source reports there are no
// more pages. The result is truncated to exactly maxRecords if the last page
// overshoots. A page shorter than the page size does not end the fetch on its
// own; only a missing continuation token does.
func (f *Fetcher) Fetch(query url.Values, maxRecords int, format Format) (*Result, error) {
	if !format.valid() {
		return nil, validationErrorf("unknown format %d", int(format))
	}
	if maxRecords < 1 {
		return nil, validationErrorf("the number of studies must be greater than 0, got %d", maxRecords)
	}
	size := f.pageSize
	if maxRecords < size {
		size = maxRecords
	}
	var allowed trialkit.FieldSet
	if f.allowed != nil {
		allowed = f.allowed(format)
	}

	res := &Result{Format: format}
	token := ""
	for page := 1; res.Len() < maxRecords; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = append([]string(nil), v...)
		}
		q.Set("format", format.String())
		q.Set("pageSize", strconv.Itoa(size))
		if token != "" {
			q.Set("pageToken", token)
		}
		u := f.base + "/studies?" + q.Encode()

		f.log.Debugf("fetching page %d: %s", page, u)
		start := time.Now()
		body, header, err := f.transport.Get(u)
		f.stats.Count("ctgov.requests", 1, 1)
		f.stats.Timing("ctgov.request", time.Since(start), 1)
		if err != nil {
			f.log.Printf("fetching page %d failed: %v", page, err)
			return nil, err
		}
		p, err := format.Decode(Response{Body: body, Header: header}, allowed)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding page %d", page)
		}
		f.log.Debugf("page %d: %d studies, %v", page, p.Len(), trialkit.Bytes(len(body)))
		f.stats.Count("ctgov.pages", 1, 1)
		f.stats.Count("ctgov.records", int64(p.Len()), 1)
		f.stats.Count("ctgov.bytes", int64(len(body)), 1)
		res.add(p)
		token = p.NextToken
		if token == "" {
			break
		}
	}
	res.truncate(maxRecords)
	return res, nil
}
