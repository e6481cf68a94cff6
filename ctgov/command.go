package ctgov

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/pilosa/trialkit"
	"github.com/pkg/errors"
)

// Main holds the options for fetching studies and writing them to stdout.
type Main struct {
	BaseURL    string        `help:"Root of the ClinicalTrials.gov API."`
	Query      string        `help:"Search expression, e.g. AREA[StartDate]RANGE[2020-01-01, 2020-12-31]."`
	Fields     []string      `help:"Comma separated fields to fetch. Empty fetches every field."`
	MaxStudies int           `help:"Maximum number of studies to fetch."`
	Format     string        `help:"Response format, csv or json."`
	PageSize   int           `help:"Studies requested per page."`
	Timeout    time.Duration `help:"Timeout for each request."`
	LogPath    string        `help:"Log file to write to. Empty means stderr."`
	Verbose    bool          `help:"Enable verbose logging."`

	Stdout io.Writer `flag:"-"`
}

// NewMain returns a new Main.
func NewMain() *Main {
	return &Main{
		BaseURL:    DefaultBaseURL,
		MaxStudies: 1000,
		Format:     "csv",
		PageSize:   MaxPageSize,
		Timeout:    time.Minute,
		Stdout:     os.Stdout,
	}
}

// Run fetches the studies and writes them to Stdout as CSV or as a JSON
// object with a "studies" list.
func (m *Main) Run() error {
	format, err := ParseFormat(m.Format)
	if err != nil {
		return err
	}
	log, closer, err := trialkit.OpenLogger(m.LogPath, m.Verbose)
	if err != nil {
		return errors.Wrap(err, "setting up logging")
	}
	defer closer.Close()

	client, err := NewClient(
		OptBaseURL(m.BaseURL),
		OptPageSize(m.PageSize),
		OptTransport(NewHTTPTransport(OptTimeout(m.Timeout))),
		OptLogger(log),
	)
	if err != nil {
		return errors.Wrap(err, "creating client")
	}

	var res *Result
	if len(m.Fields) == 0 {
		res, err = client.FetchAllFields(m.Query, m.MaxStudies, format)
	} else {
		res, err = client.FetchFields(m.Query, m.Fields, m.MaxStudies, format)
	}
	if err != nil {
		return err
	}
	log.Printf("fetched %d studies", res.Len())
	return errors.Wrap(WriteResult(m.Stdout, res), "writing results")
}

// WriteResult writes tabular results as CSV and structured results as JSON.
func WriteResult(w io.Writer, res *Result) error {
	if res.Format == Structured {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		studies := res.Studies
		if studies == nil {
			studies = []StructuredRecord{}
		}
		return enc.Encode(map[string]interface{}{"studies": studies})
	}
	ds, err := res.Dataset()
	if err != nil {
		return err
	}
	return trialkit.WriteCSV(w, ds)
}
