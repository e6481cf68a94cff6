package ctgov

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/pilosa/trialkit"
	"github.com/pkg/errors"
)

// DefaultBaseURL is the root of the ClinicalTrials.gov v2 API.
const DefaultBaseURL = "https://clinicaltrials.gov/api/v2/"

// Info describes the API version reported by the server.
type Info struct {
	APIVersion    string `json:"apiVersion"`
	DataTimestamp string `json:"dataTimestamp"`
}

// Client queries the studies endpoint. Each call is independent; a Client
// holds no per-query state and is safe for concurrent use as long as its
// Transport is.
type Client struct {
	base      string
	transport Transport
	catalog   *Catalog
	pageSize  int
	strict    bool

	stats trialkit.Statter
	log   trialkit.Logger

	info    Info
	fetcher *Fetcher
}

// ClientOption is a functional option type for Client.
type ClientOption func(c *Client) error

// OptBaseURL sets the API root. It must be an absolute http(s) URL.
func OptBaseURL(base string) ClientOption {
	return func(c *Client) error {
		u, err := url.Parse(base)
		if err != nil {
			return errors.Wrap(err, "parsing base url")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.Errorf("base url must be http or https, got '%s'", base)
		}
		c.base = base
		return nil
	}
}

// OptTransport sets the Transport used for every request.
func OptTransport(t Transport) ClientOption {
	return func(c *Client) error {
		c.transport = t
		return nil
	}
}

// OptCatalog sets the field catalog used to validate requested fields.
func OptCatalog(cat *Catalog) ClientOption {
	return func(c *Client) error {
		c.catalog = cat
		return nil
	}
}

// OptPageSize sets the number of records requested per page.
func OptPageSize(n int) ClientOption {
	return func(c *Client) error {
		if n < 1 || n > MaxPageSize {
			return errors.Errorf("page size must be in [1, %d], got %d", MaxPageSize, n)
		}
		c.pageSize = n
		return nil
	}
}

// OptStatter sets the Statter which receives request stats.
func OptStatter(s trialkit.Statter) ClientOption {
	return func(c *Client) error {
		c.stats = s
		return nil
	}
}

// OptLogger sets the logger.
func OptLogger(l trialkit.Logger) ClientOption {
	return func(c *Client) error {
		c.log = l
		return nil
	}
}

// OptAllowUnknownColumns stops the client rejecting tabular responses with
// columns that aren't in the catalog.
func OptAllowUnknownColumns(allow bool) ClientOption {
	return func(c *Client) error {
		c.strict = !allow
		return nil
	}
}

// NewClient creates a Client and asks the server for its version. An
// unreachable server is an error.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		base:     DefaultBaseURL,
		pageSize: MaxPageSize,
		strict:   true,
		stats:    trialkit.NopStatter{},
		log:      trialkit.NopLogger{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}
	if c.transport == nil {
		c.transport = NewHTTPTransport()
	}
	if c.catalog == nil {
		c.catalog = DefaultCatalog()
	}

	c.fetcher = NewFetcher(c.transport, c.base, c.pageSize, c.allowed)
	c.fetcher.stats = c.stats
	c.fetcher.log = c.log

	body, _, err := c.transport.Get(strings.TrimSuffix(c.base, "/") + "/version")
	if err != nil {
		return nil, errors.Wrap(err, "getting api version")
	}
	if err := json.Unmarshal(body, &c.info); err != nil {
		return nil, errors.Wrap(err, "decoding api version")
	}
	c.log.Printf("connected to %s: api version %s, data timestamp %s", c.base, c.info.APIVersion, c.info.DataTimestamp)
	return c, nil
}

func (c *Client) allowed(f Format) trialkit.FieldSet {
	if !c.strict || f != Tabular {
		return nil
	}
	return c.catalog.FieldSet(f)
}

// Info returns the version information fetched when the client was created.
func (c *Client) Info() Info { return c.info }

// Catalog returns the client's field catalog.
func (c *Client) Catalog() *Catalog { return c.catalog }

// FetchAllFields fetches up to maxStudies studies matching searchExpr with
// every field the format provides.
func (c *Client) FetchAllFields(searchExpr string, maxStudies int, format Format) (*Result, error) {
	if !format.valid() {
		return nil, validationErrorf("unknown format %d", int(format))
	}
	if maxStudies < 1 {
		return nil, validationErrorf("the number of studies must be greater than 0, got %d", maxStudies)
	}
	res, err := c.fetcher.Fetch(searchQuery(searchExpr), maxStudies, format)
	return res, errors.Wrap(err, "fetching all fields")
}

// FetchFields fetches up to maxStudies studies matching searchExpr, asking
// only for the given fields. Fields are validated against the catalog for the
// format before any request is made.
func (c *Client) FetchFields(searchExpr string, fields []string, maxStudies int, format Format) (*Result, error) {
	if maxStudies < 1 {
		return nil, validationErrorf("the number of studies must be greater than 0, got %d", maxStudies)
	}
	if err := c.catalog.Validate(fields, format); err != nil {
		return nil, err
	}
	q := searchQuery(searchExpr)
	q.Set("fields", trialkit.JoinMulti(fields))
	res, err := c.fetcher.Fetch(q, maxStudies, format)
	return res, errors.Wrap(err, "fetching fields")
}

func searchQuery(expr string) url.Values {
	q := url.Values{}
	q.Set("query.term", expr)
	q.Set("markupFormat", "legacy")
	return q
}
