package ctgov

import (
	"bytes"
	_ "embed" // for the default field catalog
	"encoding/csv"
	"io"
	"strings"

	"github.com/pilosa/trialkit"
	"github.com/pkg/errors"
)

const (
	catalogColumnHeader = "Column Name"
	catalogFieldsHeader = "Included Data Fields"
)

//go:embed study_fields.csv
var defaultCatalogCSV []byte

// Catalog associates each tabular column name with the structured (dotted
// path) fields it is built from. It is immutable once loaded.
type Catalog struct {
	columns    []string
	paths      map[string][]string
	structured []string

	tabularSet    trialkit.FieldSet
	structuredSet trialkit.FieldSet
}

// DefaultCatalog returns the catalog of the ClinicalTrials.gov v2 CSV
// columns.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(bytes.NewReader(defaultCatalogCSV))
	if err != nil {
		panic(errors.Wrap(err, "loading embedded field catalog"))
	}
	return c
}

// LoadCatalog reads a catalog from a CSV with "Column Name" and "Included
// Data Fields" columns. Included data fields are pipe delimited.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading catalog header")
	}
	colIdx, fieldsIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case catalogColumnHeader:
			colIdx = i
		case catalogFieldsHeader:
			fieldsIdx = i
		}
	}
	if colIdx < 0 || fieldsIdx < 0 {
		return nil, errors.Errorf("catalog header must contain '%s' and '%s', got %v", catalogColumnHeader, catalogFieldsHeader, header)
	}

	c := &Catalog{
		paths:         make(map[string][]string),
		tabularSet:    make(trialkit.FieldSet),
		structuredSet: make(trialkit.FieldSet),
	}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading catalog line %d", line)
		}
		col := row[colIdx]
		if col == "" {
			return nil, errors.Errorf("empty column name on catalog line %d", line)
		}
		if c.tabularSet.Has(col) {
			return nil, errors.Errorf("column '%s' listed twice in catalog", col)
		}
		paths := trialkit.SplitMulti(row[fieldsIdx])
		c.columns = append(c.columns, col)
		c.paths[col] = paths
		c.tabularSet[col] = struct{}{}
		for _, p := range paths {
			if !c.structuredSet.Has(p) {
				c.structuredSet[p] = struct{}{}
				c.structured = append(c.structured, p)
			}
		}
	}
	return c, nil
}

// Fields returns the valid field names for the given format, in catalog
// order.
func (c *Catalog) Fields(f Format) []string {
	switch f {
	case Tabular:
		return append([]string(nil), c.columns...)
	case Structured:
		return append([]string(nil), c.structured...)
	}
	return nil
}

// FieldSet returns the valid field names for the given format as a set.
func (c *Catalog) FieldSet(f Format) trialkit.FieldSet {
	switch f {
	case Tabular:
		return c.tabularSet
	case Structured:
		return c.structuredSet
	}
	return trialkit.FieldSet{}
}

// Paths returns the structured fields which make up a tabular column.
func (c *Catalog) Paths(column string) []string {
	return append([]string(nil), c.paths[column]...)
}

// Validate returns a *ValidationError if fields is empty or any of them isn't
// a valid field for the format.
func (c *Catalog) Validate(fields []string, f Format) error {
	if !f.valid() {
		return validationErrorf("unknown format %d", int(f))
	}
	if len(fields) == 0 {
		return validationErrorf("no fields requested")
	}
	if missing := c.FieldSet(f).Missing(fields); len(missing) > 0 {
		return validationErrorf("fields %v are not valid for the %s format; valid fields differ between csv and json", missing, f)
	}
	return nil
}

// Translate converts a structured record into a tabular Record. Only columns
// built from a single structured field are translated, and when several
// columns share a field the first one in catalog order wins. Fields absent
// from the structured record are absent from the result.
func (c *Catalog) Translate(s StructuredRecord) trialkit.Record {
	rec := make(trialkit.Record)
	claimed := make(map[string]struct{})
	for _, col := range c.columns {
		paths := c.paths[col]
		if len(paths) != 1 {
			continue
		}
		if _, ok := claimed[paths[0]]; ok {
			continue
		}
		claimed[paths[0]] = struct{}{}
		if vals, ok := s.Lookup(paths[0]); ok {
			rec[col] = trialkit.JoinMulti(vals)
		}
	}
	return rec
}
