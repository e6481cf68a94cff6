package trialkit

import (
	"github.com/pkg/errors"
)

// Dataset is a named-column table of string values. It is the unit that
// derivation stages consume and produce, and the unit the cache stores.
type Dataset struct {
	Header []string
	Rows   [][]string
}

// NewDataset returns an empty Dataset with the given columns.
func NewDataset(header ...string) *Dataset {
	return &Dataset{Header: append([]string(nil), header...)}
}

// FromRecords builds a Dataset from records, using header as the column
// order. Fields missing from a record become empty strings and fields not in
// header are dropped.
func FromRecords(header []string, recs []Record) *Dataset {
	ds := NewDataset(header...)
	ds.Rows = make([][]string, 0, len(recs))
	for _, rec := range recs {
		row := make([]string, len(header))
		for i, h := range header {
			row[i] = rec[h]
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Col returns the index of the named column or -1.
func (d *Dataset) Col(name string) int {
	for i, h := range d.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Cols returns the indexes of the named columns, failing on the first one
// which isn't present.
func (d *Dataset) Cols(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		idx[i] = d.Col(n)
		if idx[i] < 0 {
			return nil, errors.Errorf("missing column '%s' in %v", n, d.Header)
		}
	}
	return idx, nil
}

// Append adds a row. The row must have one value per column.
func (d *Dataset) Append(row ...string) error {
	if len(row) != len(d.Header) {
		return errors.Errorf("row/header len mismatch: %d vs %d", len(row), len(d.Header))
	}
	d.Rows = append(d.Rows, row)
	return nil
}

// Column returns every value of the named column, or nil if there is no such
// column.
func (d *Dataset) Column(name string) []string {
	c := d.Col(name)
	if c < 0 {
		return nil
	}
	vals := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		vals[i] = row[c]
	}
	return vals
}

// Filter returns a new Dataset with the same header holding the rows for which
// keep returns true. Rows are shared, not copied.
func (d *Dataset) Filter(keep func(row []string) bool) *Dataset {
	out := NewDataset(d.Header...)
	for _, row := range d.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Project returns a new Dataset containing only the named columns in the given
// order.
func (d *Dataset) Project(names ...string) (*Dataset, error) {
	idx, err := d.Cols(names...)
	if err != nil {
		return nil, errors.Wrap(err, "projecting")
	}
	out := NewDataset(names...)
	out.Rows = make([][]string, len(d.Rows))
	for i, row := range d.Rows {
		nrow := make([]string, len(idx))
		for j, c := range idx {
			nrow[j] = row[c]
		}
		out.Rows[i] = nrow
	}
	return out, nil
}

// Explode splits the multi-valued column into one row per value, writing the
// single value to a new column named into (appended to the header). Rows
// whose column is empty produce no output rows.
func (d *Dataset) Explode(column, into string) (*Dataset, error) {
	c := d.Col(column)
	if c < 0 {
		return nil, errors.Errorf("can't explode missing column '%s'", column)
	}
	if d.Col(into) >= 0 {
		return nil, errors.Errorf("explode target '%s' already exists", into)
	}
	out := NewDataset(append(append([]string(nil), d.Header...), into)...)
	for _, row := range d.Rows {
		for _, v := range SplitMulti(row[c]) {
			nrow := make([]string, 0, len(row)+1)
			nrow = append(nrow, row...)
			out.Rows = append(out.Rows, append(nrow, v))
		}
	}
	return out, nil
}

// Records returns the rows as Records keyed by header.
func (d *Dataset) Records() []Record {
	recs := make([]Record, len(d.Rows))
	for i, row := range d.Rows {
		rec := make(Record, len(d.Header))
		for j, h := range d.Header {
			rec[h] = row[j]
		}
		recs[i] = rec
	}
	return recs
}

// Values returns the set of distinct values in the named column.
func (d *Dataset) Values(name string) map[string]struct{} {
	vals := make(map[string]struct{})
	for _, v := range d.Column(name) {
		vals[v] = struct{}{}
	}
	return vals
}
