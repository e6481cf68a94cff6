package trialkit

import (
	"encoding/csv"
	"io"

	"github.com/pkg/errors"
)

// WriteCSV writes the dataset with a header row. Multi-valued cells keep
// their "|" delimiter.
func WriteCSV(w io.Writer, d *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for i, row := range d.Rows {
		if len(row) == 1 && row[0] == "" {
			// a bare empty line would be skipped on read
			cw.Flush()
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return errors.Wrapf(err, "writing row %d", i)
			}
			continue
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "writing row %d", i)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing")
}

// ReadCSV reads a dataset written by WriteCSV. Every row must have as many
// values as the header.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("reading header: empty input")
	} else if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	d := NewDataset(header...)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrapf(err, "reading line %d", line)
		}
		if err := d.Append(row...); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
	}
	return d, nil
}
