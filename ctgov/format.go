// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package ctgov

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pilosa/trialkit"
	"github.com/pkg/errors"
)

// NextPageTokenHeader is the response header which carries the continuation
// token for tabular responses.
const NextPageTokenHeader = "x-next-page-token"

// Format is the encoding requested from the studies endpoint. It is a closed
// set: Tabular or Structured.
type Format int

const (
	// Tabular is the CSV format. The continuation token is in a response
	// header.
	Tabular Format = iota
	// Structured is the JSON format. The continuation token is in the body.
	Structured
)

type formatSpec struct {
	name   string
	decode func(resp Response, allowed trialkit.FieldSet) (*Page, error)
}

var formats = [...]formatSpec{
	Tabular:    {name: "csv", decode: DecodeTabular},
	Structured: {name: "json", decode: decodeStructured},
}

// ParseFormat converts "csv" or "json" into a Format.
func ParseFormat(s string) (Format, error) {
	for f, spec := range formats {
		if spec.name == s {
			return Format(f), nil
		}
	}
	return 0, validationErrorf("format has to be either 'csv' or 'json', got '%s'", s)
}

func (f Format) valid() bool { return f >= 0 && int(f) < len(formats) }

// String returns the value used for the format query parameter.
func (f Format) String() string {
	if !f.valid() {
		return "unknown"
	}
	return formats[f].name
}

// Decode decodes a response in this format. allowed restricts tabular column
// names and may be nil.
func (f Format) Decode(resp Response, allowed trialkit.FieldSet) (*Page, error) {
	if !f.valid() {
		return nil, validationErrorf("unknown format %d", int(f))
	}
	return formats[f].decode(resp, allowed)
}

// Response is a raw response from the studies endpoint.
type Response struct {
	Body   []byte
	Header http.Header
}

// Page is one decoded page of results. Exactly one of Records (tabular) or
// Studies (structured) is populated.
type Page struct {
	Header    []string
	Records   []trialkit.Record
	Studies   []StructuredRecord
	NextToken string
}

// Len returns the number of records on the page.
func (p *Page) Len() int {
	return len(p.Records) + len(p.Studies)
}

// DecodeTabular decodes a CSV body with a header row. The continuation token
// comes from the x-next-page-token header, never from the body. Every column
// in the header must be in allowed (if allowed is non-nil). Empty cells are
// kept as empty strings.
func DecodeTabular(resp Response, allowed trialkit.FieldSet) (*Page, error) {
	page := &Page{NextToken: strings.TrimSpace(resp.Header.Get(NextPageTokenHeader))}
	cr := csv.NewReader(bytes.NewReader(resp.Body))
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return page, nil
	}
	if err != nil {
		return nil, &ParseError{Format: Tabular, Err: errors.Wrap(err, "reading header")}
	}
	if err := validateHeader(header); err != nil {
		return nil, &ParseError{Format: Tabular, Err: err}
	}
	page.Header = header
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Format: Tabular, Err: errors.Wrapf(err, "reading line %d", line)}
		}
		if len(row) != len(header) {
			return nil, &ParseError{Format: Tabular, Err: errors.Errorf("line %d: header/row len mismatch: %d vs %d", line, len(header), len(row))}
		}
		rec, err := trialkit.NewRecord(header, row, allowed)
		if err != nil {
			return nil, &ParseError{Format: Tabular, Err: errors.Wrapf(err, "line %d", line)}
		}
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

func validateHeader(header []string) error {
	fields := make(map[string]int)
	for i, h := range header {
		if h == "" {
			return errors.Errorf("header contains empty string at %d: %v", i, header)
		}
		if pos, exists := fields[h]; exists {
			return errors.Errorf("%s appeared at both %d and %d in header", h, pos, i)
		}
		fields[h] = i
	}
	return nil
}

type structuredBody struct {
	Studies       []StructuredRecord `json:"studies"`
	NextPageToken string             `json:"nextPageToken"`
}

// DecodeStructured decodes a JSON body. Records come from the "studies" list
// and the continuation token from the "nextPageToken" field of the body.
func DecodeStructured(resp Response) (*Page, error) {
	return decodeStructured(resp, nil)
}

func decodeStructured(resp Response, _ trialkit.FieldSet) (*Page, error) {
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	var body structuredBody
	if err := dec.Decode(&body); err != nil {
		return nil, &ParseError{Format: Structured, Err: errors.Wrap(err, "decoding json")}
	}
	return &Page{
		Studies:   body.Studies,
		NextToken: strings.TrimSpace(body.NextPageToken),
	}, nil
}
