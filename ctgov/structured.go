package ctgov

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pilosa/trialkit"
)

// StructuredRecord is a single study as decoded from the JSON format. Numbers
// are kept as json.Number so their text survives unchanged.
type StructuredRecord map[string]interface{}

// Lookup returns the values found at a dotted path. Arrays encountered along
// the way are traversed, so
// "protocolSection.contactsLocationsModule.locations.country" yields one value
// per location. ok is false if nothing exists at the path.
func (s StructuredRecord) Lookup(path string) (vals []string, ok bool) {
	if path == "" {
		return nil, false
	}
	found := false
	walk(map[string]interface{}(s), strings.Split(path, "."), func(v interface{}) {
		found = true
		vals = appendScalars(vals, v)
	})
	return vals, found
}

// First returns the first value at path, or "" if there is none.
func (s StructuredRecord) First(path string) string {
	vals, _ := s.Lookup(path)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func walk(v interface{}, keys []string, leaf func(interface{})) {
	switch vt := v.(type) {
	case []interface{}:
		for _, e := range vt {
			walk(e, keys, leaf)
		}
	case map[string]interface{}:
		if len(keys) == 0 {
			leaf(vt)
			return
		}
		next, ok := vt[keys[0]]
		if !ok {
			return
		}
		walk(next, keys[1:], leaf)
	default:
		if len(keys) == 0 {
			leaf(vt)
		}
	}
}

func appendScalars(vals []string, v interface{}) []string {
	switch vt := v.(type) {
	case nil:
		return vals
	case string:
		return append(vals, vt)
	case json.Number:
		return append(vals, vt.String())
	case bool:
		return append(vals, strconv.FormatBool(vt))
	case float64:
		return append(vals, strconv.FormatFloat(vt, 'f', -1, 64))
	case []interface{}:
		for _, e := range vt {
			vals = appendScalars(vals, e)
		}
		return vals
	default:
		return append(vals, fmt.Sprintf("%v", vt))
	}
}

// Flatten returns every scalar in the record keyed by its dotted path. Values
// reached through arrays are joined with the multi-value delimiter.
func (s StructuredRecord) Flatten() map[string]string {
	flat := make(map[string][]string)
	flatten("", map[string]interface{}(s), flat)
	out := make(map[string]string, len(flat))
	for k, v := range flat {
		out[k] = trialkit.JoinMulti(v)
	}
	return out
}

func flatten(prefix string, v interface{}, into map[string][]string) {
	switch vt := v.(type) {
	case map[string]interface{}:
		for k, e := range vt {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			flatten(p, e, into)
		}
	case []interface{}:
		for _, e := range vt {
			flatten(prefix, e, into)
		}
	case nil:
	default:
		into[prefix] = appendScalars(into[prefix], vt)
	}
}
