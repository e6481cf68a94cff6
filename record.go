package trialkit

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// MultiDelimiter separates the values of a multi-valued field such as
// Conditions, Phases or Interventions.
const MultiDelimiter = "|"

// SplitMulti splits a multi-valued field into its values. Empty values are
// dropped, so SplitMulti("") returns nil.
func SplitMulti(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, MultiDelimiter)
	ret := parts[:0]
	for _, p := range parts {
		if p != "" {
			ret = append(ret, p)
		}
	}
	if len(ret) == 0 {
		return nil
	}
	return ret
}

// JoinMulti is the inverse of SplitMulti.
func JoinMulti(vals []string) string {
	return strings.Join(vals, MultiDelimiter)
}

// FieldSet is a set of allowed field names.
type FieldSet map[string]struct{}

// NewFieldSet returns a FieldSet containing names.
func NewFieldSet(names ...string) FieldSet {
	fs := make(FieldSet, len(names))
	for _, n := range names {
		fs[n] = struct{}{}
	}
	return fs
}

// Has reports whether name is in the set. A nil FieldSet allows everything.
func (fs FieldSet) Has(name string) bool {
	if fs == nil {
		return true
	}
	_, ok := fs[name]
	return ok
}

// Missing returns the names which are not in the set, sorted.
func (fs FieldSet) Missing(names []string) []string {
	var missing []string
	for _, n := range names {
		if !fs.Has(n) {
			missing = append(missing, n)
		}
	}
	sort.Strings(missing)
	return missing
}

// Record is a single study as a mapping from field name to value. Fields
// which were not requested are absent.
type Record map[string]string

// NewRecord zips keys and values into a Record. Every key must be in allowed
// (unless allowed is nil), keys must be unique and non-empty, and there must
// be exactly one value per key.
func NewRecord(keys, values []string, allowed FieldSet) (Record, error) {
	if len(keys) != len(values) {
		return nil, errors.Errorf("key/value len mismatch: %d vs %d", len(keys), len(values))
	}
	rec := make(Record, len(keys))
	for i, k := range keys {
		if k == "" {
			return nil, errors.Errorf("empty field name at %d", i)
		}
		if !allowed.Has(k) {
			return nil, errors.Errorf("unknown field '%s'", k)
		}
		if _, dup := rec[k]; dup {
			return nil, errors.Errorf("field '%s' appears twice", k)
		}
		rec[k] = values[i]
	}
	return rec, nil
}

// Multi returns the values of a multi-valued field.
func (r Record) Multi(field string) []string {
	return SplitMulti(r[field])
}
