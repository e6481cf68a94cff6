// Package cache persists named datasets between runs. An artifact's presence
// is its only freshness signal: nothing is ever expired or revalidated, and
// removing an artifact is how a recomputation is forced.
package cache

import (
	"bytes"
	"regexp"

	"github.com/pilosa/trialkit"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when loading an artifact which doesn't exist.
var ErrNotFound = errors.New("artifact not found")

// Store is a named dataset store.
type Store interface {
	Exists(name string) (bool, error)
	Load(name string) (*trialkit.Dataset, error)
	Save(name string, d *trialkit.Dataset) error
}

// Blobs is byte-level storage keyed by artifact name. Get returns ErrNotFound
// (possibly wrapped) for a missing key. Put replaces any previous value.
type Blobs interface {
	Has(name string) (bool, error)
	Get(name string) ([]byte, error)
	Put(name string, data []byte) error
}

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidName reports whether name can be used as an artifact name. Names are
// used as file names and keys so they're limited to letters, digits, "_",
// "-" and ".".
func ValidName(name string) bool {
	return validName.MatchString(name)
}

// BlobStore is a Store which encodes datasets as CSV into Blobs.
type BlobStore struct {
	blobs Blobs
}

// New returns a Store backed by b.
func New(b Blobs) *BlobStore {
	return &BlobStore{blobs: b}
}

// Exists implements Store.
func (s *BlobStore) Exists(name string) (bool, error) {
	if !ValidName(name) {
		return false, errors.Errorf("invalid artifact name '%s'", name)
	}
	ok, err := s.blobs.Has(name)
	return ok, errors.Wrapf(err, "checking for artifact '%s'", name)
}

// Load implements Store. Loading does no validation beyond decoding.
func (s *BlobStore) Load(name string) (*trialkit.Dataset, error) {
	if !ValidName(name) {
		return nil, errors.Errorf("invalid artifact name '%s'", name)
	}
	data, err := s.blobs.Get(name)
	if err != nil {
		return nil, errors.Wrapf(err, "getting artifact '%s'", name)
	}
	d, err := Decode(data)
	return d, errors.Wrapf(err, "decoding artifact '%s'", name)
}

// Save implements Store.
func (s *BlobStore) Save(name string, d *trialkit.Dataset) error {
	if !ValidName(name) {
		return errors.Errorf("invalid artifact name '%s'", name)
	}
	data, err := Encode(d)
	if err != nil {
		return errors.Wrapf(err, "encoding artifact '%s'", name)
	}
	return errors.Wrapf(s.blobs.Put(name, data), "putting artifact '%s'", name)
}

// Remover is implemented by Blobs which can delete artifacts.
type Remover interface {
	Remove(name string) error
}

// Remove deletes an artifact so the next resolution recomputes it. It fails if
// the backend can't delete.
func (s *BlobStore) Remove(name string) error {
	r, ok := s.blobs.(Remover)
	if !ok {
		return errors.Errorf("%T can't remove artifacts", s.blobs)
	}
	return errors.Wrapf(r.Remove(name), "removing artifact '%s'", name)
}

// Encode renders a dataset as CSV with a header row.
func Encode(d *trialkit.Dataset) ([]byte, error) {
	if d == nil || len(d.Header) == 0 {
		return nil, errors.New("can't encode a dataset without columns")
	}
	buf := &bytes.Buffer{}
	if err := trialkit.WriteCSV(buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses CSV written by Encode.
func Decode(data []byte) (*trialkit.Dataset, error) {
	return trialkit.ReadCSV(bytes.NewReader(data))
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound || errors.Is(err, ErrNotFound)
}
