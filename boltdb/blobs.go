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

package boltdb

import (
	"time"

	"github.com/boltdb/bolt"
	"github.com/pilosa/trialkit/cache"
	"github.com/pkg/errors"
)

var artifactBucket = []byte("artifacts")

// Blobs is a cache.Blobs which keeps every artifact in one bucket of a
// boltdb file, keyed by name.
type Blobs struct {
	Db *bolt.DB
}

// Open opens (or creates) the boltdb file at filename.
func Open(filename string) (*Blobs, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(artifactBucket)
		return errors.Wrap(err, "creating artifact bucket")
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return &Blobs{Db: db}, nil
}

// Close syncs and closes the underlying boltdb.
func (b *Blobs) Close() error {
	err := b.Db.Sync()
	if err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return b.Db.Close()
}

// Has implements cache.Blobs.
func (b *Blobs) Has(name string) (ok bool, err error) {
	err = b.Db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(artifactBucket).Get([]byte(name)) != nil
		return nil
	})
	return ok, err
}

// Get implements cache.Blobs.
func (b *Blobs) Get(name string) (data []byte, err error) {
	err = b.Db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(artifactBucket).Get([]byte(name))
		if val == nil {
			return cache.ErrNotFound
		}
		// val is only valid for the life of the transaction
		data = append([]byte(nil), val...)
		return nil
	})
	return data, err
}

// Put implements cache.Blobs.
func (b *Blobs) Put(name string, data []byte) error {
	return b.Db.Update(func(tx *bolt.Tx) error {
		return errors.Wrap(tx.Bucket(artifactBucket).Put([]byte(name), data), "putting artifact")
	})
}

// Remove implements cache.Remover.
func (b *Blobs) Remove(name string) error {
	return b.Db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(artifactBucket).Delete([]byte(name))
	})
}
