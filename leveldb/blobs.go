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

package leveldb

import (
	"github.com/pilosa/trialkit/cache"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// Blobs is a cache.Blobs which stores artifacts in a leveldb database keyed
// by name.
type Blobs struct {
	db *leveldb.DB
}

// Open opens (or creates) the leveldb database in dirname.
func Open(dirname string) (*Blobs, error) {
	db, err := leveldb.OpenFile(dirname, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at '%s'", dirname)
	}
	return &Blobs{db: db}, nil
}

// Close closes the underlying database.
func (b *Blobs) Close() error {
	return b.db.Close()
}

// Has implements cache.Blobs.
func (b *Blobs) Has(name string) (bool, error) {
	return b.db.Has([]byte(name), &opt.ReadOptions{})
}

// Get implements cache.Blobs.
func (b *Blobs) Get(name string) ([]byte, error) {
	data, err := b.db.Get([]byte(name), &opt.ReadOptions{})
	if err == leveldb.ErrNotFound {
		return nil, cache.ErrNotFound
	}
	return data, err
}

// Put implements cache.Blobs. Writes are synced so an artifact survives a
// crash once Put returns.
func (b *Blobs) Put(name string, data []byte) error {
	return b.db.Put([]byte(name), data, &opt.WriteOptions{Sync: true})
}

// Remove implements cache.Remover.
func (b *Blobs) Remove(name string) error {
	return b.db.Delete([]byte(name), &opt.WriteOptions{Sync: true})
}
