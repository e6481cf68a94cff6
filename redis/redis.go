// Package redis stores cache artifacts in redis.
package redis

import (
	"context"
	"time"

	"github.com/pilosa/trialkit/cache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Blobs is a cache.Blobs storing each artifact under the key <prefix><name>.
// Artifacts never expire.
type Blobs struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewBlobs returns Blobs using an existing client.
func NewBlobs(client redis.UniversalClient, prefix string) *Blobs {
	return &Blobs{client: client, prefix: prefix, timeout: 30 * time.Second}
}

// Dial connects to the redis server at url (e.g. redis://localhost:6379/0)
// and checks the connection.
func Dial(url, prefix string) (*Blobs, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return NewBlobs(client, prefix), nil
}

// Close closes the client.
func (b *Blobs) Close() error {
	return b.client.Close()
}

func (b *Blobs) key(name string) string { return b.prefix + name }

// Has implements cache.Blobs.
func (b *Blobs) Has(name string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	n, err := b.client.Exists(ctx, b.key(name)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "checking key %s", b.key(name))
	}
	return n > 0, nil
}

// Get implements cache.Blobs.
func (b *Blobs) Get(name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	data, err := b.client.Get(ctx, b.key(name)).Bytes()
	if err == redis.Nil {
		return nil, cache.ErrNotFound
	} else if err != nil {
		return nil, errors.Wrapf(err, "getting key %s", b.key(name))
	}
	return data, nil
}

// Put implements cache.Blobs.
func (b *Blobs) Put(name string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	return errors.Wrapf(b.client.Set(ctx, b.key(name), data, 0).Err(), "setting key %s", b.key(name))
}

// Remove implements cache.Remover.
func (b *Blobs) Remove(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	return errors.Wrapf(b.client.Del(ctx, b.key(name)).Err(), "deleting key %s", b.key(name))
}
