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

package s3

import (
	"bytes"
	"io/ioutil"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pilosa/trialkit/cache"
	"github.com/pkg/errors"
)

// Option is a functional option type for Blobs.
type Option func(b *Blobs)

// OptPrefix prepends prefix to every object key.
func OptPrefix(prefix string) Option {
	return func(b *Blobs) {
		b.prefix = prefix
	}
}

// OptRegion sets the AWS region used when no client is given. An empty
// region keeps the default.
func OptRegion(region string) Option {
	return func(b *Blobs) {
		if region != "" {
			b.region = region
		}
	}
}

// OptEndpoint points the client at an S3 compatible endpoint instead of AWS.
func OptEndpoint(endpoint string) Option {
	return func(b *Blobs) {
		b.endpoint = endpoint
	}
}

// OptClient makes Blobs use the given client instead of creating one.
func OptClient(c s3iface.S3API) Option {
	return func(b *Blobs) {
		b.s3 = c
	}
}

// Blobs is a cache.Blobs storing each artifact as the object
// <prefix><name>.csv in a bucket.
type Blobs struct {
	bucket   string
	prefix   string
	region   string
	endpoint string

	s3 s3iface.S3API
}

// NewBlobs returns Blobs for bucket with the options applied.
func NewBlobs(bucket string, opts ...Option) (*Blobs, error) {
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	b := &Blobs{
		bucket: bucket,
		region: "us-east-1",
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.s3 == nil {
		cfg := &aws.Config{Region: aws.String(b.region)}
		if b.endpoint != "" {
			cfg.Endpoint = aws.String(b.endpoint)
			cfg.S3ForcePathStyle = aws.Bool(true)
		}
		sess, err := session.NewSession(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "getting new session")
		}
		b.s3 = s3.New(sess)
	}
	return b, nil
}

// Key returns the object key for an artifact.
func (b *Blobs) Key(name string) string {
	return b.prefix + name + ".csv"
}

// Has implements cache.Blobs.
func (b *Blobs) Has(name string) (bool, error) {
	_, err := b.s3.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.Key(name)),
	})
	if isNotFound(err) {
		return false, nil
	} else if err != nil {
		return false, errors.Wrapf(err, "heading %v", b.Key(name))
	}
	return true, nil
}

// Get implements cache.Blobs.
func (b *Blobs) Get(name string) ([]byte, error) {
	result, err := b.s3.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.Key(name)),
	})
	if isNotFound(err) {
		return nil, cache.ErrNotFound
	} else if err != nil {
		return nil, errors.Wrapf(err, "fetching %v", b.Key(name))
	}
	defer result.Body.Close()
	data, err := ioutil.ReadAll(result.Body)
	return data, errors.Wrapf(err, "reading %v", b.Key(name))
}

// Put implements cache.Blobs.
func (b *Blobs) Put(name string, data []byte) error {
	_, err := b.s3.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.Key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	return errors.Wrapf(err, "putting %v", b.Key(name))
}

// Remove implements cache.Remover.
func (b *Blobs) Remove(name string) error {
	_, err := b.s3.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.Key(name)),
	})
	return errors.Wrapf(err, "deleting %v", b.Key(name))
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if rf, ok := err.(awserr.RequestFailure); ok && rf.StatusCode() == http.StatusNotFound {
		return true
	}
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
