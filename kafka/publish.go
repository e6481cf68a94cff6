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

// Package kafka publishes derived datasets to Kafka, one JSON message per row.
package kafka

import (
	"crypto/tls"
	"encoding/json"
	"io/ioutil"
	"log"

	"github.com/Shopify/sarama"
	"github.com/pilosa/trialkit"
	"github.com/pilosa/trialkit/competitors"
	"github.com/pkg/errors"
)

// Row implements the sarama.Encoder interface for a dataset row using json.
type Row struct {
	Dataset string          `json:"dataset"`
	Fields  trialkit.Record `json:"fields"`
}

// Encode marshals the row to json.
func (r Row) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Length returns the length of the marshalled json.
func (r Row) Length() int {
	bytes, _ := r.Encode()
	return len(bytes)
}

// Publisher sends dataset rows to a topic.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	log      trialkit.Logger
	stats    trialkit.Statter
}

// PublisherOption is a functional option type for Publisher.
type PublisherOption func(p *Publisher)

// OptPublisherLogger sets the logger.
func OptPublisherLogger(l trialkit.Logger) PublisherOption {
	return func(p *Publisher) {
		p.log = l
	}
}

// OptPublisherStatter sets the Statter.
func OptPublisherStatter(s trialkit.Statter) PublisherOption {
	return func(p *Publisher) {
		p.stats = s
	}
}

// NewPublisher returns a Publisher sending to topic through producer.
func NewPublisher(producer sarama.SyncProducer, topic string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		producer: producer,
		topic:    topic,
		log:      trialkit.NopLogger{},
		stats:    trialkit.NopStatter{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewProducer connects a SyncProducer to the given brokers, over TLS when
// tlsConf is not nil.
func NewProducer(hosts []string, tlsConf *tls.Config) (sarama.SyncProducer, error) {
	sarama.Logger = log.New(ioutil.Discard, "", 0)
	conf := sarama.NewConfig()
	conf.Version = sarama.V0_10_0_0
	conf.Producer.Return.Successes = true
	conf.Producer.RequiredAcks = sarama.WaitForAll
	if tlsConf != nil {
		conf.Net.TLS.Enable = true
		conf.Net.TLS.Config = tlsConf
	}
	producer, err := sarama.NewSyncProducer(hosts, conf)
	if err != nil {
		return nil, errors.Wrap(err, "getting new producer")
	}
	return producer, nil
}

// keyColumn is the column whose value keys each message: the NCT Number if
// the dataset has one, otherwise its first column.
func keyColumn(d *trialkit.Dataset) string {
	if d.Col(competitors.ColNCT) >= 0 {
		return competitors.ColNCT
	}
	if len(d.Header) > 0 {
		return d.Header[0]
	}
	return ""
}

// Publish sends every row of d, in order, and returns the number sent. It
// stops at the first failure.
func (p *Publisher) Publish(name string, d *trialkit.Dataset) (int, error) {
	key := keyColumn(d)
	for i, rec := range d.Records() {
		msg := &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(rec[key]),
			Value: Row{Dataset: name, Fields: rec},
		}
		if _, _, err := p.producer.SendMessage(msg); err != nil {
			p.stats.Count("kafka.errors", 1, 1, "dataset:"+name)
			return i, errors.Wrapf(err, "sending row %d of %s", i, name)
		}
		p.stats.Count("kafka.messages", 1, 1, "dataset:"+name)
	}
	p.log.Debugf("published %d rows of %s to %s", d.Len(), name, p.topic)
	return d.Len(), nil
}
